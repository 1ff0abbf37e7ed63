package extractor

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dshills/sids/pkg/types"
)

func createTestFile(t *testing.T, dir, name string, content []byte) types.FileDescriptor {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return types.NewFileDescriptor(path, info.ModTime(), info.Size())
}

func TestExtractText(t *testing.T) {
	fd := createTestFile(t, t.TempDir(), "A.txt", []byte("apple"))

	doc, err := NewRegistry(Options{}).Extract(context.Background(), fd)
	require.NoError(t, err)
	assert.Equal(t, fd.Path, doc.Path)
	assert.Equal(t, "A.txt", doc.Title)
	assert.Equal(t, "apple", doc.Body)
	assert.Equal(t, ".txt", doc.Ext)
	assert.True(t, doc.ModTime.Equal(fd.ModTime))
	assert.Equal(t, int64(5), doc.Size)
	assert.NoError(t, doc.Validate())
}

func TestExtractUnknownExtensionSniffed(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(Options{})

	doc, err := r.Extract(context.Background(), createTestFile(t, dir, "notes.weird", []byte("plain words, ünïcode")))
	require.NoError(t, err)
	assert.Equal(t, "plain words, ünïcode", doc.Body)

	doc, err = r.Extract(context.Background(), createTestFile(t, dir, "README", []byte("no extension")))
	require.NoError(t, err)
	assert.Equal(t, "no extension", doc.Body)
}

func TestExtractBinaryRejected(t *testing.T) {
	fd := createTestFile(t, t.TempDir(), "blob.bin", []byte{0x7f, 'E', 'L', 'F', 0, 0, 1, 2})

	_, err := NewRegistry(Options{}).Extract(context.Background(), fd)
	var extractErr *types.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, fd.Path, extractErr.Path)
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)
}

func TestExtractCustomTextExtension(t *testing.T) {
	// Registered text extensions skip sniffing and repair invalid UTF-8
	fd := createTestFile(t, t.TempDir(), "data.dat", []byte("ok\xffok"))

	doc, err := NewRegistry(Options{TextExtensions: []string{"dat"}}).Extract(context.Background(), fd)
	require.NoError(t, err)
	assert.Equal(t, "ok�ok", doc.Body)
}

func TestExtractTruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("é", 10) // 20 bytes
	fd := createTestFile(t, t.TempDir(), "long.txt", []byte(body))

	doc, err := NewRegistry(Options{MaxBodyBytes: 7}).Extract(context.Background(), fd)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 3), doc.Body)
}

func TestExtractMissingFile(t *testing.T) {
	fd := types.NewFileDescriptor(filepath.Join(t.TempDir(), "gone.txt"), time.Now(), 1)

	_, err := NewRegistry(Options{}).Extract(context.Background(), fd)
	var extractErr *types.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtractCancelled(t *testing.T) {
	fd := createTestFile(t, t.TempDir(), "A.txt", []byte("apple"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRegistry(Options{}).Extract(ctx, fd)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractMalformedPDF(t *testing.T) {
	fd := createTestFile(t, t.TempDir(), "broken.pdf", []byte("%PDF-1.4\nthis is not really a pdf"))

	_, err := NewRegistry(Options{}).Extract(context.Background(), fd)
	var extractErr *types.ExtractionError
	assert.ErrorAs(t, err, &extractErr)
}

func TestExtractXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fruit.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "colour"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "apple"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "red"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	fd := types.NewFileDescriptor(path, info.ModTime(), info.Size())

	doc, err := NewRegistry(Options{}).Extract(context.Background(), fd)
	require.NoError(t, err)
	assert.Contains(t, doc.Body, "name\tcolour")
	assert.Contains(t, doc.Body, "apple\tred")
}

func TestExtractDOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo.docx")
	writeDocx(t, path, "Quarterly report", "Apples sold well")

	info, err := os.Stat(path)
	require.NoError(t, err)
	fd := types.NewFileDescriptor(path, info.ModTime(), info.Size())

	doc, err := NewRegistry(Options{}).Extract(context.Background(), fd)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly report\nApples sold well", doc.Body)
}

func TestWordText(t *testing.T) {
	text, err := wordText(`<w:document><w:body><w:p><w:r><w:t>one</w:t><w:tab/><w:t>two</w:t></w:r></w:p><w:p><w:r><w:t>three</w:t></w:r></w:p></w:body></w:document>`)
	require.NoError(t, err)
	assert.Equal(t, "one\ttwo\nthree", text)
}

func TestSupportedExtensions(t *testing.T) {
	exts := NewRegistry(Options{}).SupportedExtensions()
	assert.Contains(t, exts, ".pdf")
	assert.Contains(t, exts, ".docx")
	assert.Contains(t, exts, ".xlsx")
	assert.Contains(t, exts, ".txt")
}

// writeDocx builds a minimal Word document, one paragraph per line
func writeDocx(t *testing.T, path string, paragraphs ...string) {
	t.Helper()
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	zw := zip.NewWriter(out)
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`,
		"_rels/.rels": `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": documentXML(paragraphs),
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func documentXML(paragraphs []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		b.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}
