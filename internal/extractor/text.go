package extractor

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// sniffBytes is how much of an unknown file is inspected before reading it as text
const sniffBytes = 8 << 10

var builtinTextExtensions = []string{
	".txt", ".md", ".markdown", ".rst", ".org", ".adoc", ".tex",
	".csv", ".tsv", ".json", ".yaml", ".yml", ".toml", ".ini", ".xml",
	".html", ".htm", ".css", ".log", ".conf", ".cfg",
	".go", ".rs", ".py", ".js", ".ts", ".java", ".c", ".h", ".cpp", ".hpp",
	".rb", ".sh", ".sql", ".proto",
}

// textParser reads UTF-8 files. In sniffing mode it first rejects files
// that look binary.
type textParser struct {
	exts  []string
	sniff bool
}

func newTextParser(extra []string) *textParser {
	exts := append([]string(nil), builtinTextExtensions...)
	for _, ext := range extra {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return &textParser{exts: exts}
}

func (p *textParser) sniffing() *textParser {
	return &textParser{exts: p.exts, sniff: true}
}

func (p *textParser) Extensions() []string {
	return p.exts
}

func (p *textParser) Parse(ctx context.Context, path string, maxBytes int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// One extra byte lets truncate see that the body was cut
	data, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)+1))
	if err != nil {
		return "", err
	}

	if p.sniff && !looksLikeText(data) {
		return "", unsupported("binary content")
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

// looksLikeText reports whether the head of data is NUL-free UTF-8
func looksLikeText(data []byte) bool {
	head := data
	if len(head) > sniffBytes {
		head = head[:sniffBytes]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	// Drop a rune split by the sniff window
	for i := 0; i < utf8.UTFMax-1 && len(head) > 0 && !utf8.Valid(head); i++ {
		head = head[:len(head)-1]
	}
	return utf8.Valid(head)
}
