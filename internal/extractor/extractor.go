package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dshills/sids/pkg/types"
)

// DefaultMaxBodyBytes caps the body stored for one document
const DefaultMaxBodyBytes = 4 << 20

// Extractor turns a discovered file into an indexable document
type Extractor interface {
	Extract(ctx context.Context, file types.FileDescriptor) (*types.Document, error)
}

// parser extracts plain text from one family of formats
type parser interface {
	Parse(ctx context.Context, path string, maxBytes int) (string, error)
	Extensions() []string
}

// Options configures a Registry
type Options struct {
	// MaxBodyBytes truncates extracted bodies; 0 means DefaultMaxBodyBytes
	MaxBodyBytes int
	// TextExtensions are always read as text, in addition to the built-in list
	TextExtensions []string
}

// Registry picks a parser by file extension. Files with an unknown
// extension are read as text when they look like UTF-8.
type Registry struct {
	parsers  map[string]parser
	text     *textParser
	sniffer  *textParser
	maxBytes int
}

// NewRegistry creates a registry with the built-in PDF, DOCX, XLSX and
// text parsers
func NewRegistry(opts Options) *Registry {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := &Registry{
		parsers:  make(map[string]parser),
		text:     newTextParser(opts.TextExtensions),
		maxBytes: opts.MaxBodyBytes,
	}
	r.sniffer = r.text.sniffing()
	for _, p := range []parser{r.text, &pdfParser{}, &docxParser{}, &xlsxParser{}} {
		for _, ext := range p.Extensions() {
			r.parsers[ext] = p
		}
	}
	return r
}

// Extract reads the file and builds its document. Every failure is a
// *types.ExtractionError.
func (r *Registry) Extract(ctx context.Context, file types.FileDescriptor) (*types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.ExtractionError{Path: file.Path, Err: err}
	}

	ext := file.Ext
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(file.Path))
	}

	p, ok := r.parsers[ext]
	if !ok {
		p = r.sniffer
	}

	body, err := p.Parse(ctx, file.Path, r.maxBytes)
	if err != nil {
		return nil, &types.ExtractionError{Path: file.Path, Err: err}
	}

	return &types.Document{
		Path:    file.Path,
		Title:   filepath.Base(file.Path),
		Body:    truncate(body, r.maxBytes),
		Ext:     ext,
		ModTime: file.ModTime,
		Size:    file.Size,
	}, nil
}

// SupportedExtensions lists the extensions with a dedicated parser
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// truncate cuts s to at most max bytes without splitting a rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func unsupported(format string) error {
	return fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, format)
}
