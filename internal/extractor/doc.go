// Package extractor turns files into documents for the index.
//
// A Registry chooses a parser by extension: PDF (ledongthuc/pdf), DOCX
// (nguyenthenguyen/docx), XLSX (excelize) and a list of plain text
// extensions. Files with any other extension are read as text when their
// first 8 KiB are NUL-free UTF-8, and rejected with ErrUnsupportedFormat
// otherwise.
//
// The document title is the file's base name. Bodies are capped at
// Options.MaxBodyBytes, cut on a rune boundary.
package extractor
