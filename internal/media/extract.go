package media

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Document kinds the extractor understands.
const (
	KindPDF  = "pdf"
	KindODT  = "odt"
	KindDOCX = "docx"
)

// TruncationMarker is appended to previews cut at the character limit.
const TruncationMarker = "\n\n... (afgekapt)"

const (
	wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	odtNS  = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"
)

// ErrUnsupported is returned for files that are not PDF, ODT or DOCX.
var ErrUnsupported = errors.New("unsupported document type")

// Preview is the extracted text of a document.
type Preview struct {
	Kind string
	Text string
	// Pages is set for PDFs, Paragraphs for ODT and DOCX.
	Pages      int
	Paragraphs int
}

// ExtractorConfig configures text extraction.
type ExtractorConfig struct {
	MaxChars int `koanf:"max_chars"`
	MaxPages int `koanf:"max_pages"`
	// PDFToText and PDFInfo are the poppler-utils binaries.
	PDFToText string `koanf:"pdftotext"`
	PDFInfo   string `koanf:"pdfinfo"`
}

// Extractor pulls preview text out of office documents.
type Extractor struct {
	cfg ExtractorConfig
}

// NewExtractor defaults to 3000 characters from at most 5 PDF pages.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 3000
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.PDFToText == "" {
		cfg.PDFToText = "pdftotext"
	}
	if cfg.PDFInfo == "" {
		cfg.PDFInfo = "pdfinfo"
	}
	return &Extractor{cfg: cfg}
}

// KindOf returns the document kind of name, or "" when it cannot be extracted.
func KindOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".odt":
		return KindODT
	case ".docx":
		return KindDOCX
	}
	return ""
}

// IsHTML reports whether name is an HTML page, which is shared rather than extracted.
func IsHTML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}

// ExtractText returns the preview text of the document at docPath.
func (e *Extractor) ExtractText(ctx context.Context, docPath string) (*Preview, error) {
	var (
		p   *Preview
		err error
	)
	switch KindOf(docPath) {
	case KindPDF:
		p, err = e.extractPDF(ctx, docPath)
	case KindODT:
		p, err = extractZipXML(docPath, "content.xml", odtNS, "p", "")
		if p != nil {
			p.Kind = KindODT
		}
	case KindDOCX:
		p, err = extractZipXML(docPath, "word/document.xml", wordNS, "p", "t")
		if p != nil {
			p.Kind = KindDOCX
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(docPath))
	}
	if err != nil {
		return nil, err
	}
	p.Text = truncate(p.Text, e.cfg.MaxChars)
	return p, nil
}

func (e *Extractor) extractPDF(ctx context.Context, docPath string) (*Preview, error) {
	info, err := exec.CommandContext(ctx, e.cfg.PDFInfo, docPath).Output()
	if err != nil {
		return nil, fmt.Errorf("pdfinfo failed: %w", err)
	}
	pages := 0
	for _, line := range strings.Split(string(info), "\n") {
		if v, ok := strings.CutPrefix(line, "Pages:"); ok {
			pages, _ = strconv.Atoi(strings.TrimSpace(v))
			break
		}
	}

	var parts []string
	for n := 1; n <= pages && n <= e.cfg.MaxPages; n++ {
		page := strconv.Itoa(n)
		out, err := exec.CommandContext(ctx, e.cfg.PDFToText, "-q", "-f", page, "-l", page, docPath, "-").Output()
		if err != nil {
			return nil, fmt.Errorf("pdftotext failed on page %d: %w", n, err)
		}
		if text := strings.TrimSpace(string(out)); text != "" {
			parts = append(parts, fmt.Sprintf("--- Pagina %d ---\n%s", n, text))
		}
	}
	return &Preview{Kind: KindPDF, Text: strings.Join(parts, "\n\n"), Pages: pages}, nil
}

// extractZipXML reads member from the zip container at path and collects the text of every
// ns:para element. When textElem is set only character data inside ns:textElem counts.
func extractZipXML(path, member, ns, para, textElem string) (*Preview, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer zr.Close()

	f, err := zr.Open(member)
	if err != nil {
		return nil, fmt.Errorf("document has no %s: %w", member, err)
	}
	defer f.Close()

	paragraphs, err := xmlParagraphs(f, ns, para, textElem)
	if err != nil {
		return nil, err
	}
	return &Preview{Text: strings.Join(paragraphs, "\n\n"), Paragraphs: len(paragraphs)}, nil
}

func xmlParagraphs(r io.Reader, ns, para, textElem string) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		out     []string
		buf     bytes.Buffer
		depth   int // nesting of para elements
		inText  int
		tabElem = map[string]bool{"tab": true}
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse document XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != ns {
				continue
			}
			switch {
			case t.Name.Local == para:
				depth++
			case depth > 0 && t.Name.Local == textElem:
				inText++
			case depth > 0 && t.Name.Local == "s":
				buf.WriteByte(' ')
			case depth > 0 && tabElem[t.Name.Local]:
				buf.WriteByte('\t')
			}
		case xml.EndElement:
			if t.Name.Space != ns {
				continue
			}
			switch {
			case t.Name.Local == para && depth > 0:
				depth--
				if depth == 0 {
					if text := strings.TrimSpace(buf.String()); text != "" {
						out = append(out, text)
					}
					buf.Reset()
				}
			case t.Name.Local == textElem && inText > 0:
				inText--
			}
		case xml.CharData:
			if depth > 0 && (textElem == "" || inText > 0) {
				buf.Write(t)
			}
		}
	}
	return out, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + TruncationMarker
}
