package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/normalization"
	"github.com/openshelf/openshelf-backend/internal/types"
)

// ExtractedText is the best-effort output of text extraction. NativeTitle is
// only ever set for paginated documents (PDF metadata, OpenXML core
// properties); image inputs never carry one.
type ExtractedText struct {
	Text        string
	NativeTitle string
}

// TextExtractService converts an uploaded file into plain text. Extraction is
// non-fatal by contract: corrupt or unsupported files produce empty text and
// the downstream gates deal with the missing signal.
type TextExtractService interface {
	Extract(ctx context.Context, mediaKind, originalName, mimeType string, data []byte) ExtractedText
}

type textExtractService struct {
	log           *logger.Logger
	visionService VisionProviderService
}

func NewTextExtractService(log *logger.Logger, visionService VisionProviderService) TextExtractService {
	serviceLog := log.With("service", "TextExtractService")
	return &textExtractService{log: serviceLog, visionService: visionService}
}

func (ts *textExtractService) Extract(ctx context.Context, mediaKind, originalName, mimeType string, data []byte) ExtractedText {
	if len(data) == 0 {
		return ExtractedText{}
	}

	if mediaKind == types.MediaKindImage {
		return ts.extractImage(ctx, originalName, data)
	}
	return ts.extractDocument(originalName, mimeType, data)
}

func (ts *textExtractService) extractImage(ctx context.Context, originalName string, data []byte) ExtractedText {
	if ts.visionService == nil {
		ts.log.Warn("Vision provider not configured, image yields no text", "name", originalName)
		return ExtractedText{}
	}
	text, err := ts.visionService.OCRImageBytes(ctx, data)
	if err != nil {
		ts.log.Warn("Image OCR failed", "name", originalName, "error", err)
		return ExtractedText{}
	}
	return ExtractedText{Text: normalization.CollapseWhitespace(text)}
}

func (ts *textExtractService) extractDocument(originalName, mimeType string, data []byte) ExtractedText {
	ext := strings.ToLower(filepath.Ext(originalName))
	mt := strings.ToLower(strings.TrimSpace(mimeType))

	// Sniff by magic bytes first; declared mime lies often enough.
	if isPDF(data) {
		text, err := extractPDF(data)
		if err != nil {
			ts.log.Warn("PDF text extraction failed", "name", originalName, "error", err)
			text = ""
		}
		return ExtractedText{Text: text, NativeTitle: pdfNativeTitle(data)}
	}

	if isZipArchive(data) {
		kind := detectOpenXMLKind(data)
		switch kind {
		case "docx":
			text, err := extractOpenXMLText(data, "word/document.xml")
			if err != nil {
				ts.log.Warn("DOCX text extraction failed", "name", originalName, "error", err)
				text = ""
			}
			return ExtractedText{Text: text, NativeTitle: openXMLCoreTitle(data)}
		case "pptx":
			text, err := extractOpenXMLTextByPrefix(data, "ppt/slides/", ".xml")
			if err != nil {
				ts.log.Warn("PPTX text extraction failed", "name", originalName, "error", err)
				text = ""
			}
			return ExtractedText{Text: text, NativeTitle: openXMLCoreTitle(data)}
		default:
			ts.log.Warn("Unsupported zip container", "name", originalName, "mime", mimeType)
			return ExtractedText{}
		}
	}

	if looksLikeHTML(data) || mt == "text/html" || ext == ".html" || ext == ".htm" {
		return ExtractedText{Text: extractHTML(string(data))}
	}

	if isProbablyText(data) || mt == "text/plain" || ext == ".txt" || ext == ".md" || ext == ".markdown" {
		return ExtractedText{Text: normalization.CollapseWhitespace(string(data))}
	}

	ts.log.Warn("Unsupported document type, extraction yields no text",
		"name", originalName, "ext", ext, "mime", mimeType)
	return ExtractedText{}
}

// ------------------------
// Sniff helpers
// ------------------------

func isPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func isZipArchive(b []byte) bool {
	return len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 3 && b[3] == 4
}

func looksLikeHTML(b []byte) bool {
	s := strings.ToLower(string(b[:minInt(len(b), 2048)]))
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "<!doctype") || strings.HasPrefix(trimmed, "<html") {
		return true
	}
	return strings.Contains(s, "<html") && strings.Contains(s, "</html>")
}

func isProbablyText(b []byte) bool {
	sample := b[:minInt(len(b), 4096)]
	good := 0
	for _, c := range sample {
		if c == 0x00 {
			return false
		}
		if c == '\n' || c == '\r' || c == '\t' || (c >= 0x20 && c <= 0x7E) || c >= 0x80 {
			good++
		}
	}
	return float64(good)/float64(len(sample)) > 0.9
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ------------------------
// Extractors
// ------------------------

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return normalization.CollapseWhitespace(string(b)), nil
}

var pdfTitleRe = regexp.MustCompile(`/Title\s*\(([^)]{1,200})\)`)

// pdfNativeTitle scans the document info dictionary for a literal /Title.
// Hex-encoded and UTF-16 titles are skipped; this is best effort only.
func pdfNativeTitle(data []byte) string {
	m := pdfTitleRe.FindSubmatch(data)
	if m == nil {
		return ""
	}
	title := strings.TrimSpace(string(m[1]))
	if !utf8.ValidString(title) || strings.HasPrefix(title, "\xfe\xff") {
		return ""
	}
	return normalization.CollapseWhitespace(title)
}

func detectOpenXMLKind(zipBytes []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return "unknown"
	}
	hasWord := false
	hasPpt := false
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "word/") {
			hasWord = true
		}
		if strings.HasPrefix(f.Name, "ppt/") {
			hasPpt = true
		}
	}
	switch {
	case hasWord && !hasPpt:
		return "docx"
	case hasPpt && !hasWord:
		return "pptx"
	default:
		return "unknown"
	}
}

// openXMLCoreTitle pulls dc:title from docProps/core.xml, the document's own
// title field as saved by Word/PowerPoint.
func openXMLCoreTitle(zipBytes []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return ""
	}
	f := findZipFile(zr, "docProps/core.xml")
	if f == nil {
		return ""
	}
	rc, err := f.Open()
	if err != nil {
		return ""
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()

	dec := xml.NewDecoder(bytes.NewReader(b))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "title" {
			continue
		}
		var v string
		_ = dec.DecodeElement(&v, &se)
		return normalization.CollapseWhitespace(v)
	}
	return ""
}

func extractOpenXMLText(zipBytes []byte, target string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return "", err
	}
	f := findZipFile(zr, target)
	if f == nil {
		return "", fmt.Errorf("missing %s", target)
	}
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()

	s := normalization.CollapseWhitespace(extractTextFromXML(b))
	if s == "" {
		return "", fmt.Errorf("no text extracted from %s", target)
	}
	return s, nil
}

func extractOpenXMLTextByPrefix(zipBytes []byte, prefix, suffix string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, prefix) && strings.HasSuffix(f.Name, suffix) {
			rc, err := f.Open()
			if err != nil {
				return "", err
			}
			b, _ := io.ReadAll(rc)
			_ = rc.Close()
			out.WriteString(extractTextFromXML(b))
			out.WriteString("\n")
		}
	}
	s := normalization.CollapseWhitespace(out.String())
	if s == "" {
		return "", fmt.Errorf("no text extracted from %s", prefix)
	}
	return s, nil
}

func findZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// extractTextFromXML gathers the text runs (<w:t>, <a:t>) of an OpenXML part.
func extractTextFromXML(xmlBytes []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	var out strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "t" {
			continue
		}
		var v string
		_ = dec.DecodeElement(&v, &se)
		if v != "" {
			out.WriteString(v)
			out.WriteString(" ")
		}
	}
	return out.String()
}

var htmlTagRe = regexp.MustCompile(`(?s)<[^>]*>`)

func extractHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return normalization.CollapseWhitespace(s)
}
