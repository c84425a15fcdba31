package textlayer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

// maxTextBytes caps the text layer handed to the AI service.
const maxTextBytes = 200_000

// Extractor reads embedded text from PDFs and spreadsheets. Images have no
// text layer and yield an empty string.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractText(_ context.Context, mimeType string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch domain.NormalizeMimeType(mimeType) {
	case domain.MimePDF:
		text, err = pdfText(data)
	case domain.MimeXLSX:
		text, err = spreadsheetText(data)
	case "text/plain", "text/csv":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("text artifact is not valid utf-8")
		}
		text = string(data)
	default:
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return truncate(strings.TrimSpace(text)), nil
}

// pdfText recovers from parser panics on malformed files.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	raw, err := io.ReadAll(io.LimitReader(plain, maxTextBytes))
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(raw), nil
}

// spreadsheetText renders every sheet as tab-separated rows under a
// "## <sheet>" heading.
func spreadsheetText(data []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer book.Close()

	var b strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		b.WriteString("## " + sheet + "\n")
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if strings.TrimSpace(line) == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if b.Len() > maxTextBytes {
			break
		}
	}
	return b.String(), nil
}

func truncate(s string) string {
	if len(s) <= maxTextBytes {
		return s
	}
	cut := maxTextBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
