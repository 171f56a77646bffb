package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFText extracts the plain text of a PDF, one line per text row, pages in
// order. Malformed documents produce an error; parser panics are recovered.
func PDFText(doc []byte) (text string, err error) {
	if len(doc) == 0 {
		return "", errors.New("PDFText: empty document")
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("PDFText: malformed document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return "", fmt.Errorf("PDFText: open document: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("PDFText: read page %d: %w", i, err)
		}
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, t := range row.Content {
				words = append(words, t.S)
			}
			b.WriteString(strings.Join(words, " "))
			b.WriteByte('\n')
		}
	}

	return b.String(), nil
}
