package extract

import (
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDF extracts the plain text layer of every page.
type PDF struct{}

func (PDF) Extract(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", err
	}
	return strings.ToValidUTF8(sb.String(), "\uFFFD"), nil
}
