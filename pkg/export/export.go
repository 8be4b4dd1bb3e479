package export

import (
	"fmt"
	"strings"
)

// Format names a document encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts csv or pdf in any case. An empty value means csv.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Meta    [][2]string
	Headers []string
	Rows    []map[string]string
	Summary [][2]string
}

// Document is a rendered export.
type Document struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Render encodes data in format under the given base filename.
func Render(format Format, data Dataset, basename string) (*Document, error) {
	var (
		content []byte
		err     error
	)
	switch format {
	case FormatPDF:
		content, err = NewPDFExporter().Render(data)
	case FormatCSV:
		content, err = NewCSVExporter().Render(data)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return &Document{
		Filename:    fmt.Sprintf("%s.%s", basename, format),
		ContentType: format.ContentType(),
		Content:     content,
	}, nil
}
