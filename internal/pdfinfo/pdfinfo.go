// Package pdfinfo inspects PDF files locally, without any API calls.
package pdfinfo

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageCount returns the number of pages in the PDF at path. It fails on
// files that are not structurally valid PDFs, which lets callers reject bad
// input before paying for an upload.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("inspect pdf: %w", err)
	}
	return n, nil
}
