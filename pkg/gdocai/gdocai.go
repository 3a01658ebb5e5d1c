// Package gdocai turns a PDF into the text model and page images the redaction engine
// works on, using Google Document AI for the OCR.
//
// Document AI returns tokens, lines, paragraphs and blocks with normalised bounding
// polygons plus one raster per page. This package converts them into an hOCR document
// whose page space is the pixel grid of the page rasters, so word boxes, search hits and
// redaction regions all line up with the images used for rendering and permanent export.
//
// Main Functions:
//
// - Process: Sends a PDF to Document AI and converts the response
// - FromProto: Converts an already fetched Document AI response
// - CreateHOCRStruct: Converts a Document AI response into hOCR
// - ToJSON: Debug dump of the raw response
//
// Usage Requirements:
//
// - Google Cloud project with Document AI API enabled
// - Document AI processor configured for OCR
// - Authentication via a credentials file or GOOGLE_APPLICATION_CREDENTIALS
package gdocai

import (
	"context"
	"fmt"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/gardar/redactra/pkg/hocr"
)

// Config identifies the Document AI processor.
type Config struct {
	ProjectID       string
	Location        string // e.g. "us" or "eu"
	ProcessorID     string
	CredentialsFile string // empty = GOOGLE_APPLICATION_CREDENTIALS
}

// Validate reports missing processor settings.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("document AI config is nil")
	}
	if c.ProjectID == "" || c.Location == "" || c.ProcessorID == "" {
		return fmt.Errorf("document AI config needs project_id, location and processor_id")
	}
	return nil
}

// Result is a processed document.
type Result struct {
	Raw    *documentaipb.Document // Original Document AI response
	HOCR   *hocr.HOCR
	Images [][]byte // One raster per page, nil unless every page returned one
}

// Process sends the PDF to Document AI and converts the response.
func Process(ctx context.Context, pdfBytes []byte, cfg *Config) (*Result, error) {
	rawDoc, err := ProcessDocument(ctx, pdfBytes, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}
	return FromProto(rawDoc)
}

// FromProto converts a Document AI response into hOCR and page images.
func FromProto(doc *documentaipb.Document) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("document AI returned no pages")
	}

	hocrDoc, err := CreateHOCRStruct(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create HOCR: %w", err)
	}

	res := &Result{Raw: doc, HOCR: hocrDoc}
	images := make([][]byte, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		img, err := ExtractImageFromPage(page)
		if err != nil {
			images = nil
			break
		}
		images = append(images, img)
	}
	res.Images = images
	return res, nil
}
