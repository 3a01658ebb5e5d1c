// Package hocr implements the hOCR page model used as the text layer of a redaction engine.
//
// hOCR is an HTML-based format describing recognised text with positional data. The
// document engine uses it as its source of word boxes and search text, and writes it
// back out (minus redacted words) next to permanently redacted exports.
//
// The hierarchy follows the format: Document → Pages → Areas → Paragraphs → Lines → Words.
// A page's bbox defines page space: every word box is expressed in those units.
//
// Main Functions:
//
// - ParseHOCR: parses hOCR HTML into the object model
// - GenerateHOCRDocument: renders the object model back to hOCR HTML
// - Page.TextLines: flattens a page into visual lines in reading order
// - HOCR.FilterWords: copies a document, keeping only selected words
package hocr
