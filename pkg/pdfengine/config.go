package pdfengine

import (
	"log/slog"
)

// Config holds user options for the engine and its exports
type Config struct {
	Debug        bool         // Draw the text layer visibly in red with word boxes
	TextLayer    string       // Base name of the text layer (page number will be appended)
	PreviewLayer string       // Base name of the preview overlay layer (page number will be appended)
	PreviewColor [3]int       // Fill colour of preview rectangles
	PreviewAlpha float64      // Opacity of preview rectangles
	Compress     bool         // Compress page content streams
	Logger       *slog.Logger // nil = slog.Default()
	Font         FontConfig
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Debug:        false,
		TextLayer:    "OCR Text",          // Will be formatted as "OCR Text (Page X)" in the final PDF
		PreviewLayer: "Redaction Preview", // Will be formatted as "Redaction Preview (Page X)"
		PreviewColor: [3]int{255, 221, 0},
		PreviewAlpha: 0.4,
		Compress:     true,
		Logger:       nil,
		Font:         DefaultFont,
	}
}

// FontConfig contains font settings for text layer rendering
type FontConfig struct {
	Name        string  // Font name (e.g., "Helvetica")
	Style       string  // Font style ("", "B", "I", "BI")
	Size        float64 // Default font size
	AscentRatio float64 // Vertical positioning ratio
}

// DefaultFont sets the default font to Helvetica which is tried and tested for the text layer
var DefaultFont = FontConfig{
	Name:        "Helvetica",
	Style:       "",
	Size:        10,
	AscentRatio: 0.718,
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
