package pdfengine

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// normalizeCoords rescales page-space coords to another coordinate system of the same origin.
func normalizeCoords(x, y, fromW, fromH, toW, toH float64) (float64, float64) {
	nx := (x / fromW) * toW
	ny := (y / fromH) * toH
	return nx, ny
}

// detectImageType tries to figure out whether the data is PNG, JPEG, etc.
func detectImageType(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image config: %w", err)
	}
	return strings.ToUpper(format), nil
}

// unescapePDFString resolves the escape sequences of a PDF literal string body.
func unescapePDFString(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '\r', '\n':
			// line continuation
			if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 8, 8)
			b.WriteByte(byte(v))
			i = j - 1
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// decodePDFText converts the raw bytes of a PDF text string to UTF-8: UTF-16BE when
// the string starts with a byte order mark, Latin-1 otherwise.
func decodePDFText(raw string) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if s, err := dec.String(raw); err == nil {
			return s
		}
	}
	if s, err := charmap.ISO8859_1.NewDecoder().String(raw); err == nil {
		return s
	}
	return raw
}

// pdfStringValue decodes a literal "(...)" or hex "<...>" PDF string token.
func pdfStringValue(token string) string {
	token = strings.TrimSpace(token)
	switch {
	case strings.HasPrefix(token, "("):
		return decodePDFText(unescapePDFString(strings.TrimSuffix(token[1:], ")")))
	case strings.HasPrefix(token, "<"):
		digits := strings.Join(strings.Fields(strings.Trim(token, "<>")), "")
		if len(digits)%2 == 1 {
			digits += "0"
		}
		raw, err := hex.DecodeString(digits)
		if err != nil {
			return ""
		}
		return decodePDFText(string(raw))
	}
	return token
}

var pdfDatePattern = regexp.MustCompile(`^D:(\d{4})(\d{2})?(\d{2})?(\d{2})?(\d{2})?(\d{2})?`)

// parsePDFDate reads the date part of a "D:YYYYMMDDHHmmSS" value. Time zone offsets
// are ignored and the result is in UTC.
func parsePDFDate(s string) (time.Time, bool) {
	m := pdfDatePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	part := func(i, def int) int {
		if m[i] == "" {
			return def
		}
		v, _ := strconv.Atoi(m[i])
		return v
	}
	return time.Date(part(1, 0), time.Month(part(2, 1)), part(3, 1), part(4, 0), part(5, 0), part(6, 0), 0, time.UTC), true
}
