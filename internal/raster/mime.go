package raster

import (
	"bytes"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// SniffFormat detects PDF, PNG and JPEG by magic bytes.
func SniffFormat(b []byte) (format, mimeType string) {
	switch {
	case len(b) >= 5 && bytes.Equal(b[:5], []byte("%PDF-")):
		return constants.PDF, "application/pdf"
	case len(b) >= 8 && bytes.Equal(b[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return constants.IMAGE, "image/png"
	case len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return constants.IMAGE, "image/jpeg"
	default:
		return "", "application/octet-stream"
	}
}
