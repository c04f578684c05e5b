package llm

import (
	"encoding/base64"

	"github.com/joseph-ayodele/invoice-extractor/internal/raster"
)

// DataURL encodes a page image as a data: URL for providers that take inline image URLs.
func DataURL(page raster.Page) string {
	mt := page.MIMEType
	if mt == "" {
		mt = "image/png"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(page.Data)
}
