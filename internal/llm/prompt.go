package llm

import (
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// BuildExtractionPrompt composes the single fixed prompt sent with every page image.
func BuildExtractionPrompt() string {
	var b strings.Builder
	b.WriteString("You are reading one scanned page of a tax invoice.\n")
	b.WriteString("Extract these ")
	b.WriteString(strconv.Itoa(len(constants.InvoiceFields)))
	b.WriteString(" fields as a flat JSON object, using exactly these keys:\n")
	b.WriteString(strings.Join(constants.InvoiceFields, ", "))
	b.WriteString(".\n\nFormatting hints:\n")
	for _, f := range constants.InvoiceFields {
		if h, ok := constants.FieldHints[f]; ok {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString(": ")
			b.WriteString(h)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nCopy values as printed; do not compute or convert them. ")
	b.WriteString("Use string values only, never nested objects or arrays. ")
	b.WriteString("If a field is not visible on the page, use \"" + constants.NotFound + "\".\n")
	b.WriteString("Return ONLY valid JSON.")
	return b.String()
}

