package constants

// NotFound marks a schema field the model did not return.
const NotFound = "Not Found"

// InvoiceFields is the output contract: every extracted record carries exactly these keys, in this order.
var InvoiceFields = []string{
	"Buyer Name",
	"Consignee name",
	"Tax Invoice Number",
	"Invoice Date",
	"Order",
	"Place of supply",
	"Delivery From",
	"Product",
	"Description of Goods",
	"Net Wt (MT)",
	"Transporter",
	"Vehicle Number",
	"Unit Rate/MT",
	"Discount/MT",
	"Invoice Value",
	"Invoice Value with GST",
}

var fieldSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(InvoiceFields))
	for _, f := range InvoiceFields {
		m[f] = struct{}{}
	}
	return m
}()

// FieldNames returns a copy of InvoiceFields so callers can't reorder the contract.
func FieldNames() []string {
	out := make([]string, len(InvoiceFields))
	copy(out, InvoiceFields)
	return out
}

func IsInvoiceField(name string) bool {
	_, ok := fieldSet[name]
	return ok
}

// FieldHints bias the model toward the conventions seen on these invoices.
// They are only used to build the prompt, values are never validated against them.
var FieldHints = map[string]string{
	"Tax Invoice Number":     "usually a 10-digit number",
	"Invoice Date":           "DD.MM.YYYY as printed",
	"Order":                  "sales order number, usually 8 digits",
	"Net Wt (MT)":            "decimal with 3 places, e.g. 24.350",
	"Vehicle Number":         "Indian registration plate, e.g. OD02AB1234",
	"Unit Rate/MT":           "decimal with 2 places, no currency symbol",
	"Discount/MT":            "decimal with 2 places, 0.00 if none",
	"Invoice Value":          "taxable value before GST, decimal with 2 places",
	"Invoice Value with GST": "grand total including GST, decimal with 2 places",
}
