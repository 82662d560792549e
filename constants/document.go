package constants

// DocType is the kind of source document a PDF was recognized as.
type DocType string

const (
	DocTypeQuote         DocType = "QUOTE"
	DocTypePurchaseOrder DocType = "PURCHASE_ORDER"
)

// Counterpart returns the document type that pairs with t.
func (t DocType) Counterpart() DocType {
	if t == DocTypeQuote {
		return DocTypePurchaseOrder
	}
	return DocTypeQuote
}

// DocumentStatus is the canonical status for rows in documents.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	DocStatusPending    DocumentStatus = "PENDING"    // waiting for its counterpart
	DocStatusConsumed   DocumentStatus = "CONSUMED"   // paired, invoice generated
	DocStatusSuperseded DocumentStatus = "SUPERSEDED" // replaced by a newer candidate for the same key
	DocStatusPurged     DocumentStatus = "PURGED"     // removed by an operator
)

// DocumentSource labels the intake channel a document arrived through.
type DocumentSource string

const (
	SourceUpload DocumentSource = "upload"
	SourceMail   DocumentSource = "mail"
	SourceDrop   DocumentSource = "drop"
	SourceBatch  DocumentSource = "batch"
)

// InvoiceStatus is the canonical status for rows in invoices.
type InvoiceStatus string

const (
	InvoiceStatusIssued InvoiceStatus = "ISSUED"
	InvoiceStatusVoided InvoiceStatus = "VOIDED" // number stays burned, never reissued
)
