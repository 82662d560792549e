package compose

import "encoding/xml"

// Wire shape of the Easyfatt import file. Element order is contractual;
// the accounting software rejects reordered documents.

type easyfattDocuments struct {
	XMLName   xml.Name     `xml:"EasyfattDocuments"`
	Company   companyXML   `xml:"Company"`
	Documents documentsXML `xml:"Documents"`
}

type companyXML struct {
	Name       string `xml:"Name"`
	Address    string `xml:"Address"`
	Postcode   string `xml:"Postcode"`
	City       string `xml:"City"`
	Province   string `xml:"Province"`
	FiscalCode string `xml:"FiscalCode"`
	VatCode    string `xml:"VatCode"`
	Tel        string `xml:"Tel"`
	Email      string `xml:"Email"`
}

type documentsXML struct {
	Document documentXML `xml:"Document"`
}

type documentXML struct {
	CustomerCode       string  `xml:"CustomerCode"`
	CustomerName       string  `xml:"CustomerName"`
	CustomerAddress    string  `xml:"CustomerAddress"`
	CustomerPostcode   string  `xml:"CustomerPostcode"`
	CustomerCity       string  `xml:"CustomerCity"`
	CustomerProvince   string  `xml:"CustomerProvince"`
	CustomerCountry    string  `xml:"CustomerCountry"`
	CustomerFiscalCode string  `xml:"CustomerFiscalCode"`
	CustomerVatCode    string  `xml:"CustomerVatCode"`
	DocumentType       string  `xml:"DocumentType"`
	Date               string  `xml:"Date"`
	Number             string  `xml:"Number"`
	Numbering          string  `xml:"Numbering"`
	TotalWithoutTax    string  `xml:"TotalWithoutTax"`
	VatAmount          string  `xml:"VatAmount"`
	Total              string  `xml:"Total"`
	PricesIncludeVat   string  `xml:"PricesIncludeVat"`
	PaymentName        string  `xml:"PaymentName"`
	InternalComment    string  `xml:"InternalComment"`
	Rows               rowsXML `xml:"Rows"`
}

type rowsXML struct {
	Rows []rowXML `xml:"Row"`
}

// rowXML covers both row kinds: the vehicle header row carries only a
// Description, billing rows carry the full set.
type rowXML struct {
	Code        string      `xml:"Code,omitempty"`
	Description string      `xml:"Description"`
	Qty         string      `xml:"Qty,omitempty"`
	Price       string      `xml:"Price,omitempty"`
	Discounts   string      `xml:"Discounts,omitempty"`
	VatCode     *vatCodeXML `xml:"VatCode,omitempty"`
	Total       string      `xml:"Total,omitempty"`
}

type vatCodeXML struct {
	Perc  string `xml:"Perc,attr"`
	Class string `xml:"Class,attr"`
}
