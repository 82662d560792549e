package entity

// SellerProfile is the issuing company block of every generated invoice.
// Loaded from the initial-state file, never from the database.
type SellerProfile struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	Postcode   string `json:"postcode"`
	City       string `json:"city"`
	Province   string `json:"province"`
	FiscalCode string `json:"fiscal_code"`
	VatCode    string `json:"vat_code"`
	Tel        string `json:"tel"`
	Email      string `json:"email"`
}

// BuyerProfile is the customer block of every generated invoice.
type BuyerProfile struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	Postcode   string `json:"postcode"`
	City       string `json:"city"`
	Province   string `json:"province"`
	Country    string `json:"country"`
	FiscalCode string `json:"fiscal_code"`
	VatCode    string `json:"vat_code"`
}
