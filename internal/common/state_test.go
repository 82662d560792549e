package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validStateJSON = `{
  "seeds": {"HM": 120, "HG": 12},
  "seller": {
    "name": "SCHIAVI GOMME SRL",
    "address": "VIA ROMA 1",
    "postcode": "29017",
    "city": "FIORENZUOLA D'ARDA",
    "province": "PC",
    "fiscal_code": "01234567890",
    "vat_code": "01234567890",
    "tel": "0523 000000",
    "email": "amministrazione@schiavigomme.example"
  },
  "buyer": {
    "code": "HERTZ",
    "name": "HERTZ ITALIANA SRL",
    "address": "VIA DEL CASALE CAVALLARI 204",
    "postcode": "00156",
    "city": "ROMA",
    "province": "RM",
    "country": "IT",
    "fiscal_code": "00482250585",
    "vat_code": "00890931009"
  },
  "payment_name": "Bonifico 60 gg",
  "vat_rate_pct": 22
}`

func writeState(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadInitialStateReadsValidFile(t *testing.T) {
	state, err := LoadInitialState(writeState(t, validStateJSON))
	require.NoError(t, err)

	assert.Equal(t, int64(120), state.Seeds["HM"])
	assert.Equal(t, int64(12), state.Seeds["HG"])
	assert.Equal(t, "SCHIAVI GOMME SRL", state.Seller.Name)
	assert.Equal(t, "HERTZ ITALIANA SRL", state.Buyer.Name)
	assert.Equal(t, "IT", state.Buyer.Country)
	assert.Equal(t, "Bonifico 60 gg", state.PaymentName)
	assert.Equal(t, "22", state.VatRatePct.String())
}

func TestLoadInitialStateWithoutSeeds(t *testing.T) {
	content := `{
		"seller": {"name": "a", "address": "a", "postcode": "a", "city": "a", "province": "a", "fiscal_code": "a", "vat_code": "a"},
		"buyer": {"code": "a", "name": "a", "address": "a", "postcode": "a", "city": "a", "province": "a", "country": "IT", "fiscal_code": "a", "vat_code": "a"},
		"payment_name": "x", "vat_rate_pct": 22}`

	state, err := LoadInitialState(writeState(t, content))
	require.NoError(t, err)

	// Both series start at zero when no seed is configured.
	assert.Zero(t, state.Seeds["HM"])
	assert.Zero(t, state.Seeds["HG"])
}

func TestLoadInitialStateRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty profiles", `{"seller": {}, "buyer": {}, "payment_name": "x", "vat_rate_pct": 22}`},
		{"unknown series", `{"seeds": {"HM": 1, "HG": 1, "XX": 1},
			"seller": {"name": "a", "address": "a", "postcode": "a", "city": "a", "province": "a", "fiscal_code": "a", "vat_code": "a"},
			"buyer": {"code": "a", "name": "a", "address": "a", "postcode": "a", "city": "a", "province": "a", "country": "IT", "fiscal_code": "a", "vat_code": "a"},
			"payment_name": "x", "vat_rate_pct": 22}`},
		{"negative seed", `{"seeds": {"HM": -1, "HG": 1},
			"seller": {"name": "a", "address": "a", "postcode": "a", "city": "a", "province": "a", "fiscal_code": "a", "vat_code": "a"},
			"buyer": {"code": "a", "name": "a", "address": "a", "postcode": "a", "city": "a", "province": "a", "country": "IT", "fiscal_code": "a", "vat_code": "a"},
			"payment_name": "x", "vat_rate_pct": 22}`},
		{"country code too long", `{"seeds": {"HM": 1, "HG": 1},
			"seller": {"name": "a", "address": "a", "postcode": "a", "city": "a", "province": "a", "fiscal_code": "a", "vat_code": "a"},
			"buyer": {"code": "a", "name": "a", "address": "a", "postcode": "a", "city": "a", "province": "a", "country": "ITA", "fiscal_code": "a", "vat_code": "a"},
			"payment_name": "x", "vat_rate_pct": 22}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadInitialState(writeState(t, tt.content))
			require.Error(t, err)

			var appErr *AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "STATE_ERROR", appErr.Code)
		})
	}
}

func TestLoadInitialStateMissingFile(t *testing.T) {
	_, err := LoadInitialState(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read state file")
}
