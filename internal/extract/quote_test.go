package extract

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quoteFixture = `PREVENTIVO DI SPESA
Pratica Fornitore: 555123
Pratica Hertz: 6440115
Targa: GZ605WMT
Telaio: ZFA25000002K12345
Km: 48210
Veicolo (Marca - Modello - Versione): FIAT - DUCATO - 2.3 MJT

Voci di Danno Descrizione C.R. Qt Prezzo Sconto Totale
7431 PARAURTI POSTERIORE 1 120,00 120,00
VERNICE METALLIZZATA 2 45,00 10 % 81,00
GUARNIZIONE PORTA 1 15,00 0,00
Totale tempi 3,5
Manodopera meccanica ore 1 x 40,00
Manodopera carrozzeria ore 2,5 x 35,00
Ricambi 201,00
Smaltimento Rifiuti € 10,00
IMPONIBILE 338,50
TOTALI 338,50
Note: consegna prevista entro fine mese
`

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQuoteExtractor_FullLayout(t *testing.T) {
	extractor := NewQuoteExtractor(newTestLogger())

	record, err := extractor.ExtractFields(context.Background(), quoteFixture)
	require.NoError(t, err)

	assert.Equal(t, "6440115", record.Pratica)
	assert.Equal(t, "GZ605WM", record.Plate, "trailing T marker is stripped")
	require.NotNil(t, record.SupplierRef)
	assert.Equal(t, "555123", *record.SupplierRef)
	require.NotNil(t, record.VIN)
	assert.Equal(t, "ZFA25000002K12345", *record.VIN)
	require.NotNil(t, record.MileageKm)
	assert.Equal(t, int64(48210), *record.MileageKm)
	require.NotNil(t, record.Vehicle)
	assert.Equal(t, "FIAT - DUCATO - 2.3 MJT", *record.Vehicle)

	require.Len(t, record.LineItems, 5)

	first := record.LineItems[0]
	require.NotNil(t, first.Code)
	assert.Equal(t, "7431", *first.Code)
	assert.Equal(t, "PARAURTI POSTERIORE - C.R: 7431", first.Description)
	assert.Equal(t, "1", first.Qty.String())
	assert.Equal(t, "120", first.UnitPrice.String())
	assert.Equal(t, "120", first.Total.String())

	second := record.LineItems[1]
	assert.Nil(t, second.Code)
	assert.Equal(t, "VERNICE METALLIZZATA", second.Description)
	assert.Equal(t, "2", second.Qty.String())
	require.NotNil(t, second.DiscountPct)
	assert.Equal(t, "10", second.DiscountPct.String())
	assert.Equal(t, "81", second.Total.String())

	assert.Equal(t, "Smaltimento Rifiuti", record.LineItems[2].Description)
	assert.Equal(t, "10", record.LineItems[2].Total.String())

	assert.Equal(t, "Manodopera meccanica (1h x 40€/h)", record.LineItems[3].Description)
	assert.Equal(t, "40", record.LineItems[3].Total.String())
	assert.Equal(t, "Manodopera carrozzeria (2.5h x 35€/h)", record.LineItems[4].Description)
	assert.Equal(t, "87.5", record.LineItems[4].Total.String())

	require.NotNil(t, record.Total)
	assert.Equal(t, "338.5", record.Total.String())
}

func TestQuoteExtractor_ZeroTotalRowsDropped(t *testing.T) {
	extractor := NewQuoteExtractor(newTestLogger())

	text := "PREVENTIVO\nPratica Hertz: 100\nTarga: AB123CD\nGUARNIZIONE PORTA 1 15,00 0,00\n"
	record, err := extractor.ExtractFields(context.Background(), text)
	require.NoError(t, err)
	assert.Empty(t, record.LineItems)
	require.NotNil(t, record.Total)
	assert.True(t, record.Total.IsZero())
}

func TestQuoteExtractor_MissingRequiredFields(t *testing.T) {
	extractor := NewQuoteExtractor(newTestLogger())

	tests := []struct {
		name string
		text string
	}{
		{name: "no pratica", text: "PREVENTIVO\nTarga: AB123CD\n"},
		{name: "no plate", text: "PREVENTIVO\nPratica Hertz: 6440115\n"},
		{name: "empty", text: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractor.ExtractFields(context.Background(), tt.text)
			require.ErrorIs(t, err, ErrMissingRequiredField)
		})
	}
}

func TestQuoteExtractor_LaborNotDuplicated(t *testing.T) {
	extractor := NewQuoteExtractor(newTestLogger())

	text := `PREVENTIVO
Pratica Hertz: 200
Targa: CD456EF
Manodopera carrozzeria ore 2 x 30,00
Manodopera carrozzeria ore 2 x 30,00
`
	record, err := extractor.ExtractFields(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, record.LineItems, 1)
	assert.Equal(t, "Manodopera carrozzeria (2h x 30€/h)", record.LineItems[0].Description)
	assert.Equal(t, "60", record.LineItems[0].Total.String())
}
