package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schiavigomme/hertz-invoicer/constants"
)

// stubTextExtractor feeds canned text into the service so layout
// dispatch can be tested without real PDFs.
type stubTextExtractor struct {
	text string
	err  error
}

func (s stubTextExtractor) Extract(_ context.Context, _ []byte) (TextExtractionResult, error) {
	if s.err != nil {
		return TextExtractionResult{}, s.err
	}
	return TextExtractionResult{Text: s.text, Pages: 1, Duration: time.Millisecond}, nil
}

func TestService_DispatchesQuote(t *testing.T) {
	svc := NewService(stubTextExtractor{text: quoteFixture}, newTestLogger())

	record, err := svc.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, constants.DocTypeQuote, record.DocType)
	assert.Equal(t, "6440115", record.Pratica)
}

func TestService_DispatchesPurchaseOrder(t *testing.T) {
	svc := NewService(stubTextExtractor{text: purchaseOrderFixture}, newTestLogger())

	record, err := svc.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, constants.DocTypePurchaseOrder, record.DocType)
	require.NotNil(t, record.PONumber)
	assert.Equal(t, "98021", *record.PONumber)
}

func TestService_UnrecognizedLayout(t *testing.T) {
	svc := NewService(stubTextExtractor{text: "monthly parking statement"}, newTestLogger())

	_, err := svc.Extract(context.Background(), []byte("%PDF"))
	require.ErrorIs(t, err, ErrUnrecognizedLayout)
}

func TestService_TextExtractionFailure(t *testing.T) {
	boom := errors.New("broken xref")
	svc := NewService(stubTextExtractor{err: boom}, newTestLogger())

	_, err := svc.Extract(context.Background(), []byte("%PDF"))
	require.ErrorIs(t, err, boom)
}

func TestDetectDocType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want constants.DocType
		ok   bool
	}{
		{name: "quote marker", text: "preventivo di spesa n. 42", want: constants.DocTypeQuote, ok: true},
		{name: "purchase order marker", text: "HERTZ Purchase Order #123", want: constants.DocTypePurchaseOrder, ok: true},
		{name: "quote wins when both appear", text: "PREVENTIVO for PURCHASE ORDER", want: constants.DocTypeQuote, ok: true},
		{name: "unknown layout", text: "some unrelated document", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectDocType(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
