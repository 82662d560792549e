package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/schiavigomme/hertz-invoicer/internal/entity"
)

// InitialState is the operator-maintained bootstrap file: numbering seeds,
// company profiles and billing terms. Seeds only matter on first start;
// durable counters win afterwards.
type InitialState struct {
	Seeds       map[string]int64     `json:"seeds"`
	Seller      entity.SellerProfile `json:"seller"`
	Buyer       entity.BuyerProfile  `json:"buyer"`
	PaymentName string               `json:"payment_name"`
	VatRatePct  decimal.Decimal      `json:"vat_rate_pct"`
}

// LoadInitialState reads and validates the state file at path.
func LoadInitialState(path string) (*InitialState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError(err, "read state file")
	}
	if err := validateInitialState(raw); err != nil {
		return nil, NewAppError("STATE_ERROR", fmt.Sprintf("state file %s is invalid", path), err)
	}

	var state InitialState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, WrapError(err, "decode state file")
	}
	for series, seed := range state.Seeds {
		if seed < 0 {
			return nil, NewAppError("STATE_ERROR", fmt.Sprintf("seed for series %s is negative", series), ErrValidation)
		}
	}
	return &state, nil
}

// buildStateJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
func buildStateJSONSchema() map[string]any {
	addressBlock := func(extra map[string]any, required []string) map[string]any {
		props := map[string]any{
			"name":        map[string]any{"type": "string", "minLength": 1},
			"address":     map[string]any{"type": "string", "minLength": 1},
			"postcode":    map[string]any{"type": "string", "minLength": 1},
			"city":        map[string]any{"type": "string", "minLength": 1},
			"province":    map[string]any{"type": "string", "minLength": 1},
			"fiscal_code": map[string]any{"type": "string", "minLength": 1},
			"vat_code":    map[string]any{"type": "string", "minLength": 1},
		}
		for k, v := range extra {
			props[k] = v
		}
		return map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           props,
			"required":             required,
		}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			// Seeds are optional: a series without one starts at zero.
			"seeds": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"HM": map[string]any{"type": "integer", "minimum": 0},
					"HG": map[string]any{"type": "integer", "minimum": 0},
				},
			},
			"seller": addressBlock(map[string]any{
				"tel":   map[string]any{"type": "string"},
				"email": map[string]any{"type": "string"},
			}, []string{"name", "address", "postcode", "city", "province", "fiscal_code", "vat_code"}),
			"buyer": addressBlock(map[string]any{
				"code":    map[string]any{"type": "string", "minLength": 1},
				"country": map[string]any{"type": "string", "minLength": 2, "maxLength": 2},
			}, []string{"code", "name", "address", "postcode", "city", "province", "country", "fiscal_code", "vat_code"}),
			"payment_name": map[string]any{"type": "string", "minLength": 1},
			"vat_rate_pct": map[string]any{"type": "number", "minimum": 0},
		},
		"required": []string{"seller", "buyer", "payment_name", "vat_rate_pct"},
	}
}

// validateInitialState validates raw JSON against the embedded schema.
func validateInitialState(raw []byte) error {
	b, err := json.Marshal(buildStateJSONSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("state.schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("state.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("state does not match schema: %w", err)
	}
	return nil
}
