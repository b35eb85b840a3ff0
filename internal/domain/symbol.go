package domain

import "strings"

// Default sizing constants.
const (
	DefaultPipSize      = 0.0001
	JPYPipSize          = 0.01
	DefaultPipValue     = 1.0
	DefaultContractSize = 100000.0
	DefaultLotSize      = 0.01
)

// SymbolSpec holds per-symbol pip and contract conventions.
// JPY-quoted pairs use a 0.01 pip; everything else defaults to 0.0001.
type SymbolSpec struct {
	Symbol       string  `json:"symbol"`
	PipSize      float64 `json:"pip_size"`
	PipValue     float64 `json:"pip_value"`     // account-currency value of one pip per lot
	ContractSize float64 `json:"contract_size"` // units per 1.0 lot
}

// SpecForSymbol returns the sizing conventions for a symbol.
func SpecForSymbol(symbol string) SymbolSpec {
	spec := SymbolSpec{
		Symbol:       symbol,
		PipSize:      DefaultPipSize,
		PipValue:     DefaultPipValue,
		ContractSize: DefaultContractSize,
	}

	normalized := strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
	if strings.HasSuffix(normalized, "JPY") {
		spec.PipSize = JPYPipSize
	}
	return spec
}
