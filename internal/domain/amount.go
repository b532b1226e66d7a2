package domain

import "github.com/shopspring/decimal"

// Amount is a whole-unit money value, e.g. 12.34 EUR.
// The provider wire format uses integer minor units instead; conversion
// lives in internal/currency.
type Amount struct {
	Currency string          `json:"currency"`
	Value    decimal.Decimal `json:"value"`
}

func NewAmount(currency string, value decimal.Decimal) Amount {
	return Amount{Currency: currency, Value: value}
}
