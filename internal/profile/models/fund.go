package models

import (
	"github.com/shopspring/decimal"

	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// FundType is the kind of proof of funds.
type FundType string

const (
	FundCash        FundType = "cash"
	FundCard        FundType = "card"
	FundBankBalance FundType = "bank_balance"
	FundInvestment  FundType = "investment"
	FundDocument    FundType = "document"
)

func (t FundType) IsValid() bool {
	switch t {
	case FundCash, FundCard, FundBankBalance, FundInvestment, FundDocument:
		return true
	}
	return false
}

// FundItem is one proof-of-funds entry. PhotoURI is an opaque handle owned by
// the photo storage collaborator.
type FundItem struct {
	Record      `merge:"-"`
	Type        FundType         `json:"type,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	Description string           `json:"description,omitempty"`
	PhotoURI    string           `json:"photo_uri,omitempty"`
}

func (f *FundItem) Kind() Kind                    { return KindFundItem }
func (f *FundItem) Destination() id.DestinationID { return "" }

func (f *FundItem) Check() error {
	if f.Type != "" && !f.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown fund type")
	}
	if f.Amount != nil && f.Amount.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "fund amount must not be negative")
	}
	return nil
}
