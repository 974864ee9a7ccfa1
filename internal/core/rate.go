package core

import (
	"github.com/shopspring/decimal"
)

// RatePrecision is the number of decimal digits kept on a stored rate.
const RatePrecision = 8

// ManualRate is an explicit base/quote pair supplied by the user.
type ManualRate struct {
	Base  decimal.Decimal `json:"base"`
	Quote decimal.Decimal `json:"quote"`
}

// RateInput collects what is needed to resolve the rate of a transaction
// posted in TransactionCurrency against an account held in AccountCurrency.
// AccountRate and TransactionRate come from the same snapshot and express
// units per one unit of the snapshot base.
type RateInput struct {
	AccountCurrency     string
	TransactionCurrency string
	AccountRate         decimal.Decimal
	TransactionRate     decimal.Decimal
	Manual              *ManualRate
}

// AutoRate derives a stored rate from two snapshot rates:
// (1/accountRate) * transactionRate, truncated to RatePrecision digits.
func AutoRate(accountRate, transactionRate decimal.Decimal) (decimal.Decimal, error) {
	if !accountRate.IsPositive() || !transactionRate.IsPositive() {
		return decimal.Zero, ErrRateUnavailable
	}
	// Divide with headroom before truncating so the 8th digit is exact.
	r := transactionRate.DivRound(accountRate, RatePrecision+8)
	return r.Truncate(RatePrecision), nil
}

// ManualRateValue returns floor((quote/base) * 1e8) / 1e8.
func ManualRateValue(base, quote decimal.Decimal) (decimal.Decimal, error) {
	if !base.IsPositive() || !quote.IsPositive() {
		return decimal.Zero, ErrInvalidRate
	}
	r := quote.DivRound(base, RatePrecision+8)
	// Both operands are positive so truncation is floor.
	return r.Truncate(RatePrecision), nil
}

// ResolveRate returns the rate to store on a transaction, or nil when the
// transaction and account share a currency. A manual rate wins over the
// snapshot rates.
func ResolveRate(in RateInput) (*decimal.Decimal, error) {
	if in.AccountCurrency == in.TransactionCurrency {
		return nil, nil
	}
	var (
		r   decimal.Decimal
		err error
	)
	if in.Manual != nil {
		r, err = ManualRateValue(in.Manual.Base, in.Manual.Quote)
	} else {
		r, err = AutoRate(in.AccountRate, in.TransactionRate)
	}
	if err != nil {
		return nil, err
	}
	if !r.IsPositive() {
		return nil, ErrRateUnavailable
	}
	return &r, nil
}

// ConvertToAccount converts a transaction-currency amount into the account
// currency: round(amount / rate). A nil rate is the identity.
func ConvertToAccount(amount Amount, rate *decimal.Decimal) Amount {
	if rate == nil || !rate.IsPositive() {
		return amount
	}
	v := decimal.NewFromInt(int64(amount)).DivRound(*rate, 0)
	return Amount(v.IntPart())
}

// ConvertFromAccount is the inverse of ConvertToAccount: round(amount * rate).
func ConvertFromAccount(amount Amount, rate *decimal.Decimal) Amount {
	if rate == nil || !rate.IsPositive() {
		return amount
	}
	v := decimal.NewFromInt(int64(amount)).Mul(*rate).Round(0)
	return Amount(v.IntPart())
}

// ConvertBetween converts an amount between two currencies given their
// rates against a common base: amount * toRate / fromRate, rounded.
func ConvertBetween(amount Amount, fromRate, toRate decimal.Decimal) (Amount, error) {
	if !fromRate.IsPositive() || !toRate.IsPositive() {
		return 0, ErrRateUnavailable
	}
	v := decimal.NewFromInt(int64(amount)).Mul(toRate).DivRound(fromRate, 0)
	return Amount(v.IntPart()), nil
}
