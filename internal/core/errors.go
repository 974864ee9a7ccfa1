package core

import "errors"

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidPeriod  = errors.New("invalid period")
	ErrInvalidRate    = errors.New("invalid rate")
	ErrInvalidInput   = errors.New("invalid input")
	ErrEmptyName      = errors.New("empty name")
	ErrUnknownPreset  = errors.New("unknown recurrence preset")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrCurrencyLocked = errors.New("account currency cannot change once transactions exist")

	ErrCategoryCannotBeEmpty = errors.New("a user must keep at least one category per type")
	ErrTooManyOccurrences    = errors.New("recurrence expands to too many occurrences")
	ErrRateUnavailable       = errors.New("exchange rate unavailable")
)

// Error codes surfaced to API clients.
const (
	CodeInvalidRequest        = "invalid_request"
	CodeUnauthorized          = "unauthorized"
	CodeForbidden             = "forbidden"
	CodeNotFound              = "not_found"
	CodeCategoryCannotBeEmpty = "category_cannot_be_empty"
	CodeCurrencyLocked        = "currency_locked"
	CodeRateUnavailable       = "rate_unavailable"
	CodeInternalError         = "internal_error"
)

// ErrorCode maps err to the stable client-facing code. Anything unknown is
// an internal error.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrCategoryCannotBeEmpty):
		return CodeCategoryCannotBeEmpty
	case errors.Is(err, ErrCurrencyLocked):
		return CodeCurrencyLocked
	case errors.Is(err, ErrRateUnavailable):
		return CodeRateUnavailable
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidPeriod),
		errors.Is(err, ErrInvalidRate),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrEmptyName),
		errors.Is(err, ErrUnknownPreset),
		errors.Is(err, ErrTooManyOccurrences):
		return CodeInvalidRequest
	default:
		return CodeInternalError
	}
}
