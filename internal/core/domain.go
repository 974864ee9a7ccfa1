package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType ids match the seeded transaction_types rows.
type TransactionType int

const (
	TypeExpense  TransactionType = 1
	TypeIncome   TransactionType = 2
	TypeTransfer TransactionType = 3
	TypeUpdate   TransactionType = 4
)

func (t TransactionType) String() string {
	switch t {
	case TypeExpense:
		return "Expense"
	case TypeIncome:
		return "Income"
	case TypeTransfer:
		return "Transfer"
	case TypeUpdate:
		return "Update"
	default:
		return "Unknown"
	}
}

// IsValid reports whether t is one of the seeded types.
func (t TransactionType) IsValid() bool {
	return t >= TypeExpense && t <= TypeUpdate
}

// UserEditable reports whether users may own categories of this type.
// Transfer and Update categories are system reserved.
func (t TransactionType) UserEditable() bool {
	return t == TypeExpense || t == TypeIncome
}

// Seeded system categories. Their ids are fixed by the initial migration.
const (
	CategoryIncomingTransfer = "sys-incoming-transfer"
	CategoryOutgoingTransfer = "sys-outgoing-transfer"
	CategoryBalanceUpdate    = "sys-balance-update"
)

// AccountCategory is the asset/liability subtype of a financial account.
type AccountCategory struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Liability bool   `json:"liability"`
}

// InviteStatus is the lifecycle state of an account invite. PENDING moves
// to ACCEPTED once; declining is a deletion.
type InviteStatus string

const (
	InvitePending  InviteStatus = "PENDING"
	InviteAccepted InviteStatus = "ACCEPTED"
)

// DeleteType scopes deletion of a recurring transaction.
type DeleteType string

const (
	DeleteThis             DeleteType = "this"
	DeleteThisAndFollowing DeleteType = "this_and_following"
	DeleteAll              DeleteType = "all"
)

// ParseDeleteType defaults to DeleteThis when s is empty.
func ParseDeleteType(s string) (DeleteType, error) {
	switch DeleteType(strings.TrimSpace(s)) {
	case "", DeleteThis:
		return DeleteThis, nil
	case DeleteThisAndFollowing:
		return DeleteThisAndFollowing, nil
	case DeleteAll:
		return DeleteAll, nil
	default:
		return "", ErrInvalidInput
	}
}

type (
	User struct {
		ID             string    `json:"id"`
		Email          string    `json:"email"`
		MainCurrencyID string    `json:"mainCurrencyId"`
		CreatedAt      time.Time `json:"createdAt"`
	}

	Currency struct {
		ID     string `json:"id"`
		Code   string `json:"code"`
		Symbol string `json:"symbol"`
	}

	// RateSnapshot is one refresh of the currency feed. Rates are units of
	// each currency per one unit of Base.
	RateSnapshot struct {
		ID        int64                      `json:"id"`
		Base      string                     `json:"base"`
		FetchedAt time.Time                  `json:"fetchedAt"`
		Rates     map[string]decimal.Decimal `json:"rates"`
	}

	FinancialAccount struct {
		ID           string    `json:"id"`
		UserID       string    `json:"userId"`
		Name         string    `json:"name"`
		CategoryID   int       `json:"categoryId"`
		CurrencyID   string    `json:"currencyId"`
		InitialValue Amount    `json:"initialValue"`
		Icon         string    `json:"icon,omitempty"`
		Color        string    `json:"color,omitempty"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	AccountInvite struct {
		ID        string       `json:"id"`
		AccountID string       `json:"accountId"`
		OwnerID   string       `json:"ownerId"`
		Email     string       `json:"email"`
		UserID    string       `json:"userId,omitempty"`
		Status    InviteStatus `json:"status"`
		CreatedAt time.Time    `json:"createdAt"`
	}

	TransactionCategory struct {
		ID     string          `json:"id"`
		UserID string          `json:"userId,omitempty"` // empty for system rows
		TypeID TransactionType `json:"typeId"`
		Name   string          `json:"name"`
		Icon   string          `json:"icon,omitempty"`
		Color  string          `json:"color,omitempty"`
	}

	// Transaction is a single posted row. Amount is in the transaction
	// currency; AccountAmount is the same value in the account currency,
	// fixed at write time with Rate.
	Transaction struct {
		ID            string           `json:"id"`
		AccountID     string           `json:"accountId"`
		CategoryID    string           `json:"categoryId"`
		TypeID        TransactionType  `json:"typeId"`
		CurrencyID    string           `json:"currencyId"`
		Amount        Amount           `json:"amount"`
		AccountAmount Amount           `json:"accountAmount"`
		Rate          *decimal.Decimal `json:"rate"`
		Date          Date             `json:"date"`
		Description   string           `json:"description,omitempty"`
		RecurrenceID  string           `json:"recurrenceId,omitempty"`
		TransferID    string           `json:"transferId,omitempty"`
		CreatedAt     time.Time        `json:"createdAt"`
	}

	// TransactionTransfer pairs the two sides of a transfer. At least one
	// side is always set.
	TransactionTransfer struct {
		ID                       string `json:"id"`
		OriginTransactionID      string `json:"originTransactionId,omitempty"`
		DestinationTransactionID string `json:"destinationTransactionId,omitempty"`
	}
)

// Validate checks the editable fields of an account.
func (a FinancialAccount) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return ErrInvalidInput
	}
	if a.CurrencyID == "" || a.CategoryID <= 0 {
		return ErrInvalidInput
	}
	return nil
}

// Validate checks a user-supplied category.
func (c TransactionCategory) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return ErrInvalidInput
	}
	if !c.TypeID.UserEditable() {
		return ErrInvalidInput
	}
	return nil
}

// Validate checks a transaction before it is written.
func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return ErrInvalidDate
	}
	if t.AccountID == "" || t.CategoryID == "" || t.CurrencyID == "" {
		return ErrInvalidInput
	}
	if !t.TypeID.IsValid() {
		return ErrInvalidInput
	}
	if len(t.Description) > 200 {
		return ErrInvalidInput
	}
	return nil
}

// Other returns the side of the transfer that is not txID, or "".
func (tt TransactionTransfer) Other(txID string) string {
	switch txID {
	case tt.OriginTransactionID:
		return tt.DestinationTransactionID
	case tt.DestinationTransactionID:
		return tt.OriginTransactionID
	default:
		return ""
	}
}
