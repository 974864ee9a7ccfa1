package amqp

import (
	"time"

	"github.com/goccy/go-json"

	"walletize/internal/core"
)

// EventKind names what happened to the transactions of an event.
type EventKind string

const (
	EventPosted  EventKind = "posted"
	EventEdited  EventKind = "edited"
	EventDeleted EventKind = "deleted"
)

// TransactionEvent is published after every committed transaction
// mutation. It carries the affected rows as they were written (or, for
// deletions, as they were before removal) so consumers never need to read
// them back.
type TransactionEvent struct {
	Kind         EventKind          `json:"kind"`
	UserID       string             `json:"userId"`
	AccountIDs   []string           `json:"accountIds"`
	Transactions []core.Transaction `json:"transactions"`
	Timestamp    time.Time          `json:"timestamp"`
}

// NewTransactionEvent builds an event for the given rows. Account ids are
// collected from the rows in first-seen order.
func NewTransactionEvent(kind EventKind, userID string, txs []core.Transaction) *TransactionEvent {
	seen := make(map[string]bool, len(txs))
	var accounts []string
	for _, t := range txs {
		if !seen[t.AccountID] {
			seen[t.AccountID] = true
			accounts = append(accounts, t.AccountID)
		}
	}
	return &TransactionEvent{
		Kind:         kind,
		UserID:       userID,
		AccountIDs:   accounts,
		Transactions: txs,
		Timestamp:    time.Now(),
	}
}

// TransactionIDs returns the ids of the rows carried by the event.
func (e *TransactionEvent) TransactionIDs() []string {
	ids := make([]string, len(e.Transactions))
	for i, t := range e.Transactions {
		ids[i] = t.ID
	}
	return ids
}

// ToJSON converts the message to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes an event and rejects unknown kinds.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Kind {
	case EventPosted, EventEdited, EventDeleted:
	default:
		return nil, &UnknownKindError{Kind: e.Kind}
	}
	return &e, nil
}

// UnknownKindError reports an event kind this consumer cannot handle.
type UnknownKindError struct {
	Kind EventKind
}

func (e *UnknownKindError) Error() string {
	return "unknown transaction event kind " + string(e.Kind)
}
