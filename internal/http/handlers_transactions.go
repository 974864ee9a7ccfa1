package http

import (
	"net/http"

	"walletize/internal/core"
	"walletize/internal/log"
	"walletize/internal/services"
)

type transactionFields struct {
	AccountID   string           `json:"accountId"`
	Amount      core.Amount      `json:"amount"`
	CategoryID  string           `json:"categoryId"`
	CurrencyID  string           `json:"currencyId"`
	Date        core.Date        `json:"date"`
	Rate        *core.ManualRate `json:"rate"`
	Description string           `json:"description"`
}

type createTransactionRequest struct {
	Transaction transactionFields `json:"transaction"`
	// The web client has always sent the misspelled key.
	SelectedReccurence string    `json:"selectedReccurence"`
	SelectedRecurrence string    `json:"selectedRecurrence"`
	RecurrenceEndDate  core.Date `json:"recurrenceEndDate"`
}

type transferRequest struct {
	OriginAccountID      string               `json:"originAccountId"`
	DestinationAccountID string               `json:"destinationAccountId"`
	SelectedCurrencyID   string               `json:"selectedCurrencyId"`
	Date                 core.Date            `json:"date"`
	Description          string               `json:"description"`
	Amount               core.Amount          `json:"amount"`
	Rate                 *core.ManualRate     `json:"rate"`
	CategoryID           string               `json:"categoryId"`
	TypeID               core.TransactionType `json:"typeId"`
}

type balanceUpdateRequest struct {
	Description string           `json:"description"`
	NewValue    *core.Amount     `json:"newValue"`
	Amount      *core.Amount     `json:"amount"`
	Rate        *core.ManualRate `json:"rate"`
	CurrencyID  string           `json:"currencyId"`
	AccountID   string           `json:"accountId"`
	Date        core.Date        `json:"date"`
}

type editTransactionRequest struct {
	CategoryID  string           `json:"categoryId"`
	CurrencyID  string           `json:"currencyId"`
	Amount      *core.Amount     `json:"amount"`
	Date        core.Date        `json:"date"`
	Description *string          `json:"description"`
	Rate        *core.ManualRate `json:"rate"`
}

type deleteTransactionRequest struct {
	RecurringDeleteType string `json:"recurringDeleteType"`
}

func logPosted(r *http.Request, msg string, txs []core.Transaction) {
	if len(txs) == 0 {
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), msg,
		log.FieldTransactionID, txs[0].ID,
		log.FieldAccountID, txs[0].AccountID,
		"count", len(txs))
}

// handleCreateTransaction posts an expense or income, optionally as a
// recurring series.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	preset := req.SelectedReccurence
	if preset == "" {
		preset = req.SelectedRecurrence
	}
	recurrence, err := core.ParseRecurrence(preset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	t := req.Transaction
	txs, err := s.svc.Transactions.CreateTransaction(r.Context(), actorFrom(r.Context()), services.CreateTransactionInput{
		AccountID:         t.AccountID,
		CategoryID:        t.CategoryID,
		CurrencyID:        t.CurrencyID,
		Amount:            t.Amount,
		Date:              t.Date,
		Description:       sanitizeInput(t.Description),
		Rate:              t.Rate,
		Recurrence:        recurrence,
		RecurrenceEndDate: req.RecurrenceEndDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	logPosted(r, "Transaction created", txs)
	writeJSON(w, http.StatusOK, successResponse)
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.svc.Transactions.CreateTransfer(r.Context(), actorFrom(r.Context()), services.TransferInput{
		OriginAccountID:      req.OriginAccountID,
		DestinationAccountID: req.DestinationAccountID,
		CurrencyID:           req.SelectedCurrencyID,
		Amount:               req.Amount,
		Date:                 req.Date,
		Description:          sanitizeInput(req.Description),
		Rate:                 req.Rate,
		CategoryID:           req.CategoryID,
		TypeID:               req.TypeID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	logPosted(r, "Transfer created", txs)
	writeJSON(w, http.StatusOK, successResponse)
}

func (s *Server) handleCreateBalanceUpdate(w http.ResponseWriter, r *http.Request) {
	var req balanceUpdateRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.svc.Transactions.CreateBalanceUpdate(r.Context(), actorFrom(r.Context()), services.BalanceUpdateInput{
		AccountID:   req.AccountID,
		CurrencyID:  req.CurrencyID,
		Date:        req.Date,
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount,
		NewValue:    req.NewValue,
		Rate:        req.Rate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	logPosted(r, "Balance update created", []core.Transaction{tx})
	writeJSON(w, http.StatusOK, successResponse)
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	var req editTransactionRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Description != nil {
		d := sanitizeInput(*req.Description)
		req.Description = &d
	}
	txs, err := s.svc.Transactions.EditTransaction(r.Context(), actorFrom(r.Context()), r.PathValue("id"), services.EditTransactionInput{
		CategoryID:  req.CategoryID,
		CurrencyID:  req.CurrencyID,
		Amount:      req.Amount,
		Date:        req.Date,
		Description: req.Description,
		Rate:        req.Rate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	logPosted(r, "Transaction edited", txs)
	writeJSON(w, http.StatusOK, successResponse)
}

// handleDeleteTransaction removes a row, its transfer counterpart, or a
// slice of its recurring series.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	var req deleteTransactionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	deleteType, err := core.ParseDeleteType(req.RecurringDeleteType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.svc.Transactions.DeleteTransaction(r.Context(), actorFrom(r.Context()), r.PathValue("id"), deleteType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logPosted(r, "Transaction deleted", txs)
	writeJSON(w, http.StatusOK, successResponse)
}

func (s *Server) handleAccountReport(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.svc.Reports.AccountReport(r.Context(), actorFrom(r.Context()), r.PathValue("accountId"), period, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleUserReport(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.svc.Reports.UserReport(r.Context(), actorFrom(r.Context()), r.PathValue("userId"), period, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	chart, err := s.svc.Reports.CategoryChart(r.Context(), actorFrom(r.Context()), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}
