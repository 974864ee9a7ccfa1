package http

import (
	"net/http"

	"walletize/internal/core"
	"walletize/internal/services"
)

type accountRequest struct {
	Name         string      `json:"name"`
	CategoryID   int         `json:"categoryId"`
	CurrencyID   string      `json:"currencyId"`
	InitialValue core.Amount `json:"initialValue"`
	Icon         string      `json:"icon"`
	Color        string      `json:"color"`
}

func (req accountRequest) input() services.AccountInput {
	return services.AccountInput{
		Name:         sanitizeInput(req.Name),
		CategoryID:   req.CategoryID,
		CurrencyID:   req.CurrencyID,
		InitialValue: req.InitialValue,
		Icon:         req.Icon,
		Color:        req.Color,
	}
}

type inviteRequest struct {
	Email string `json:"email"`
}

type meRequest struct {
	MainCurrencyID string `json:"mainCurrencyId"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.svc.Accounts.ListAccounts(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleListAccountCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Accounts.ListAccountCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	account, err := s.svc.Accounts.CreateAccount(r.Context(), actorFrom(r.Context()), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	account, err := s.svc.Accounts.UpdateAccount(r.Context(), actorFrom(r.Context()), r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Accounts.DeleteAccount(r.Context(), actorFrom(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse)
}

func (s *Server) handleListAccountInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := s.svc.Accounts.ListAccountInvites(r.Context(), actorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invites)
}

func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	invite, err := s.svc.Accounts.CreateInvite(r.Context(), actorFrom(r.Context()), r.PathValue("id"), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

// handleListInvites returns invites addressed to the caller.
func (s *Server) handleListInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := s.svc.Accounts.ListInvites(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invites)
}

func (s *Server) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	invite, err := s.svc.Accounts.AcceptInvite(r.Context(), actorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invite)
}

// handleDeleteInvite covers decline and leave for the invitee, and revoke
// for the owner.
func (s *Server) handleDeleteInvite(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Accounts.DeleteInvite(r.Context(), actorFrom(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse)
}

func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := s.svc.Accounts.ListCurrencies(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, currencies)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Accounts.EnsureUser(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req meRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorFrom(r.Context())
	if err := s.svc.Accounts.SetMainCurrency(r.Context(), actor, req.MainCurrencyID); err != nil {
		writeError(w, r, err)
		return
	}
	s.handleGetMe(w, r)
}
