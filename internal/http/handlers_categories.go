package http

import (
	"net/http"

	"walletize/internal/core"
	"walletize/internal/services"
)

type categoryRequest struct {
	TypeID core.TransactionType `json:"typeId"`
	Name   string               `json:"name"`
	Icon   string               `json:"icon"`
	Color  string               `json:"color"`
}

func (req categoryRequest) input() services.CategoryInput {
	return services.CategoryInput{
		TypeID: req.TypeID,
		Name:   sanitizeInput(req.Name),
		Icon:   req.Icon,
		Color:  req.Color,
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Categories.ListCategories(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Categories.CreateCategory(r.Context(), actorFrom(r.Context()), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Categories.UpdateCategory(r.Context(), actorFrom(r.Context()), r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteCategory moves the category's transactions to a sibling of
// the same type before removing it.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Categories.DeleteCategory(r.Context(), actorFrom(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse)
}
