package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"walletize/internal/core"
	"walletize/internal/log"
	"walletize/internal/services"
)

// maxBodyBytes bounds request bodies. The largest legitimate payload is a
// transaction form.
const maxBodyBytes = 64 << 10

type actorKey struct{}

func withActor(ctx context.Context, actor services.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) services.Actor {
	actor, _ := ctx.Value(actorKey{}).(services.Actor)
	return actor
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

var successResponse = messageResponse{Message: "success"}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a client-facing error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case core.CodeInvalidRequest:
		return http.StatusBadRequest
	case core.CodeUnauthorized:
		return http.StatusUnauthorized
	case core.CodeForbidden:
		return http.StatusForbidden
	case core.CodeNotFound:
		return http.StatusNotFound
	case core.CodeCategoryCannotBeEmpty, core.CodeCurrencyLocked:
		return http.StatusConflict
	case core.CodeRateUnavailable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": code, "message": ...}. Internal
// errors are logged and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := core.ErrorCode(err)
	status := statusFor(code)
	msg := err.Error()

	logger := log.FromContext(r.Context())
	fields := log.NewFields().
		WithError(err, code).
		WithUser(actorFrom(r.Context()).ID).
		WithHTTPRequest(r.Method, r.URL.Path, "", "")
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
		msg = "internal error"
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

// decodeJSON reads a single JSON document into dst. An empty body is
// accepted when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: malformed JSON body: %v", core.ErrInvalidInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", core.ErrInvalidInput)
	}
	return nil
}

// parsePeriod reads either ?period=YYYY-MM-DD_YYYY-MM-DD|all or the
// startDate/endDate pair. Neither means all history.
func parsePeriod(r *http.Request) (core.Period, error) {
	q := r.URL.Query()
	if q.Has("period") {
		return core.ParsePeriod(q.Get("period"))
	}
	return core.ParsePeriodParams(q.Get("startDate"), q.Get("endDate"))
}

// parsePage returns the 1-based page, defaulting to the first.
func parsePage(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("page"))
	if v == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(v)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("%w: page must be a positive integer", core.ErrInvalidInput)
	}
	return page, nil
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
