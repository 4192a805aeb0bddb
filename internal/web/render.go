package web

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/errors"
	"github.com/hpungsan/katha/internal/logging"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorBody is the JSON error envelope. Details of internal errors are
// logged, never returned.
func errorBody(ke *errors.KathaError) map[string]any {
	body := map[string]any{
		"code":    string(ke.Code),
		"message": ke.Message,
		"status":  ke.Status,
	}
	if ke.Code != errors.ErrInternal && len(ke.Details) > 0 {
		body["details"] = ke.Details
	}
	return map[string]any{"error": body}
}

// renderError writes err as a JSON error response.
func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	ke, ok := errors.As(err)
	if !ok {
		ke = errors.NewInternal(err)
	}
	if ke.Status >= 500 {
		logging.WithContext(r.Context(), h.logger).Error("request failed",
			slog.String("code", string(ke.Code)), slog.Any("error", err))
	}
	renderJSON(w, ke.Status, errorBody(ke))
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.NewInvalidRequest("request body too large")
		}
		return errors.NewInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// parseIntParam reads a query parameter as int, returning defaultVal if absent or invalid.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// parseBoolParam returns true if the query parameter is "true" or "1".
func parseBoolParam(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "true" || v == "1"
}

// policyFields is the wire form of an unlock policy.
type policyFields struct {
	UnlockType      string  `json:"unlock_type"`
	UnlockDate      string  `json:"unlock_date"`
	UnlockAge       *int    `json:"unlock_age"`
	UnlockMilestone *string `json:"unlock_milestone"`
	IsSurprise      bool    `json:"is_surprise"`
}

func (p policyFields) policy() (capsule.UnlockPolicy, error) {
	out := capsule.UnlockPolicy{
		Type:       capsule.UnlockType(strings.TrimSpace(p.UnlockType)),
		Age:        p.UnlockAge,
		Milestone:  p.UnlockMilestone,
		IsSurprise: p.IsSurprise,
	}
	if s := strings.TrimSpace(p.UnlockDate); s != "" {
		t, err := capsule.ParseUnlockDate(s)
		if err != nil {
			return out, errors.NewInvalidField("unlock_date", "must be YYYY-MM-DD or RFC 3339")
		}
		out.Date = &t
	}
	return out, nil
}

func (p policyFields) empty() bool {
	return p.UnlockType == "" && p.UnlockDate == "" && p.UnlockAge == nil && p.UnlockMilestone == nil && !p.IsSurprise
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
