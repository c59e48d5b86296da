package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/canteen-reservations/internal/reservation"
)

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP statuses.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var (
		validation *reservation.ValidationError
		notFound   *reservation.NotFoundError
		illegal    *reservation.IllegalTransitionError
		already    *reservation.AlreadyInStateError
		stock      *reservation.InsufficientStockError
		balance    *reservation.InsufficientBalanceError
		unresolved *reservation.UnresolvedUserError
		inc        *reservation.InternalInconsistencyError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "validation", Details: map[string]string{"field": validation.Field}})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"})
	case errors.As(err, &illegal):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "illegal_transition", Details: map[string]any{
			"from": illegal.From, "to": illegal.To, "allowed": illegal.Allowed,
		}})
	case errors.As(err, &already):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "already_in_state", Details: map[string]any{"status": already.Status}})
	case errors.As(err, &stock):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "insufficient_stock", Details: map[string]any{
			"itemId": stock.ItemID, "requested": stock.Requested, "available": stock.Available,
		}})
	case errors.As(err, &balance):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "insufficient_balance", Details: map[string]string{
			"balance": balance.Balance.StringFixed(2), "required": balance.Required.StringFixed(2),
		}})
	case errors.As(err, &unresolved):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "unresolved_user"})
	case errors.As(err, &inc):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "reservation could not be approved consistently; nothing was charged", Code: "internal_inconsistency"})
	default:
		log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
	}
}
