package httpx

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/canteen-reservations/internal/inbox"
	"github.com/go-chi/chi/v5"
)

type InboxHandler struct {
	Inbox *inbox.Service
	Log   *slog.Logger
}

func (h *InboxHandler) Register(r chi.Router) {
	r.Get("/inbox/{audience}", h.recent)
}

func (h *InboxHandler) recent(w http.ResponseWriter, r *http.Request) {
	limit := int64(50)
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer", Code: "validation"})
			return
		}
		limit = n
	}
	ctx, cancel := requestContext(r, 3*time.Second)
	defer cancel()

	out, err := h.Inbox.Recent(ctx, chi.URLParam(r, "audience"), limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if out == nil {
		out = []inbox.Notification{}
	}
	writeJSON(w, http.StatusOK, out)
}
