package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	kafkax "github.com/ariefcatur/canteen-reservations/internal/kafka"
	"github.com/ariefcatur/canteen-reservations/internal/redisx"
	"github.com/ariefcatur/canteen-reservations/internal/reservation"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ReservationsHandler exposes the engine. Idem and Cache are optional; the
// store stays the source of truth when Redis is absent.
type ReservationsHandler struct {
	Engine *reservation.Engine
	Idem   *redisx.Idempotency
	Cache  *redisx.StatusCache
	Log    *slog.Logger
}

type setStatusReq struct {
	Status string `json:"status"`
}

type statusResp struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
	Cached    bool      `json:"cached"`
}

func (h *ReservationsHandler) Register(r chi.Router) {
	r.Post("/reservations", h.create)
	r.Get("/reservations/mine", h.listMine)
	r.Get("/reservations/{id}", h.get)
	r.Get("/reservations/{id}/status", h.getStatus)
	r.Get("/admin/reservations", h.listAdmin)
	r.Patch("/admin/reservations/{id}/status", h.setStatus)
}

// actorFrom reads the caller identity set by the upstream gateway.
func actorFrom(r *http.Request) reservation.Actor {
	return reservation.Actor{
		UserID: strings.TrimSpace(r.Header.Get("X-User-ID")),
		Name:   strings.TrimSpace(r.Header.Get("X-User-Name")),
	}
}

func requestContext(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := kafkax.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
	return context.WithTimeout(ctx, timeout)
}

func (h *ReservationsHandler) create(w http.ResponseWriter, r *http.Request) {
	var in reservation.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json", Code: "validation"})
		return
	}
	actor := actorFrom(r)

	ctx, cancel := requestContext(r, 5*time.Second)
	defer cancel()

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	idemActor := actor.UserID
	if idemActor == "" {
		idemActor = "guest"
	}
	claimed := false
	if idemKey != "" && h.Idem != nil {
		existing, ok, err := h.Idem.Claim(ctx, idemActor, idemKey)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "idempotency_in_flight"})
			return
		case err != nil:
			// Redis is a fast path only; carry on without it.
			h.Log.Warn("idempotency claim failed", "err", err)
		case existing != "":
			res, err := h.Engine.Get(ctx, existing)
			if err != nil {
				writeError(w, h.Log, err)
				return
			}
			w.Header().Set("Idempotent-Replayed", "true")
			writeJSON(w, http.StatusOK, res)
			return
		default:
			claimed = ok
		}
	}

	res, err := h.Engine.Create(ctx, in, actor)
	if err != nil {
		if claimed {
			if rerr := h.Idem.Release(ctx, idemActor, idemKey); rerr != nil {
				h.Log.Warn("idempotency release failed", "err", rerr)
			}
		}
		writeError(w, h.Log, err)
		return
	}
	if claimed {
		if err := h.Idem.Complete(ctx, idemActor, idemKey, res.ID); err != nil {
			h.Log.Warn("idempotency complete failed", "reservation_id", res.ID, "err", err)
		}
	}
	h.cacheStatus(ctx, res)
	writeJSON(w, http.StatusCreated, res)
}

func (h *ReservationsHandler) listMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r, 3*time.Second)
	defer cancel()

	out, err := h.Engine.ListMine(ctx, actorFrom(r).UserID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (h *ReservationsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r, 3*time.Second)
	defer cancel()

	res, err := h.Engine.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationsHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := requestContext(r, 3*time.Second)
	defer cancel()

	// 1) cache
	if h.Cache != nil {
		if e, ok, err := h.Cache.Get(ctx, id); err == nil && ok {
			writeJSON(w, http.StatusOK, statusResp{ID: id, Status: e.Status, UpdatedAt: e.UpdatedAt, Cached: true})
			return
		} else if err != nil {
			h.Log.Warn("status cache read failed", "reservation_id", id, "err", err)
		}
	}

	// 2) store
	res, err := h.Engine.Get(ctx, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cacheStatus(ctx, res)
	writeJSON(w, http.StatusOK, statusResp{ID: res.ID, Status: string(res.Status), UpdatedAt: res.UpdatedAt})
}

func (h *ReservationsHandler) listAdmin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r, 3*time.Second)
	defer cancel()

	out, err := h.Engine.ListAdmin(ctx, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (h *ReservationsHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json", Code: "validation"})
		return
	}
	ctx, cancel := requestContext(r, 5*time.Second)
	defer cancel()

	res, err := h.Engine.SetStatus(ctx, chi.URLParam(r, "id"), req.Status, actorFrom(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cacheStatus(ctx, res.Reservation)
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationsHandler) cacheStatus(ctx context.Context, res reservation.Reservation) {
	if h.Cache == nil {
		return
	}
	e := redisx.StatusEntry{Status: string(res.Status), UpdatedAt: res.UpdatedAt}
	if err := h.Cache.Put(ctx, res.ID, e); err != nil {
		h.Log.Warn("status cache write failed", "reservation_id", res.ID, "err", err)
	}
}

func nonNil(rs []reservation.Reservation) []reservation.Reservation {
	if rs == nil {
		return []reservation.Reservation{}
	}
	return rs
}
