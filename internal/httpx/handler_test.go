package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ariefcatur/canteen-reservations/internal/docstore"
	"github.com/ariefcatur/canteen-reservations/internal/menu"
	"github.com/ariefcatur/canteen-reservations/internal/metrics"
	"github.com/ariefcatur/canteen-reservations/internal/reservation"
	"github.com/ariefcatur/canteen-reservations/internal/wallet"
	"github.com/shopspring/decimal"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := docstore.NewMemory()
	err := store.Seed(context.Background(), docstore.Dataset{
		Menu:  []menu.Item{{ID: "meals-a", Name: "Adobo", Price: decimal.NewFromInt(50), Stock: menu.Stock(3)}},
		Users: []wallet.User{{ID: "u1", Name: "Juan", Balance: decimal.NewFromInt(100)}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := metrics.NewRegistry()
	engine := reservation.NewEngine(store, reservation.WithLogger(log), reservation.WithMetrics(m))

	router := NewRouter(log, m.Handler())
	(&ReservationsHandler{Engine: engine, Log: log}).Register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, user string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func TestReservationLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/reservations", "u1", map[string]any{
		"items": []map[string]any{{"itemId": "meals-a", "qty": 2}},
		"slot":  "Lunch 11:30",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, body)
	}
	var created reservation.Reservation
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != reservation.StatusPending || !created.Total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected reservation %+v", created)
	}

	resp, body = do(t, srv, http.MethodPatch, "/admin/reservations/"+created.ID+"/status", "", map[string]string{"status": "Approved"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: %d %s", resp.StatusCode, body)
	}
	var res reservation.Result
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Transaction == nil || res.Transaction.Direction != wallet.Debit {
		t.Fatalf("expected debit in response, got %s", body)
	}

	resp, body = do(t, srv, http.MethodPatch, "/admin/reservations/"+created.ID+"/status", "", map[string]string{"status": "Approved"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second approve: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodPatch, "/admin/reservations/"+created.ID+"/status", "", map[string]string{"status": "Claimed"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("illegal transition: %d %s", resp.StatusCode, body)
	}
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	if eb.Code != "illegal_transition" {
		t.Fatalf("unexpected error body %s", body)
	}

	resp, body = do(t, srv, http.MethodGet, "/reservations/"+created.ID+"/status", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d %s", resp.StatusCode, body)
	}
	var st statusResp
	_ = json.Unmarshal(body, &st)
	if st.Status != "Approved" || st.Cached {
		t.Fatalf("unexpected status %+v", st)
	}

	resp, body = do(t, srv, http.MethodGet, "/reservations/mine", "u1", nil)
	var mine []reservation.Reservation
	_ = json.Unmarshal(body, &mine)
	if resp.StatusCode != http.StatusOK || len(mine) != 1 {
		t.Fatalf("mine: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodGet, "/admin/reservations?status=pending", "", nil)
	if resp.StatusCode != http.StatusOK || string(bytes.TrimSpace(body)) != "[]" {
		t.Fatalf("admin pending: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("canteen_reservations_created_total 1")) {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		want   int
	}{
		{"missing slot", http.MethodPost, "/reservations", "u1", map[string]any{"items": []map[string]any{{"itemId": "meals-a", "qty": 1}}}, http.StatusBadRequest},
		{"unknown item", http.MethodPost, "/reservations", "u1", map[string]any{"items": []map[string]any{{"itemId": "zzz", "qty": 1}}, "slot": "Lunch"}, http.StatusNotFound},
		{"too many", http.MethodPost, "/reservations", "u1", map[string]any{"items": []map[string]any{{"itemId": "meals-a", "qty": 4}}, "slot": "Lunch"}, http.StatusBadRequest},
		{"unknown reservation", http.MethodGet, "/reservations/RSV-none", "", nil, http.StatusNotFound},
		{"mine without user", http.MethodGet, "/reservations/mine", "", nil, http.StatusBadRequest},
		{"bad filter", http.MethodGet, "/admin/reservations?status=lost", "", nil, http.StatusBadRequest},
		{"bad status", http.MethodPatch, "/admin/reservations/RSV-none/status", "", map[string]string{"status": "Eaten"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, srv, tc.method, tc.path, tc.user, tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("got %d want %d: %s", resp.StatusCode, tc.want, body)
			}
		})
	}
}

func TestInsufficientBalanceMapsTo400(t *testing.T) {
	srv := newTestServer(t)
	_, body := do(t, srv, http.MethodPost, "/reservations", "u1", map[string]any{
		"items": []map[string]any{{"itemId": "meals-a", "qty": 3}},
		"slot":  "Lunch",
	})
	var created reservation.Reservation
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		t.Fatalf("create: %s", body)
	}

	resp, body := do(t, srv, http.MethodPatch, "/admin/reservations/"+created.ID+"/status", "", map[string]string{"status": "Approved"})
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	if resp.StatusCode != http.StatusBadRequest || eb.Code != "insufficient_balance" {
		t.Fatalf("got %d %s", resp.StatusCode, body)
	}
}
