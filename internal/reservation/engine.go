package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ariefcatur/canteen-reservations/internal/menu"
	"github.com/ariefcatur/canteen-reservations/internal/wallet"
	"github.com/google/uuid"
)

// Engine owns the reservation lifecycle and keeps stock, wallet balance and
// the ledger in step with it.
type Engine struct {
	store    Store
	notifier Notifier
	metrics  Metrics
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }
func WithMetrics(m Metrics) Option   { return func(e *Engine) { e.metrics = m } }
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		metrics: noopMetrics{},
		log:     slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   newReservationID,
	}
	for _, o := range opts {
		o(e)
	}
	if e.notifier == nil {
		e.notifier = LogNotifier{Log: e.log}
	}
	return e
}

// newReservationID uses a v7 uuid so ids sort roughly by creation time.
func newReservationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "RSV-" + uuid.NewString()
	}
	return "RSV-" + id.String()
}

// Create validates the request against the catalog, locks in prices and
// persists a Pending reservation. Nothing is written on failure.
func (e *Engine) Create(ctx context.Context, in CreateInput, actor Actor) (Reservation, error) {
	student := strings.TrimSpace(in.Student)
	if student == "" {
		student = strings.TrimSpace(actor.Name)
	}
	if err := validateCreate(in, student, actor); err != nil {
		return Reservation{}, err
	}

	var out Reservation
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		resolved := make(map[string]menu.Item, len(in.Items))
		for _, id := range requestedIDs(in.Items) {
			it, err := menu.Resolve(ctx, tx.Catalog(), id)
			if errors.Is(err, menu.ErrNotFound) {
				return &NotFoundError{Kind: "menu item", ID: id}
			}
			if err != nil {
				return err
			}
			if it.Stock != nil && *it.Stock < -1 {
				return &ValidationError{Field: "items", Message: fmt.Sprintf("item %s has invalid stock %d", it.ID, *it.Stock)}
			}
			resolved[id] = it
		}
		lines := make([]LineItem, 0, len(in.Items))
		for _, req := range in.Items {
			it := resolved[req.ItemID]
			lines = append(lines, LineItem{ItemID: it.ID, Name: it.Name, UnitPrice: it.Price, Qty: req.Qty})
		}
		if err := checkStock(ctx, tx.Catalog(), lines); err != nil {
			return err
		}

		userID, err := e.resolveOwner(ctx, tx.Users(), actor, student)
		if err != nil {
			return err
		}

		now := e.now()
		r := Reservation{
			ID:        e.newID(),
			UserID:    userID,
			Student:   student,
			Grade:     strings.TrimSpace(in.Grade),
			Section:   strings.TrimSpace(in.Section),
			Slot:      strings.TrimSpace(in.Slot),
			Note:      strings.TrimSpace(in.Note),
			Items:     lines,
			Total:     Total(lines),
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Reservations().Insert(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}

	e.metrics.ReservationCreated()
	e.notify(ctx, Event{
		For:   AudienceAdmins,
		Actor: actor.UserID,
		Type:  EventCreated,
		Title: "New reservation",
		Body:  fmt.Sprintf("%s reserved %d item(s) for %s, total %s", out.Student, len(out.Items), out.Slot, out.Total.StringFixed(2)),
		Data: map[string]any{
			"reservationId": out.ID,
			"userId":        out.UserID,
			"total":         out.Total.StringFixed(2),
			"slot":          out.Slot,
		},
		CreatedAt: out.CreatedAt,
	})
	return out, nil
}

func validateCreate(in CreateInput, student string, actor Actor) error {
	if len(in.Items) == 0 {
		return &ValidationError{Field: "items", Message: "at least one item is required"}
	}
	if strings.TrimSpace(in.Slot) == "" {
		return &ValidationError{Field: "slot", Message: "pickup slot is required"}
	}
	if student == "" && actor.UserID == "" {
		return &ValidationError{Field: "student", Message: "student is required"}
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.ItemID) == "" {
			return &ValidationError{Field: fmt.Sprintf("items[%d].itemId", i), Message: "item id is required"}
		}
		if it.Qty <= 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].qty", i), Message: "quantity must be greater than zero"}
		}
	}
	return nil
}

// resolveOwner prefers the signed-in user and falls back to the legacy
// student-name match. An unmatched or ambiguous guest stays unowned until
// approval.
func (e *Engine) resolveOwner(ctx context.Context, dir wallet.Directory, actor Actor, student string) (string, error) {
	if actor.UserID != "" {
		u, err := dir.FindByID(ctx, actor.UserID)
		if errors.Is(err, wallet.ErrNotFound) {
			return "", &NotFoundError{Kind: "user", ID: actor.UserID}
		}
		if err != nil {
			return "", err
		}
		return u.ID, nil
	}
	u, ok, err := matchLegacyUser(ctx, dir, student)
	if errors.Is(err, errAmbiguousUser) {
		e.log.Warn("ambiguous legacy user match", "student", student)
		return "", nil
	}
	if err != nil || !ok {
		return "", err
	}
	return u.ID, nil
}

func checkStock(ctx context.Context, c menu.Catalog, lines []LineItem) error {
	for _, d := range demandByItem(lines) {
		it, err := menu.Resolve(ctx, c, d.ItemID)
		if errors.Is(err, menu.ErrNotFound) {
			return &NotFoundError{Kind: "menu item", ID: d.ItemID}
		}
		if err != nil {
			return err
		}
		if it.Tracked() && it.Available() < d.Qty {
			return &InsufficientStockError{ItemID: it.ID, Name: it.Name, Requested: d.Qty, Available: it.Available()}
		}
	}
	return nil
}

// SetStatus moves a reservation to target. Entering Approved charges the
// wallet and deducts stock; Approved to Rejected refunds and restores. Both
// are guarded by the ledger so retries never repeat a side effect.
func (e *Engine) SetStatus(ctx context.Context, id, target string, actor Actor) (Result, error) {
	started := time.Now()
	to, ok := ParseStatus(target)
	if !ok {
		return Result{}, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", target)}
	}

	var (
		res  Result
		from Status
	)
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.Reservations().Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return &NotFoundError{Kind: "reservation", ID: id}
		}
		if err != nil {
			return err
		}
		from = r.Status
		if to == r.Status {
			return &AlreadyInStateError{ID: r.ID, Status: r.Status}
		}
		if !CanTransition(r.Status, to) {
			return &IllegalTransitionError{From: r.Status, To: to, Allowed: AllowedNext(r.Status)}
		}

		var (
			t          *wallet.Transaction
			backfilled bool
		)
		switch to {
		case StatusApproved:
			t, backfilled, err = e.approve(ctx, tx, &r)
		case StatusRejected:
			t, err = e.reject(ctx, tx, &r, from)
		}
		if err != nil {
			return err
		}

		r.Status = to
		r.UpdatedAt = e.now()
		if err := tx.Reservations().Update(ctx, r); err != nil {
			return err
		}
		res = Result{Reservation: r, Transaction: t, Backfilled: backfilled}
		return nil
	})
	e.metrics.TransitionObserved(string(from), string(to), outcome(err), time.Since(started))
	if err != nil {
		var inc *InternalInconsistencyError
		if errors.As(err, &inc) {
			e.recordInconsistency(ctx, inc)
		}
		return Result{}, err
	}

	if t := res.Transaction; t != nil && !res.Backfilled {
		switch t.Direction {
		case wallet.Debit:
			e.metrics.Charged(t.Amount)
		case wallet.Credit:
			e.metrics.Refunded(t.Amount)
		}
	}
	e.notify(ctx, statusEvent(res, from, actor))
	return res, nil
}

// approve charges the owner and deducts stock. The bool reports a back-fill:
// the returned debit already existed and nothing new was charged.
func (e *Engine) approve(ctx context.Context, tx Tx, r *Reservation) (*wallet.Transaction, bool, error) {
	ledger := wallet.NewLedger(tx.Wallets())
	cat := tx.Catalog()

	prior, charged, err := ledger.FindByRef(ctx, r.Ref(), wallet.Debit)
	if err != nil {
		return nil, false, err
	}
	if charged {
		// The charge already landed on an earlier attempt: back-fill and
		// never charge again.
		r.UserID = prior.UserID
		r.TransactionID = prior.ID
		r.Charged = true
		chargedAt := prior.CreatedAt
		r.ChargedAt = &chargedAt
		if !r.StockDeducted {
			problems, err := AdjustStock(ctx, cat, r.Items, Deduct)
			if err != nil {
				return nil, false, err
			}
			if len(problems) > 0 {
				e.log.Warn("stock repair on re-approval had problems", "reservation_id", r.ID, "problems", problems)
			}
			r.StockDeducted = true
		}
		return &prior, true, nil
	}

	if err := checkStock(ctx, cat, r.Items); err != nil {
		return nil, false, err
	}

	userID, err := e.chargeTarget(ctx, tx.Users(), r)
	if err != nil {
		return nil, false, err
	}
	r.UserID = userID

	var t *wallet.Transaction
	if r.Total.IsPositive() {
		debit, err := ledger.Debit(ctx, userID, r.Total, r.Ref())
		if err != nil {
			return nil, false, err
		}
		t = &debit
		r.Charged = true
		r.TransactionID = debit.ID
		chargedAt := debit.CreatedAt
		r.ChargedAt = &chargedAt
	}

	problems, err := AdjustStock(ctx, cat, r.Items, Deduct)
	if err != nil {
		return nil, false, err
	}
	if len(problems) > 0 {
		return nil, false, &InternalInconsistencyError{ReservationID: r.ID, UserID: userID, Amount: r.Total, Problems: problems}
	}
	r.StockDeducted = true
	return t, false, nil
}

func (e *Engine) chargeTarget(ctx context.Context, dir wallet.Directory, r *Reservation) (string, error) {
	if r.UserID != "" {
		u, err := dir.FindByID(ctx, r.UserID)
		if errors.Is(err, wallet.ErrNotFound) {
			return "", &UnresolvedUserError{ReservationID: r.ID, Reason: "owner " + r.UserID + " does not exist"}
		}
		if err != nil {
			return "", err
		}
		return u.ID, nil
	}
	u, ok, err := matchLegacyUser(ctx, dir, r.Student)
	if errors.Is(err, errAmbiguousUser) {
		return "", &UnresolvedUserError{ReservationID: r.ID, Reason: fmt.Sprintf("student %q matches more than one user", r.Student)}
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &UnresolvedUserError{ReservationID: r.ID, Reason: fmt.Sprintf("no user matches student %q", r.Student)}
	}
	return u.ID, nil
}

// reject refunds a charged reservation once and restores stock that was
// taken on approval.
func (e *Engine) reject(ctx context.Context, tx Tx, r *Reservation, from Status) (*wallet.Transaction, error) {
	ledger := wallet.NewLedger(tx.Wallets())

	// Menu rows are locked before the wallet, same as approval.
	if from == StatusApproved && r.StockDeducted {
		problems, err := AdjustStock(ctx, tx.Catalog(), r.Items, Restore)
		if err != nil {
			return nil, err
		}
		if len(problems) > 0 {
			e.log.Warn("stock restore had problems", "reservation_id", r.ID, "problems", problems)
		}
		r.StockDeducted = false
	}

	debit, debited, err := ledger.FindByRef(ctx, r.Ref(), wallet.Debit)
	if err != nil {
		return nil, err
	}
	_, refunded, err := ledger.FindByRef(ctx, r.Ref(), wallet.Credit)
	if err != nil {
		return nil, err
	}

	var t *wallet.Transaction
	if !refunded && (debited || r.Charged) {
		userID, amount := r.UserID, r.Total
		if debited {
			amount = debit.Amount
			if userID == "" {
				userID = debit.UserID
			}
		}
		if userID == "" {
			u, ok, err := matchLegacyUser(ctx, tx.Users(), r.Student)
			if err != nil && !errors.Is(err, errAmbiguousUser) {
				return nil, err
			}
			if ok {
				userID = u.ID
			}
		}
		if userID != "" && amount.IsPositive() {
			credit, err := ledger.Credit(ctx, userID, amount, r.Ref())
			if err != nil {
				return nil, err
			}
			t = &credit
			r.RefundTransactionID = credit.ID
			refundedAt := credit.CreatedAt
			r.RefundedAt = &refundedAt
		} else {
			e.log.Warn("charged reservation rejected without refund target",
				"reservation_id", r.ID, "student", r.Student, "amount", amount.StringFixed(2))
		}
	}

	return t, nil
}

func (e *Engine) recordInconsistency(ctx context.Context, inc *InternalInconsistencyError) {
	e.metrics.Inconsistency()
	e.log.Error("reservation approval rolled back",
		"reservation_id", inc.ReservationID,
		"user_id", inc.UserID,
		"amount", inc.Amount.StringFixed(2),
		"problems", inc.Problems,
	)
	entry := AuditEntry{
		ID:            uuid.NewString(),
		Kind:          AuditInconsistency,
		ReservationID: inc.ReservationID,
		UserID:        inc.UserID,
		Amount:        inc.Amount,
		Detail:        inc.Error(),
		Problems:      inc.Problems,
		CreatedAt:     e.now(),
	}
	if err := e.store.RecordAudit(context.WithoutCancel(ctx), entry); err != nil {
		e.log.Error("audit write failed", "reservation_id", inc.ReservationID, "err", err)
	}
}

func (e *Engine) notify(ctx context.Context, ev Event) {
	if err := e.notifier.Publish(ctx, ev); err != nil {
		e.metrics.NotifyFailed()
		e.log.Warn("notify failed", "type", ev.Type, "for", ev.For, "err", err)
	}
}

func statusEvent(res Result, from Status, actor Actor) Event {
	r := res.Reservation
	data := map[string]any{
		"reservationId": r.ID,
		"from":          string(from),
		"status":        string(r.Status),
		"total":         r.Total.StringFixed(2),
	}
	if res.Transaction != nil {
		data["transactionId"] = res.Transaction.ID
		data["direction"] = string(res.Transaction.Direction)
	}
	if res.Backfilled {
		data["backfilled"] = true
	}
	audience := r.UserID
	if audience == "" {
		audience = AudienceAdmins
	}
	return Event{
		For:       audience,
		Actor:     actor.UserID,
		Type:      EventStatus,
		Title:     "Reservation " + strings.ToLower(string(r.Status)),
		Body:      fmt.Sprintf("Reservation %s for %s is now %s", r.ID, r.Slot, r.Status),
		Data:      data,
		CreatedAt: r.UpdatedAt,
	}
}

func outcome(err error) string {
	var (
		as  *AlreadyInStateError
		inc *InternalInconsistencyError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &as):
		return "noop"
	case errors.As(err, &inc):
		return "inconsistent"
	case IsBusiness(err):
		return "rejected"
	default:
		return "error"
	}
}

func (e *Engine) Get(ctx context.Context, id string) (Reservation, error) {
	r, err := e.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Reservation{}, &NotFoundError{Kind: "reservation", ID: id}
	}
	return r, err
}

func (e *Engine) ListMine(ctx context.Context, userID string) ([]Reservation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &ValidationError{Field: "userId", Message: "user is required"}
	}
	return e.store.ListByUser(ctx, userID)
}

// ListAdmin lists every reservation; a non-empty filter narrows by status.
func (e *Engine) ListAdmin(ctx context.Context, statusFilter string) ([]Reservation, error) {
	var status Status
	if strings.TrimSpace(statusFilter) != "" {
		s, ok := ParseStatus(statusFilter)
		if !ok {
			return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", statusFilter)}
		}
		status = s
	}
	return e.store.List(ctx, status)
}
