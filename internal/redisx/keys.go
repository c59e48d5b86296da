package redisx

import "time"

const (
	// Idempotent create: idem:reservation:create:{actor}:{idempotency_key} -> reservation_id
	KeyIdemReservationCreate = "idem:reservation:create:%s:%s"

	// Status cache: reservation_status:{reservation_id} -> {"status": "...", "updatedAt": "..."}
	KeyReservationStatus = "reservation_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Notification inbox per audience: list inbox:{for}, newest first
	KeyInbox = "inbox:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLClaim       = 30 * time.Second
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLInbox       = 7 * 24 * time.Hour
)
