package service

import (
	"time"

	"github.com/phovang-pos/api/internal/enum"
)

// Thresholds controls when a waiting kitchen item escalates on screen.
// Loaded from config; callers may override per request but must not
// hardcode their own copies.
type Thresholds struct {
	PendingAfter time.Duration
	LateAfter    time.Duration
}

// DeriveItemStatus maps a stored item status plus its age to the status
// shown on the kitchen screen. Stored terminal states win outright; a
// waiting item escalates new -> pending -> late as it ages. The derived
// states are never written back.
func DeriveItemStatus(stored string, createdAt, now time.Time, th Thresholds) string {
	switch stored {
	case enum.ItemStatusServed:
		return enum.ItemStatusServed
	case enum.ItemStatusCancel:
		return enum.ItemStatusCancel
	}

	age := now.Sub(createdAt)
	switch {
	case age > th.LateAfter:
		return enum.ItemStatusLate
	case age > th.PendingAfter:
		return enum.ItemStatusPending
	default:
		return enum.ItemStatusNew
	}
}
