package service

import (
	"testing"
	"time"

	"github.com/phovang-pos/api/internal/enum"
)

func TestDeriveItemStatus(t *testing.T) {
	th := Thresholds{PendingAfter: 5 * time.Minute, LateAfter: 15 * time.Minute}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		stored string
		age    time.Duration
		want   string
	}{
		{"fresh item is new", enum.ItemStatusPending, 1 * time.Minute, enum.ItemStatusNew},
		{"exactly at pending threshold is still new", enum.ItemStatusPending, 5 * time.Minute, enum.ItemStatusNew},
		{"past pending threshold", enum.ItemStatusPending, 6 * time.Minute, enum.ItemStatusPending},
		{"exactly at late threshold is pending", enum.ItemStatusPending, 15 * time.Minute, enum.ItemStatusPending},
		{"past late threshold", enum.ItemStatusPending, 16 * time.Minute, enum.ItemStatusLate},
		{"hours overdue is late", enum.ItemStatusPending, 3 * time.Hour, enum.ItemStatusLate},
		{"served ignores age", enum.ItemStatusServed, 2 * time.Hour, enum.ItemStatusServed},
		{"cancelled ignores age", enum.ItemStatusCancel, 2 * time.Hour, enum.ItemStatusCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveItemStatus(tt.stored, now.Add(-tt.age), now, th)
			if got != tt.want {
				t.Errorf("DeriveItemStatus(%q, age %v) = %q, want %q", tt.stored, tt.age, got, tt.want)
			}
		})
	}
}

func TestDeriveItemStatusZeroThresholds(t *testing.T) {
	// With zero thresholds any waiting item with measurable age is late.
	now := time.Now()
	got := DeriveItemStatus(enum.ItemStatusPending, now.Add(-time.Second), now, Thresholds{})
	if got != enum.ItemStatusLate {
		t.Errorf("got %q, want %q", got, enum.ItemStatusLate)
	}
}
