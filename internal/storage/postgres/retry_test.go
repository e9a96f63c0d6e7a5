package postgres

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"domain error", domain.ErrSlotTaken, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("retries transient errors until success", func(t *testing.T) {
		attempts := 0
		err := WithRetry(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return &pgconn.PgError{Code: "40P01"}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if attempts != 3 {
			t.Fatalf("expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("non-transient errors return immediately", func(t *testing.T) {
		attempts := 0
		err := WithRetry(context.Background(), func(ctx context.Context) error {
			attempts++
			return domain.ErrAlreadyBilled
		})
		if !errors.Is(err, domain.ErrAlreadyBilled) {
			t.Fatalf("expected ErrAlreadyBilled, got %v", err)
		}
		if attempts != 1 {
			t.Fatalf("expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("gives up after the attempt budget", func(t *testing.T) {
		attempts := 0
		transient := &pgconn.PgError{Code: "40001"}
		err := WithRetry(context.Background(), func(ctx context.Context) error {
			attempts++
			return transient
		})
		if !errors.Is(err, transient) {
			t.Fatalf("expected the transient error surfaced, got %v", err)
		}
		if attempts != defaultRetryAttempts {
			t.Fatalf("expected %d attempts, got %d", defaultRetryAttempts, attempts)
		}
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0
		err := WithRetry(ctx, func(ctx context.Context) error {
			attempts++
			cancel()
			return &pgconn.PgError{Code: "40P01"}
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if attempts != 1 {
			t.Fatalf("expected 1 attempt before cancellation, got %d", attempts)
		}
	})
}
