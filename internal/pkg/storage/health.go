package storage

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Health is the last observed state of the blob store.
type Health struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// CheckHealth pings the store with a short timeout.
func CheckHealth(ctx context.Context, s Store) Health {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	h := Health{Healthy: true, CheckedAt: time.Now().UTC()}
	if err := s.Ping(ctx); err != nil {
		log.Warnf("[StorageHealth] Blob store unreachable: %v", err)
		h.Healthy = false
		h.Error = err.Error()
	}
	return h
}
