package database

import (
	"context"
	"time"
)

// Pinger is implemented by every storage client the service can run on.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckHealth pings the backing store with a short deadline.
func CheckHealth(ctx context.Context, db Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Ping(ctx)
}
