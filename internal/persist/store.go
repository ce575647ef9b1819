// Package persist saves and restores session snapshots. The store is a
// backup, never the source of truth while a show is running: callers log
// failures and keep going.
package persist

import (
	"context"

	"github.com/prettylittleliars/backend/internal/game"
)

// Store is the snapshot backend. Load returns (nil, nil) when no snapshot
// exists.
type Store interface {
	Save(ctx context.Context, state *game.State) error
	Load(ctx context.Context) (*game.State, error)
	Delete(ctx context.Context) error
}

// NopStore discards snapshots. Used when persistence is disabled.
type NopStore struct{}

func (NopStore) Save(context.Context, *game.State) error   { return nil }
func (NopStore) Load(context.Context) (*game.State, error) { return nil, nil }
func (NopStore) Delete(context.Context) error              { return nil }
