package store

import "context"

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// Store is the full repository used by the server.
type Store interface {
	StateStore

	// ApplyState writes every change in one transaction. An empty value
	// deletes the key. Either all changes are stored or none are.
	ApplyState(ctx context.Context, changes map[string]string) error

	// ListState returns every stored key/value pair.
	ListState(ctx context.Context) (map[string]string, error)

	// Close closes the store connection.
	Close() error
}
