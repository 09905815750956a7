// Persistent key value storage for the last
// entered input.
//
// Three backends are provided: an sqlite file, a
// postgres table and an in-memory map. All of them
// treat a missing key as ErrNotFound.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Key under which the web UI stores its input
const InputKey = "inputJson"

var ErrNotFound = errors.New("key not found")

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Close() error
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverPG     = "pg"
)

// Opens the store for driver. dsn is a file path for
// sqlite, a postgres url for pg and ignored for memory.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(ctx, dsn)
	case DriverPG:
		return OpenPG(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

type Memory struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemory() *Memory {
	return &Memory{m: map[string]string{}}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[key] = value
	return nil
}

func (m *Memory) Close() error { return nil }
