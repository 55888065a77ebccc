// Package cache stores question texts by id so a tracked question can be
// shown without a lookup round trip.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/st-keller/jimmy-client/types"
)

// Store kinds accepted by Open.
const (
	KindMemory = "memory"
	KindFile   = "file"
	KindRedis  = "redis"
)

// DefaultRedisKey is the hash that holds question texts.
const DefaultRedisKey = "jimmy:questions"

// Store is a question-text cache. Get reports a miss with ok=false and a
// nil error.
type Store interface {
	Get(ctx context.Context, id types.ItemID) (text string, ok bool, err error)
	Put(ctx context.Context, id types.ItemID, text string) error
	Close() error
}

// Options selects and configures a Store.
type Options struct {
	Kind     string
	Path     string
	RedisURL string
	RedisKey string
}

// Open builds the Store named by opts.Kind. An empty kind means memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Kind {
	case "", KindMemory:
		return NewMemory(), nil
	case KindFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("file cache requires a path")
		}
		f, err := OpenFile(opts.Path)
		if err != nil {
			return nil, err
		}
		return f, nil
	case KindRedis:
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("redis cache requires a redis URL")
		}
		r, err := DialRedis(ctx, opts.RedisURL, opts.RedisKey)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown cache kind %q", opts.Kind)
	}
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	texts map[types.ItemID]string
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{texts: make(map[types.ItemID]string)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, id types.ItemID) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.texts[id]
	return text, ok, nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, id types.ItemID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[id] = text
	return nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
