package rules

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Snapshot is one loaded generation of rules. It is shared read-only between
// callers and must not be mutated.
type Snapshot struct {
	Rules    []Rule
	Source   string
	Version  uint64
	LoadedAt time.Time
}

// Store holds the current rule snapshot. Rules are loaded once at
// construction; later changes to the source are picked up only through Reload
// (called directly or from Watch).
type Store struct {
	src    Source
	logger zerolog.Logger

	// reloadMu serializes loads so versions are assigned in order.
	reloadMu sync.Mutex
	current  atomic.Pointer[Snapshot]
	onReload []ReloadHook
}

// ReloadHook observes every load attempt. snap is nil when err is not.
type ReloadHook func(snap *Snapshot, err error)

type StoreOption func(*Store)

// WithReloadHook registers fn to run after each load, including the first.
// Hooks run while the reload lock is held and must not call Reload.
func WithReloadHook(fn ReloadHook) StoreOption {
	return func(s *Store) { s.onReload = append(s.onReload, fn) }
}

// NewStore loads src and returns a Store serving that snapshot. Load errors
// are returned unmodified.
func NewStore(ctx context.Context, src Source, logger zerolog.Logger, opts ...StoreOption) (*Store, error) {
	s := &Store{src: src, logger: logger.With().Str("component", "rule-store").Logger()}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload reads the source again and atomically replaces the snapshot. On
// failure the previous snapshot stays in place and the error is returned.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	snap, err := s.load(ctx)
	for _, fn := range s.onReload {
		fn(snap, err)
	}
	return snap, err
}

func (s *Store) load(ctx context.Context) (*Snapshot, error) {
	loaded, err := s.src.Load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("source", s.src.Name()).Msg("rule load failed")
		return nil, err
	}

	rules := make([]Rule, len(loaded))
	unconditional := 0
	for i, r := range loaded {
		rules[i] = r.clone()
		if r.Unconditional() {
			unconditional++
		}
	}

	var version uint64 = 1
	if prev := s.current.Load(); prev != nil {
		version = prev.Version + 1
	}
	snap := &Snapshot{
		Rules:    rules,
		Source:   s.src.Name(),
		Version:  version,
		LoadedAt: time.Now().UTC(),
	}
	s.current.Store(snap)

	if unconditional > 0 {
		s.logger.Warn().
			Int("count", unconditional).
			Str("source", snap.Source).
			Msg("rules without conditions fire for every observation")
	}
	s.logger.Info().
		Int("rules", len(rules)).
		Uint64("version", version).
		Str("source", snap.Source).
		Msg("rules loaded")
	return snap, nil
}

// Snapshot returns the current generation.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Rules returns the current rule sequence in source order.
func (s *Store) Rules() []Rule {
	return s.current.Load().Rules
}

// Source returns the underlying rule source.
func (s *Store) Source() Source {
	return s.src
}

func (s *Store) String() string {
	snap := s.current.Load()
	return fmt.Sprintf("%s (v%d, %d rules)", snap.Source, snap.Version, len(snap.Rules))
}
