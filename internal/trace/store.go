package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"llmos/internal/objectstore"
)

// ErrCorruptTrace marks a trace file that failed to parse. Per §7, a corrupt
// trace is skipped on load and logged; it must never crash the store.
var ErrCorruptTrace = errors.New("CORRUPT_TRACE")

// Store persists ExecutionTrace values, one object per goal signature, under
// an objectstore.ObjectStore backend. The required backend is local files
// (write-temp + atomic rename, via objectstore.FileStore); an optional
// Postgres-backed TraceStore implementing the same interface is provided in
// store_postgres.go for installations that want the trace memory to outlive
// any single process's disk (§11).
type Store struct {
	backend objectstore.ObjectStore
	mu      sync.Mutex // serializes read-modify-write update_usage calls
}

// NewStore wraps backend as a trace Store.
func NewStore(backend objectstore.ObjectStore) *Store {
	return &Store{backend: backend}
}

// NewFileStore is a convenience constructor for the required local-disk
// backend, rooted at <workspace>/memories/traces.
func NewFileStore(tracesDir string) (*Store, error) {
	fs, err := objectstore.NewFileStore(tracesDir)
	if err != nil {
		return nil, err
	}
	return NewStore(fs), nil
}

func objectKey(sig Signature) string {
	return string(sig) + ".json"
}

// Save persists trace, overwriting any existing record for the same
// GoalSignature.
func (s *Store) Save(ctx context.Context, t ExecutionTrace) error {
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trace %s: %w", t.GoalSignature, err)
	}
	_, err = s.backend.Put(ctx, objectKey(t.GoalSignature), bytes.NewReader(b), objectstore.PutOptions{ContentType: "application/json"})
	return err
}

// Load reads the trace for signature. Returns objectstore.ErrNotFound if no
// trace exists, or ErrCorruptTrace if the stored JSON cannot be parsed.
func (s *Store) Load(ctx context.Context, sig Signature) (ExecutionTrace, error) {
	r, _, err := s.backend.Get(ctx, objectKey(sig))
	if err != nil {
		return ExecutionTrace{}, err
	}
	defer r.Close()
	return decodeTrace(r)
}

func decodeTrace(r io.Reader) (ExecutionTrace, error) {
	var t ExecutionTrace
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return ExecutionTrace{}, fmt.Errorf("%w: %v", ErrCorruptTrace, err)
	}
	return t, nil
}

// All lazily iterates every parseable trace in the store. A trace file that
// fails to parse is skipped with a logged warning; it never aborts the
// iteration over the rest (§4.3, invariant 3 in §8).
func (s *Store) All(ctx context.Context) ([]ExecutionTrace, error) {
	listing, err := s.backend.List(ctx, objectstore.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]ExecutionTrace, 0, len(listing.Objects))
	for _, obj := range listing.Objects {
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		r, _, err := s.backend.Get(ctx, obj.Key)
		if err != nil {
			log.Warn().Err(err).Str("key", obj.Key).Msg("trace_store_load_failed")
			continue
		}
		t, err := decodeTrace(r)
		r.Close()
		if err != nil {
			log.Warn().Err(err).Str("key", obj.Key).Msg("trace_store_skipping_corrupt_trace")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// UpdateUsage increments usage_count, bumps last_used_at, and adjusts
// success_rating with an exponential moving average (weight 0.2 for the new
// observation): new = 0.2*observed + 0.8*old. A trivially successful replay
// (empty tools_used) still reinforces the trace (§9 open-question decision).
func (s *Store) UpdateUsage(ctx context.Context, sig Signature, success bool) (ExecutionTrace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.Load(ctx, sig)
	if err != nil {
		return ExecutionTrace{}, err
	}

	t.UsageCount++
	now := time.Now().UTC()
	t.LastUsedAt = &now

	observed := 0.0
	if success {
		observed = 1.0
	}
	const emaWeight = 0.2
	t.SuccessRating = emaWeight*observed + (1-emaWeight)*t.SuccessRating

	if err := s.Save(ctx, t); err != nil {
		return ExecutionTrace{}, err
	}
	return t, nil
}

// similarityBonus computes the usage/success bonus term used by the
// reference Jaccard similarity function (§4.4): proportional to
// log(usage_count+1) * success_rating.
func similarityBonus(usageCount int, successRating float64) float64 {
	return math.Log(float64(usageCount)+1) * successRating
}
