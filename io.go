package obscuro

import (
	"encoding/gob"
	"io"
)

// SnapshotEntry is the persistable state of one information set: who
// acts there and what the time-averaged strategy has converged to.
// Actions are game-opaque, so entries carry distributions by index in
// the game's action order.
type SnapshotEntry struct {
	Player      Player
	AvgStrategy []float64
	VisitCounts []int
}

// Snapshot is a point-in-time export of every information set the
// engine has touched, keyed by trace.
type Snapshot map[string]SnapshotEntry

// Snapshot exports the engine's current average strategies.
func (ob *Obscuro) Snapshot() Snapshot {
	snap := make(Snapshot, ob.infoSets.size())
	ob.infoSets.each(func(in *Info) {
		in.read(func(p *Policy) {
			snap[in.Trace().Key()] = SnapshotEntry{
				Player:      p.Player(),
				AvgStrategy: p.AvgStrategy(),
				VisitCounts: p.VisitCounts(),
			}
		})
	})

	return snap
}

// MarshalTo writes the snapshot to w in gob encoding.
func (s Snapshot) MarshalTo(w io.Writer) error {
	enc := gob.NewEncoder(w)
	if err := enc.Encode(len(s)); err != nil {
		return err
	}

	for key, entry := range s {
		if err := enc.Encode(key); err != nil {
			return err
		}

		if err := enc.Encode(entry); err != nil {
			return err
		}
	}

	return nil
}

// LoadSnapshot reads a snapshot written by MarshalTo.
func LoadSnapshot(r io.Reader) (Snapshot, error) {
	dec := gob.NewDecoder(r)

	var n int
	if err := dec.Decode(&n); err != nil {
		return nil, err
	}

	snap := make(Snapshot, n)
	for i := 0; i < n; i++ {
		var key string
		if err := dec.Decode(&key); err != nil {
			return nil, err
		}

		var entry SnapshotEntry
		if err := dec.Decode(&entry); err != nil {
			return nil, err
		}

		snap[key] = entry
	}

	return snap, nil
}

// StrategyStore persists snapshot entries keyed by trace. ldbstore and
// rdbstore provide disk-backed implementations for studies too large
// to keep in memory.
type StrategyStore interface {
	// PutStrategy stores or replaces the entry for a trace key.
	PutStrategy(key string, entry SnapshotEntry) error
	// GetStrategy returns the entry for a trace key; the bool reports
	// whether it was present.
	GetStrategy(key string) (SnapshotEntry, bool, error)
	// Close releases the backing resources.
	Close() error
}

// SaveTo writes every entry of the snapshot into the store.
func (s Snapshot) SaveTo(store StrategyStore) error {
	for key, entry := range s {
		if err := store.PutStrategy(key, entry); err != nil {
			return err
		}
	}

	return nil
}
