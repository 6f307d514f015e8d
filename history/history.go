// Package history maintains an advisory, LevelDB-backed audit trail of
// baker actions so an operator can answer "what did we do at level N"
// after the fact. It is a supplement beyond the distilled spec: nothing
// in the baker package reads it back, and a write failure here is logged
// and ignored rather than propagated (spec.md §7 "NonceStore write
// failure: logged; in-memory state proceeds" sets the same tone for any
// best-effort persistence in this agent).
package history

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/tolelom/tolbaker/events"
	"github.com/tolelom/tolbaker/storage"
)

const (
	prefixLevel = "history:level:"
	keyRecent   = "history:recent"
	maxRecent   = 500
)

// Record is one entry in the audit trail.
type Record struct {
	Level     int64           `json:"level"`
	Type      events.EventType `json:"type"`
	BlockHash string          `json:"block_hash,omitempty"`
	Err       string          `json:"err,omitempty"`
}

// Recorder subscribes to the baker's event bus and appends a Record per
// action, keyed by level.
type Recorder struct {
	db storage.DB
}

// New creates a Recorder backed by db and subscribes it to every baker
// lifecycle event on e except head_changed, which is not recorded.
func New(db storage.DB, e *events.Emitter) *Recorder {
	r := &Recorder{db: db}
	for _, typ := range []events.EventType{
		events.EventBaked, events.EventEndorsed, events.EventInjected,
		events.EventRevealed, events.EventAbandoned, events.EventBakeFailed,
		events.EventLevelRace,
	} {
		e.Subscribe(typ, r.onEvent)
	}
	return r
}

// ForLevel returns every record for level, in the order they were recorded.
func (r *Recorder) ForLevel(level int64) ([]Record, error) {
	return r.getRecords(levelKey(level))
}

// RecentLevels returns the most recently touched levels, newest last.
func (r *Recorder) RecentLevels() ([]int64, error) {
	data, err := r.db.Get([]byte(keyRecent))
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var levels []int64
	if err := json.Unmarshal(data, &levels); err != nil {
		return nil, fmt.Errorf("history: decode recent: %w", err)
	}
	return levels, nil
}

func (r *Recorder) onEvent(ev events.Event) {
	rec := Record{Level: ev.Level, Type: ev.Type, BlockHash: ev.BlockHash}
	if ev.Err != nil {
		rec.Err = ev.Err.Error()
	}
	if err := r.append(levelKey(ev.Level), rec); err != nil {
		log.Printf("[history] write failed for level %d: %v", ev.Level, err)
		return
	}
	if err := r.touchRecent(ev.Level); err != nil {
		log.Printf("[history] recent-levels update failed: %v", err)
	}
}

func (r *Recorder) getRecords(key string) ([]Record, error) {
	data, err := r.db.Get([]byte(key))
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("history: decode records: %w", err)
	}
	return recs, nil
}

func (r *Recorder) append(key string, rec Record) error {
	recs, err := r.getRecords(key)
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	recs = append(recs, rec)
	data, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	return r.db.Set([]byte(key), data)
}

func (r *Recorder) touchRecent(level int64) error {
	levels, err := r.RecentLevels()
	if err != nil {
		return fmt.Errorf("read recent: %w", err)
	}
	if len(levels) == 0 || levels[len(levels)-1] != level {
		levels = append(levels, level)
	}
	if len(levels) > maxRecent {
		levels = levels[len(levels)-maxRecent:]
	}
	data, err := json.Marshal(levels)
	if err != nil {
		return err
	}
	return r.db.Set([]byte(keyRecent), data)
}

func levelKey(level int64) string {
	return fmt.Sprintf("%s%d", prefixLevel, level)
}
