// Package journal persists per-run transfer outcomes so a partially-failed
// session leaves a durable record of which keys landed and which phase
// stopped the run.
package journal

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Outcome values recorded per transfer attempt.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Entry is one recorded transfer attempt within a run.
type Entry struct {
	Run     string    `json:"run"`
	Phase   string    `json:"phase"`
	Key     string    `json:"key,omitempty"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Journal is an append-only badger-backed log of transfer entries,
// keyed <run>/<sequence> so entries replay in append order.
type Journal struct {
	db  *badger.DB
	seq atomic.Uint64
}

// Open opens (or creates) a journal at dir.
func Open(dir string) (*Journal, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Append records one entry. Entries with a zero timestamp are stamped now.
func (j *Journal) Append(e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	val, err := json.Marshal(e)
	if err != nil {
		return err
	}
	k := fmt.Sprintf("%s/%012d", e.Run, j.seq.Add(1))
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(k), val)
	})
}

// Run returns all entries recorded for the given run, in append order.
func (j *Journal) Run(run string) ([]Entry, error) {
	var out []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(run + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var e Entry
				if err := json.Unmarshal(v, &e); err != nil {
					return err
				}
				out = append(out, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
