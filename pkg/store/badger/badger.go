// Package badger implements store.DeadLetterStore on an embedded badger database.
//
// The queue lives on local disk, so dead letters are kept even while the
// document database they could not reach is down. Records are CBOR encoded
// under keys "dlq/<big-endian id>", which makes key order insertion order.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
)

var (
	recordPrefix = []byte("dlq/")
	sequenceKey  = []byte("seq/dlq")
)

const sequenceBandwidth = 64

// DeadLetterStore is a badger backed store.DeadLetterStore.
type DeadLetterStore struct {
	db  *badger.DB
	seq *badger.Sequence
	enc cbor.EncMode
}

var _ store.DeadLetterStore = (*DeadLetterStore)(nil)

// Open opens (or creates) the queue in dir. An empty dir keeps everything in memory.
func Open(dir string) (*DeadLetterStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", dir, err)
	}
	seq, err := db.GetSequence(sequenceKey, sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open dead letter sequence: %w", err)
	}
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DeadLetterStore{db: db, seq: seq, enc: enc}, nil
}

// Close releases the sequence lease and closes the database.
func (s *DeadLetterStore) Close() error {
	return errors.Join(s.seq.Release(), s.db.Close())
}

func recordKey(id uint64) []byte {
	key := make([]byte, len(recordPrefix)+8)
	copy(key, recordPrefix)
	binary.BigEndian.PutUint64(key[len(recordPrefix):], id)
	return key
}

func (s *DeadLetterStore) put(txn *badger.Txn, record *models.DeadLetter) error {
	data, err := s.enc.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode dead letter: %w", err)
	}
	return txn.Set(recordKey(record.ID), data)
}

func decode(item *badger.Item) (*models.DeadLetter, error) {
	var record models.DeadLetter
	err := item.Value(func(v []byte) error {
		return cbor.Unmarshal(v, &record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode dead letter %x: %w", item.Key(), err)
	}
	return &record, nil
}

func (s *DeadLetterStore) AppendDeadLetter(ctx context.Context, record *models.DeadLetter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	next, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate dead letter id: %w", err)
	}
	// sequences start at 0, ids start at 1
	record.ID = next + 1
	return s.db.Update(func(txn *badger.Txn) error {
		return s.put(txn, record)
	})
}

// scan walks records in key order until fn returns false.
func (s *DeadLetterStore) scan(fn func(*models.DeadLetter) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(recordPrefix); it.ValidForPrefix(recordPrefix); it.Next() {
			record, err := decode(it.Item())
			if err != nil {
				return err
			}
			if !fn(record) {
				return nil
			}
		}
		return nil
	})
}

func (s *DeadLetterStore) ListUnresolvedDeadLetters(ctx context.Context, limit int) ([]*models.DeadLetter, error) {
	var out []*models.DeadLetter
	err := s.scan(func(r *models.DeadLetter) bool {
		if r.Resolved {
			return true
		}
		out = append(out, r)
		return limit <= 0 || len(out) < limit
	})
	return out, err
}

func (s *DeadLetterStore) GetDeadLetter(ctx context.Context, id uint64) (*models.DeadLetter, error) {
	var record *models.DeadLetter
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if err != nil {
			return err
		}
		record, err = decode(item)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return record, err
}

// modify applies fn to the stored record inside one transaction.
func (s *DeadLetterStore) modify(id uint64, fn func(*models.DeadLetter)) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %d", store.ErrDeadLetterNotFound, id)
		}
		if err != nil {
			return err
		}
		record, err := decode(item)
		if err != nil {
			return err
		}
		fn(record)
		return s.put(txn, record)
	})
}

func (s *DeadLetterStore) MarkDeadLetterResolved(ctx context.Context, id uint64) error {
	return s.modify(id, func(r *models.DeadLetter) {
		if !r.Resolved {
			r.MarkResolved(time.Now().UTC())
		}
	})
}

func (s *DeadLetterStore) IncrementDeadLetterRetry(ctx context.Context, id uint64, errorMsg string) error {
	return s.modify(id, func(r *models.DeadLetter) {
		r.MarkRetry(errorMsg)
	})
}

func (s *DeadLetterStore) CountUnresolvedDeadLetters(ctx context.Context) (int64, error) {
	var n int64
	err := s.scan(func(r *models.DeadLetter) bool {
		if !r.Resolved {
			n++
		}
		return true
	})
	return n, err
}
