package splitter

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketStates  = []byte("splitter_states")
	bucketRecords = []byte("splitter_records")
)

// BoltStore persists splitter state in bbolt.
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore creates the splitter buckets in an open bbolt database.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketStates, bucketRecords} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("splitter: create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// handleKey encodes a handle as an 8-byte big-endian key for sorted storage.
func handleKey(h uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, h)
	return k
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// SaveState writes an instance snapshot keyed by handle.
func (s *BoltStore) SaveState(st *State) error {
	data, err := encodeGob(st)
	if err != nil {
		return fmt.Errorf("splitter: encode state: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStates).Put(handleKey(st.Handle), data)
	})
}

// GetState retrieves an instance snapshot by handle.
func (s *BoltStore) GetState(handle uint64) (*State, error) {
	var st State
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStates).Get(handleKey(handle))
		if data == nil {
			return ErrStateNotFound
		}
		if err := decodeGob(data, &st); err != nil {
			return fmt.Errorf("splitter: decode state: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// States returns all snapshots ordered by handle.
func (s *BoltStore) States() ([]*State, error) {
	var out []*State
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStates).ForEach(func(_, data []byte) error {
			var st State
			if err := decodeGob(data, &st); err != nil {
				return fmt.Errorf("splitter: decode state: %w", err)
			}
			out = append(out, &st)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AppendRecord appends a lifecycle record with a monotonic sequence key.
func (s *BoltStore) AppendRecord(rec *Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("splitter: record sequence: %w", err)
		}
		rec.Seq = seq
		if rec.Time.IsZero() {
			rec.Time = time.Now().UTC()
		}
		data, err := encodeGob(rec)
		if err != nil {
			return fmt.Errorf("splitter: encode record: %w", err)
		}
		return b.Put(handleKey(seq), data)
	})
}

// Records returns all lifecycle records in append order.
func (s *BoltStore) Records() ([]*Record, error) {
	var out []*Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(_, data []byte) error {
			var rec Record
			if err := decodeGob(data, &rec); err != nil {
				return fmt.Errorf("splitter: decode record: %w", err)
			}
			out = append(out, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
