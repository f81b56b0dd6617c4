package registry

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/bitnsorg/libbitns-go/nft"
)

var (
	bucketConfig = []byte("registry_config")
	bucketSales  = []byte("registry_sales")

	keyConfig = []byte("config")
)

// BoltStore persists registry state in a bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore prepares the registry buckets in db.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketConfig, bucketSales} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("registry: create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// SaveRoyaltyConfig replaces the stored royalty configuration.
func (b *BoltStore) SaveRoyaltyConfig(st *RoyaltyState) error {
	data, err := encodeGob(st)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConfig).Put(keyConfig, data)
	})
}

// GetRoyaltyConfig returns the stored royalty configuration.
func (b *BoltStore) GetRoyaltyConfig() (*RoyaltyState, error) {
	var st *RoyaltyState
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketConfig).Get(keyConfig)
		if data == nil {
			return ErrConfigNotFound
		}
		decoded := new(RoyaltyState)
		if err := decodeGob(data, decoded); err != nil {
			return err
		}
		st = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	if st.Overrides == nil {
		st.Overrides = make(map[nft.TokenID]RoyaltyInfo)
	}
	return st, nil
}

// AppendSale appends a sale record.
func (b *BoltStore) AppendSale(s *Sale) error {
	data, err := encodeGob(s)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketSales)
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bkt.Put(key, data)
	})
}

// SalesOf returns the sales of one token, oldest first.
func (b *BoltStore) SalesOf(id nft.TokenID) ([]*Sale, error) {
	all, err := b.Sales()
	if err != nil {
		return nil, err
	}
	var out []*Sale
	for _, s := range all {
		if s.Token == id {
			out = append(out, s)
		}
	}
	return out, nil
}

// Sales returns all sales, oldest first.
func (b *BoltStore) Sales() ([]*Sale, error) {
	var out []*Sale
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSales).ForEach(func(_, data []byte) error {
			s := new(Sale)
			if err := decodeGob(data, s); err != nil {
				return err
			}
			out = append(out, s)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("registry: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("registry: decode: %w", err)
	}
	return nil
}
