package market

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/bitnsorg/libbitns-go/funds"
)

var (
	bucketListings    = []byte("market_listings")
	bucketFees        = []byte("market_fees")
	bucketSettlements = []byte("market_settlements")

	keyFeePool = []byte("pool")
)

// BoltStore persists marketplace state in a bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore prepares the marketplace buckets in db.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketListings, bucketFees, bucketSettlements} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("market: create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// NextListingID allocates a fresh monotonic listing id.
func (b *BoltStore) NextListingID() (uint64, error) {
	var id uint64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		seq, err := tx.Bucket(bucketListings).NextSequence()
		if err != nil {
			return err
		}
		id = seq
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SaveListing inserts or replaces a listing keyed by id.
func (b *BoltStore) SaveListing(l *Listing) error {
	data, err := encodeGob(l)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketListings).Put(listingKey(l.ID), data)
	})
}

// GetListing returns a listing.
func (b *BoltStore) GetListing(id uint64) (*Listing, error) {
	var lst *Listing
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketListings).Get(listingKey(id))
		if data == nil {
			return ErrUnknownListing
		}
		decoded := new(Listing)
		if err := decodeGob(data, decoded); err != nil {
			return err
		}
		lst = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lst, nil
}

// Listings returns all listings ordered by id.
func (b *BoltStore) Listings() ([]*Listing, error) {
	var out []*Listing
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketListings).ForEach(func(_, data []byte) error {
			l := new(Listing)
			if err := decodeGob(data, l); err != nil {
				return err
			}
			out = append(out, l)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveFeePool replaces the persisted fee pool.
func (b *BoltStore) SaveFeePool(pool map[funds.Currency]uint64) error {
	data, err := encodeGob(pool)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFees).Put(keyFeePool, data)
	})
}

// FeePool returns the persisted fee pool, nil when never saved.
func (b *BoltStore) FeePool() (map[funds.Currency]uint64, error) {
	var pool map[funds.Currency]uint64
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketFees).Get(keyFeePool)
		if data == nil {
			return nil
		}
		return decodeGob(data, &pool)
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// AppendSettlement appends a settlement record.
func (b *BoltStore) AppendSettlement(s *Settlement) error {
	data, err := encodeGob(s)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketSettlements)
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bkt.Put(key, data)
	})
}

// Settlements returns all settlements, oldest first.
func (b *BoltStore) Settlements() ([]*Settlement, error) {
	var out []*Settlement
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettlements).ForEach(func(_, data []byte) error {
			s := new(Settlement)
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

func listingKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("market: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("market: decode: %w", err)
	}
	return nil
}
