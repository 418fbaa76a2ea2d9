package relay

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
)

var failedPrefix = []byte("relay-failed-")

// FailedRecord is one stored failed message.
type FailedRecord struct {
	SrcChain    uint16
	SrcAddress  []byte
	Nonce       uint64
	PayloadHash common.Hash
}

// FailedStore keeps the payload hashes of messages that could not be
// applied, keyed by source chain, source path and nonce.
type FailedStore struct {
	db ethdb.KeyValueStore
}

// NewFailedStore wraps db.
func NewFailedStore(db ethdb.KeyValueStore) *FailedStore {
	return &FailedStore{db: db}
}

// NewMemoryFailedStore returns a store that lives in memory.
func NewMemoryFailedStore() *FailedStore {
	return NewFailedStore(memorydb.New())
}

// OpenFailedStore opens a LevelDB backed store at dir.
func OpenFailedStore(dir string, cache, handles int) (*FailedStore, error) {
	db, err := rawdb.NewLevelDBDatabase(dir, cache, handles, "peerz/relay/", false)
	if err != nil {
		return nil, fmt.Errorf("open relay store: %w", err)
	}
	return NewFailedStore(db), nil
}

// failedKey is prefix | chain (2) | uvarint len(src) | src | nonce (8).
func failedKey(chain uint16, src []byte, nonce uint64) []byte {
	key := make([]byte, 0, len(failedPrefix)+2+binary.MaxVarintLen64+len(src)+8)
	key = append(key, failedPrefix...)
	key = binary.BigEndian.AppendUint16(key, chain)
	key = binary.AppendUvarint(key, uint64(len(src)))
	key = append(key, src...)
	return binary.BigEndian.AppendUint64(key, nonce)
}

func parseFailedKey(key []byte) (FailedRecord, bool) {
	rest := key[len(failedPrefix):]
	if len(rest) < 3 {
		return FailedRecord{}, false
	}
	chain := binary.BigEndian.Uint16(rest)
	l, w := binary.Uvarint(rest[2:])
	if w <= 0 {
		return FailedRecord{}, false
	}
	rest = rest[2+w:]
	if uint64(len(rest)) != l+8 {
		return FailedRecord{}, false
	}
	n := int(l)
	return FailedRecord{
		SrcChain:   chain,
		SrcAddress: common.CopyBytes(rest[:n]),
		Nonce:      binary.BigEndian.Uint64(rest[n:]),
	}, true
}

// Get returns the stored hash, or the zero hash if nothing is stored.
func (s *FailedStore) Get(chain uint16, src []byte, nonce uint64) (common.Hash, error) {
	key := failedKey(chain, src, nonce)
	ok, err := s.db.Has(key)
	if err != nil || !ok {
		return common.Hash{}, err
	}
	val, err := s.db.Get(key)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(val), nil
}

// Put stores hash for the message.
func (s *FailedStore) Put(chain uint16, src []byte, nonce uint64, hash common.Hash) error {
	return s.db.Put(failedKey(chain, src, nonce), hash.Bytes())
}

// Delete clears the record of the message.
func (s *FailedStore) Delete(chain uint16, src []byte, nonce uint64) error {
	return s.db.Delete(failedKey(chain, src, nonce))
}

// ForEach calls fn for every stored record until fn returns an error.
func (s *FailedStore) ForEach(fn func(FailedRecord) error) error {
	it := s.db.NewIterator(failedPrefix, nil)
	defer it.Release()
	for it.Next() {
		rec, ok := parseFailedKey(it.Key())
		if !ok {
			continue
		}
		rec.PayloadHash = common.BytesToHash(it.Value())
		if err := fn(rec); err != nil {
			return err
		}
	}
	return it.Error()
}

// Close closes the underlying database.
func (s *FailedStore) Close() error {
	return s.db.Close()
}
