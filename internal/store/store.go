// Package store is the Storage Provider's local chunk store: an embedded
// badger KV keyed by root||index, value a length-prefixed concatenation of
// chunk_bytes and the Merkle proof, giving restart-durable storage without
// hand-rolling a file format.
package store

import (
	"encoding/binary"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/pkakelas/poda/internal/types"
)

// Store persists (root, index) -> (chunk_bytes, merkle_proof).
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a badger store rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, types.Wrap("store.Open", types.StorageCorrupt, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying badger handles.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(root types.Root, index uint16) []byte {
	k := make([]byte, 32+2)
	copy(k, root[:])
	binary.BigEndian.PutUint16(k[32:], index)
	return k
}

// Record is a stored chunk plus its Merkle inclusion proof.
type Record struct {
	Data  []byte
	Proof types.MerkleProof
}

func encodeRecord(r Record) []byte {
	buf := make([]byte, 0, 4+len(r.Data)+4+len(r.Proof.Siblings)*32)
	lenBuf := make([]byte, 4)

	binary.BigEndian.PutUint32(lenBuf, uint32(len(r.Data)))
	buf = append(buf, lenBuf...)
	buf = append(buf, r.Data...)

	binary.BigEndian.PutUint32(lenBuf, uint32(len(r.Proof.Siblings)))
	buf = append(buf, lenBuf...)
	for _, sib := range r.Proof.Siblings {
		buf = append(buf, sib[:]...)
	}
	return buf
}

func decodeRecord(index uint16, raw []byte) (Record, error) {
	if len(raw) < 4 {
		return Record{}, types.Wrap("store.decodeRecord", types.StorageCorrupt, errors.New("truncated record"))
	}
	dataLen := binary.BigEndian.Uint32(raw[:4])
	raw = raw[4:]
	if uint32(len(raw)) < dataLen {
		return Record{}, types.Wrap("store.decodeRecord", types.StorageCorrupt, errors.New("truncated chunk data"))
	}
	data := raw[:dataLen]
	raw = raw[dataLen:]

	if len(raw) < 4 {
		return Record{}, types.Wrap("store.decodeRecord", types.StorageCorrupt, errors.New("truncated proof header"))
	}
	numSiblings := binary.BigEndian.Uint32(raw[:4])
	raw = raw[4:]
	if uint32(len(raw)) < numSiblings*32 {
		return Record{}, types.Wrap("store.decodeRecord", types.StorageCorrupt, errors.New("truncated proof body"))
	}
	siblings := make([][32]byte, numSiblings)
	for i := uint32(0); i < numSiblings; i++ {
		copy(siblings[i][:], raw[i*32:(i+1)*32])
	}
	return Record{Data: data, Proof: types.MerkleProof{Siblings: siblings, Index: index}}, nil
}

// Put stores a record, idempotently: a re-PUT with byte-identical content
// is a no-op, and a re-PUT with conflicting content is rejected.
func (s *Store) Put(root types.Root, index uint16, rec Record) error {
	k := key(root, index)
	newVal := encodeRecord(rec)
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err == nil {
			existing, verr := item.ValueCopy(nil)
			if verr != nil {
				return types.Wrap("store.Put", types.StorageCorrupt, verr)
			}
			if bytesEqual(existing, newVal) {
				return nil
			}
			return types.Wrap("store.Put", types.InvalidInput, errors.New("conflicting content for existing chunk"))
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return types.Wrap("store.Put", types.StorageCorrupt, err)
		}
		if werr := txn.Set(k, newVal); werr != nil {
			return types.Wrap("store.Put", types.StorageFull, werr)
		}
		return nil
	})
}

// Get retrieves a stored record, or a NotFound *types.Error.
func (s *Store) Get(root types.Root, index uint16) (Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(root, index))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return types.Wrap("store.Get", types.NotFound, nil)
		}
		if err != nil {
			return types.Wrap("store.Get", types.StorageCorrupt, err)
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return types.Wrap("store.Get", types.StorageCorrupt, err)
		}
		rec, err = decodeRecord(index, raw)
		return err
	})
	return rec, err
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
