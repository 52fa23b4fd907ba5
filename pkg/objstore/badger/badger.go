// Package badger implements a persistent objstore.Backend on BadgerDB.
//
// Key layout:
//
//	n:<id>       node (JSON)
//	seq:ids      object id sequence
package badger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/nfs4d/pkg/objstore"
)

const (
	prefixNode  = "n:"
	keySequence = "seq:ids"

	// sequenceBandwidth is the number of ids leased from badger at a time.
	sequenceBandwidth = 128
)

// Config configures a Backend.
type Config struct {
	// Dir is the database directory.
	Dir string

	// InMemory runs badger without touching disk (tests).
	InMemory bool
}

// Backend stores nodes in BadgerDB.
type Backend struct {
	db       *badgerdb.DB
	seq      *badgerdb.Sequence
	inMemory bool
}

var _ objstore.Backend = (*Backend)(nil)

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Backend, error) {
	opts := badgerdb.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil).WithCompression(options.None)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Dir, err)
	}

	seq, err := db.GetSequence([]byte(keySequence), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open id sequence: %w", err)
	}

	return &Backend{db: db, seq: seq, inMemory: cfg.InMemory}, nil
}

func keyNode(id uint64) []byte {
	return []byte(prefixNode + strconv.FormatUint(id, 10))
}

// Load reads the node stored under id.
func (b *Backend) Load(id uint64) (*objstore.Node, error) {
	var n objstore.Node
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyNode(id))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return objstore.ErrNodeNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &n)
		})
	})
	if err != nil {
		if errors.Is(err, objstore.ErrNodeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load node %d: %w", id, err)
	}
	// Empty directories are stored without their children key.
	if n.Type == objstore.TypeDirectory && n.Children == nil {
		n.Children = make(map[string]uint64)
	}
	return &n, nil
}

// Update writes and deletes nodes in a single transaction.
func (b *Backend) Update(save []*objstore.Node, remove []uint64) error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		for _, n := range save {
			val, err := json.Marshal(n)
			if err != nil {
				return fmt.Errorf("encode node %d: %w", n.ID, err)
			}
			if err := txn.Set(keyNode(n.ID), val); err != nil {
				return fmt.Errorf("write node %d: %w", n.ID, err)
			}
		}
		for _, id := range remove {
			if err := txn.Delete(keyNode(id)); err != nil {
				return fmt.Errorf("delete node %d: %w", id, err)
			}
		}
		return nil
	})
}

// NextID leases the next id from the badger sequence. Sequence values start
// at zero, so they are shifted past RootID.
func (b *Backend) NextID() (uint64, error) {
	v, err := b.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("allocate id: %w", err)
	}
	return v + objstore.RootID + 1, nil
}

// Sync flushes the value log.
func (b *Backend) Sync() error {
	if b.inMemory {
		return nil
	}
	return b.db.Sync()
}

// Close releases the id sequence and closes the database.
func (b *Backend) Close() error {
	relErr := b.seq.Release()
	if err := b.db.Close(); err != nil {
		return err
	}
	return relErr
}
