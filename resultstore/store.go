package resultstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/hashicorp/go-msgpack/codec"
	"lukechampine.com/blake3"

	"github.com/shreekarashastry/blocksim/node"
	"github.com/shreekarashastry/blocksim/simulation"
)

var ErrRunNotFound = errors.New("resultstore: run not found")

const (
	runPrefix   = "run:"
	statsPrefix = "stats:"
	idLength    = 16
)

var msgpackHandle = &codec.MsgpackHandle{}

// RunID identifies a stored run. It is derived from the encoded record.
type RunID string

// Record is what the store keeps for one run.
type Record struct {
	Label   string                  `codec:"label"`
	Summary simulation.RunSummary   `codec:"summary"`
	Blocks  []simulation.BlockEvent `codec:"blocks"`
}

// Store persists run records in badger.
type Store struct {
	db *badger.DB
}

func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("resultstore: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func encode(v interface{}) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, msgpackHandle).Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

func decode(data []byte, v interface{}) error {
	return codec.NewDecoderBytes(data, msgpackHandle).Decode(v)
}

func statsKey(id RunID, n int) []byte {
	return []byte(statsPrefix + string(id) + ":" + strconv.Itoa(n))
}

// Put stores rec and the statistics of each of its nodes.
func (s *Store) Put(rec Record) (RunID, error) {
	val, err := encode(rec)
	if err != nil {
		return "", fmt.Errorf("resultstore: encode run: %w", err)
	}
	sum := blake3.Sum256(val)
	id := RunID(hex.EncodeToString(sum[:idLength]))

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(runPrefix+string(id)), val); err != nil {
			return err
		}
		for i, st := range rec.Summary.Nodes {
			v, err := encode(st)
			if err != nil {
				return err
			}
			if err := txn.Set(statsKey(id, i), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("resultstore: put run %s: %w", id, err)
	}
	return id, nil
}

func (s *Store) get(key []byte, v interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrRunNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return decode(val, v)
		})
	})
}

// Get returns the record stored under id.
func (s *Store) Get(id RunID) (Record, error) {
	var rec Record
	if err := s.get([]byte(runPrefix+string(id)), &rec); err != nil {
		return Record{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// NodeStats returns the statistics of node n in run id.
func (s *Store) NodeStats(id RunID, n int) (node.Statistics, error) {
	var st node.Statistics
	if err := s.get(statsKey(id, n), &st); err != nil {
		return node.Statistics{}, fmt.Errorf("get stats %s/%d: %w", id, n, err)
	}
	return st, nil
}

// List returns the ids of every stored run in key order.
func (s *Store) List() ([]RunID, error) {
	var ids []RunID
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			ids = append(ids, RunID(key[len(runPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resultstore: list runs: %w", err)
	}
	return ids, nil
}
