package badger

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/vaultsync/go-nostr/kvstore"
)

var _ kvstore.KVStore = (*Store)(nil)

var errStopScan = errors.New("stop scan")

type Store struct {
	db *badger.DB
}

// NewStore opens (or creates) a badger database in the path directory.
func NewStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	var valCopy []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		valCopy, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return valCopy, nil
}

func (s *Store) Set(key []byte, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *Store) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Update(key []byte, f func([]byte) ([]byte, error)) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var val []byte
		item, err := txn.Get(key)
		if err == nil {
			val, err = item.ValueCopy(nil)
			if err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		newVal, err := f(val)
		if err == kvstore.NoOp {
			return nil
		} else if err != nil {
			return err
		}

		if newVal == nil {
			return txn.Delete(key)
		}
		return txn.Set(key, newVal)
	})
}

func (s *Store) Scan(prefix []byte, fn func(key []byte, value []byte) bool) error {
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.KeyCopy(nil), v) {
				return errStopScan
			}
		}
		return nil
	})
	if err == errStopScan {
		return nil
	}
	return err
}
