package memory

import (
	"bytes"
	"slices"
	"strings"
	"sync"

	"github.com/vaultsync/go-nostr/kvstore"
)

var _ kvstore.KVStore = (*Store)(nil)

type Store struct {
	sync.RWMutex
	data map[string][]byte
}

func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

func (s *Store) Get(key []byte) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()

	if val, ok := s.data[string(key)]; ok {
		// return a copy to prevent modification of stored data
		return bytes.Clone(val), nil
	}
	return nil, nil
}

func (s *Store) Set(key []byte, value []byte) error {
	s.Lock()
	defer s.Unlock()

	s.data[string(key)] = bytes.Clone(value)
	return nil
}

func (s *Store) Delete(key []byte) error {
	s.Lock()
	defer s.Unlock()
	delete(s.data, string(key))
	return nil
}

func (s *Store) Close() error {
	s.Lock()
	defer s.Unlock()
	s.data = make(map[string][]byte)
	return nil
}

func (s *Store) Update(key []byte, f func([]byte) ([]byte, error)) error {
	s.Lock()
	defer s.Unlock()

	var val []byte
	if v, ok := s.data[string(key)]; ok {
		val = bytes.Clone(v)
	}

	newVal, err := f(val)
	if err == kvstore.NoOp {
		return nil
	} else if err != nil {
		return err
	}

	if newVal == nil {
		delete(s.data, string(key))
	} else {
		s.data[string(key)] = bytes.Clone(newVal)
	}
	return nil
}

func (s *Store) Scan(prefix []byte, fn func(key []byte, value []byte) bool) error {
	s.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = bytes.Clone(s.data[k])
	}
	s.RUnlock()

	for i, k := range keys {
		if !fn([]byte(k), values[i]) {
			break
		}
	}
	return nil
}
