package logins

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/kvstore"
)

var ErrNotFound = errors.New("login not found")

// records live under recordPrefix followed by the inverted append sequence, so a prefix scan
// yields the most recent first.
const (
	recordPrefix = "login/"
	sequenceKey  = "login-seq"
)

// Store persists logins in a kvstore.KVStore.
type Store struct {
	mu sync.Mutex
	kv kvstore.KVStore
}

func NewStore(kv kvstore.KVStore) *Store {
	return &Store{kv: kv}
}

// Append saves l as the most recent login, replacing any previous record with the same ID.
func (s *Store) Append(l Login) error {
	if err := l.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.remove(l.ID); err != nil {
		return err
	}

	var seq uint64
	err = s.kv.Update([]byte(sequenceKey), func(old []byte) ([]byte, error) {
		if len(old) == 8 {
			seq = binary.BigEndian.Uint64(old)
		}
		seq++
		return binary.BigEndian.AppendUint64(nil, seq), nil
	})
	if err != nil {
		return fmt.Errorf("failed to bump login sequence: %w", err)
	}

	return s.kv.Set(recordKey(seq), data)
}

// List returns every login, most recent first.
func (s *Store) List() ([]Login, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]Login, 0, 4)
	err := s.scan(func(_ []byte, l Login) bool {
		list = append(list, l)
		return true
	})
	return list, err
}

func (s *Store) Get(id string) (Login, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *Login
	err := s.scan(func(_ []byte, l Login) bool {
		if l.ID == id {
			found = &l
			return false
		}
		return true
	})
	if err != nil {
		return Login{}, err
	}
	if found == nil {
		return Login{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *found, nil
}

// Remove deletes the login with this id. Removing an unknown id is not an error.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(id)
}

// Clear deletes every login.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys [][]byte
	if err := s.kv.Scan([]byte(recordPrefix), func(key []byte, _ []byte) bool {
		keys = append(keys, key)
		return true
	}); err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.kv.Delete(key); err != nil {
			return err
		}
	}
	return s.kv.Delete([]byte(sequenceKey))
}

func (s *Store) remove(id string) error {
	var keys [][]byte
	err := s.scan(func(key []byte, l Login) bool {
		if l.ID == id {
			keys = append(keys, key)
		}
		return true
	})
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.kv.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) scan(fn func(key []byte, l Login) bool) error {
	var decodeErr error
	err := s.kv.Scan([]byte(recordPrefix), func(key []byte, value []byte) bool {
		var l Login
		if err := json.Unmarshal(value, &l); err != nil {
			decodeErr = fmt.Errorf("%w: login record %x: %w", nostr.ErrDecode, key, err)
			return false
		}
		return fn(key, l)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

func recordKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte(recordPrefix), ^seq)
}
