// internal/snapshot/badger_store.go
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"intrawatch/internal/errors"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps one value per project under a key prefix. Commit
// rewrites the whole prefix inside a single transaction.
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore(db *badger.DB, prefix string) *BadgerStore {
	if prefix == "" {
		prefix = "snapshot"
	}
	return &BadgerStore{
		db:     db,
		prefix: prefix,
	}
}

func (s *BadgerStore) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *BadgerStore) stripPrefix(key []byte) string {
	return strings.TrimPrefix(string(key), fmt.Sprintf("%s:", s.prefix))
}

func (s *BadgerStore) Load(_ context.Context) (*Snapshot, error) {
	snap := New()

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(s.prefix + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := s.stripPrefix(item.Key())
			err := item.Value(func(val []byte) error {
				var p ProjectSnapshot
				if err := json.Unmarshal(val, &p); err != nil {
					return errors.Corrupt(fmt.Sprintf("decoding project %q", key), err)
				}
				p.Key = key
				snap.Put(&p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.IsCorrupt(err) {
			return nil, err
		}
		return nil, errors.Internal("loading snapshot", err)
	}
	return snap, nil
}

func (s *BadgerStore) Commit(_ context.Context, snap *Snapshot) error {
	values := make(map[string][]byte, len(snap.Projects))
	for k, p := range snap.Projects {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshaling project %s: %w", k, err)
		}
		values[NormalizeKey(k)] = data
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		// Drop keys that are no longer part of the snapshot, then write the rest.
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(s.prefix + ":")
		opts.PrefetchValues = false

		var stale [][]byte
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			if _, ok := values[s.stripPrefix(it.Item().Key())]; !ok {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for k, data := range values {
			if err := txn.Set(s.makeKey(k), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}
