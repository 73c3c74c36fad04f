package store

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// AppendExpulsion writes one history entry. Keys embed the expulsion time
// so iteration order matches report order; a uuid suffix keeps entries with
// identical timestamps distinct.
func (s *MembershipStore) AppendExpulsion(r ExpulsionRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal expulsion record: %w", err)
	}

	key := fmt.Appendf(nil, "%s%020d:%s", expulsionPrefix, r.ExpelledAt.UnixNano(), uuid.NewString())

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to append expulsion record: %w", err)
	}

	return nil
}

// RecentExpulsions returns up to limit records, newest first.
func (s *MembershipStore) RecentExpulsions(limit int) ([]ExpulsionRecord, error) {
	var records []ExpulsionRecord
	prefix := []byte(expulsionPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts just past the prefix keyspace.
		seek := append(append([]byte{}, prefix...), 0xFF)

		for it.Seek(seek); it.ValidForPrefix(prefix) && len(records) < limit; it.Next() {
			var r ExpulsionRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				return err
			}
			records = append(records, r)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read expulsion records: %w", err)
	}

	return records, nil
}

// CountExpulsions returns the total number of history entries.
func (s *MembershipStore) CountExpulsions() (int, error) {
	count := 0
	prefix := []byte(expulsionPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count expulsion records: %w", err)
	}

	return count, nil
}
