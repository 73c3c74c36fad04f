package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// UpsertMember writes the member row keyed by (room, user), overwriting any
// stale prior row. Replaying the same join resets the dwell clock, which is
// the intended behaviour: the latest join observation is the source of truth.
func (s *MembershipStore) UpsertMember(m TrackedMember) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal member: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(memberKey(m.UserID, m.RoomID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert member %d in room %d: %w", m.UserID, m.RoomID, err)
	}

	return nil
}

// DeleteMember removes the member row. Deleting an absent row is a no-op.
func (s *MembershipStore) DeleteMember(userID, roomID int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(memberKey(userID, roomID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete member %d in room %d: %w", userID, roomID, err)
	}

	return nil
}

// GetMember returns the member row and whether it exists.
func (s *MembershipStore) GetMember(userID, roomID int64) (TrackedMember, bool, error) {
	var m TrackedMember
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(memberKey(userID, roomID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if err != nil {
		return TrackedMember{}, false, fmt.Errorf("failed to get member %d in room %d: %w", userID, roomID, err)
	}

	return m, found, nil
}

// ListMembers returns all tracked member rows.
func (s *MembershipStore) ListMembers() ([]TrackedMember, error) {
	var members []TrackedMember
	prefix := []byte(memberPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m TrackedMember
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return err
			}
			members = append(members, m)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}

// CountMembers returns the number of tracked member rows.
func (s *MembershipStore) CountMembers() (int, error) {
	count := 0
	prefix := []byte(memberPrefix)

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
		return 0, fmt.Errorf("failed to count members: %w", err)
	}

	return count, nil
}
