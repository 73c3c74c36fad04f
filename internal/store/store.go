// Package store provides the durable membership state for Doorman, backed
// by BadgerDB. It holds two keyspaces: the tracked-member table (one row per
// user/room pair, overwritten on re-join) and the append-only expulsion log.
// All operations are single-key transactions; callers rely on that for
// correctness under concurrent event delivery.
package store

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	memberPrefix    = "member:"
	expulsionPrefix = "expulsion:"
)

// TrackedMember identifies one actively tracked occupant of one room.
// Presence of a row means the member is being watched for overstaying.
type TrackedMember struct {
	UserID      int64     `json:"user_id"`
	RoomID      int64     `json:"room_id"`
	JoinedAt    time.Time `json:"joined_at"`
	Handle      string    `json:"handle,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
}

// ExpulsionRecord is one append-only history entry, written exactly once
// per successful expulsion.
type ExpulsionRecord struct {
	UserID       int64     `json:"user_id"`
	RoomID       int64     `json:"room_id"`
	Handle       string    `json:"handle,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	ExpelledAt   time.Time `json:"expelled_at"`
	DwellSeconds int64     `json:"dwell_seconds"`
}

// MembershipStore is the badger-backed membership state.
type MembershipStore struct {
	db *badger.DB
}

// Open opens (or creates) the store at the given path.
func Open(path string) (*MembershipStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open membership store at %s: %w", path, err)
	}

	return &MembershipStore{db: db}, nil
}

// OpenInMemory opens an in-memory store. Used in tests.
func OpenInMemory() (*MembershipStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory membership store: %w", err)
	}

	return &MembershipStore{db: db}, nil
}

// Close closes the underlying database.
func (s *MembershipStore) Close() error {
	return s.db.Close()
}

func memberKey(userID, roomID int64) []byte {
	return fmt.Appendf(nil, "%s%d:%d", memberPrefix, roomID, userID)
}
