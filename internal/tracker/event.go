// Package tracker implements the membership expiry tracker: it owns the
// join-state table, decides who is overdue, and guarantees each overdue
// member is expelled exactly once even under concurrent event delivery and
// periodic sweeps.
package tracker

import "time"

// MemberStatus is the normalized membership status of a user in a room.
// Both transport adapters (long polling and webhook) map platform statuses
// onto this set before events reach the ingestor.
type MemberStatus string

const (
	StatusUnknown       MemberStatus = "unknown"
	StatusAbsent        MemberStatus = "absent"
	StatusMember        MemberStatus = "member"
	StatusAdministrator MemberStatus = "administrator"
	StatusOwner         MemberStatus = "owner"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusRemoved       MemberStatus = "removed"
)

// MemberEvent is one normalized membership-change notification.
type MemberEvent struct {
	UserID         int64
	RoomID         int64
	PreviousStatus MemberStatus
	NewStatus      MemberStatus
	Handle         string
	DisplayName    string
	ObservedAt     time.Time
}

// EventKind is the classification of a status transition.
type EventKind string

const (
	// KindJoin starts (or restarts) tracking: the dwell clock resets to
	// the observation time.
	KindJoin EventKind = "join"
	// KindLeave stops tracking.
	KindLeave EventKind = "leave"
	// KindIgnored covers every other transition, including member->member.
	KindIgnored EventKind = "ignored"
)

// Classify maps a status transition to an event kind. Any transition into
// active-member status counts as a join, including restricted->member; the
// most recent join observation is the source of truth for dwell time.
func Classify(previous, next MemberStatus) EventKind {
	if next == StatusMember {
		switch previous {
		case StatusAbsent, StatusLeft, StatusRemoved, StatusRestricted, StatusUnknown:
			return KindJoin
		}
		return KindIgnored
	}

	if next == StatusLeft || next == StatusRemoved {
		// Restricted members are still tracked occupants: a restriction in
		// place keeps the row, so their departure must clear it.
		switch previous {
		case StatusMember, StatusRestricted:
			return KindLeave
		}
	}

	return KindIgnored
}
