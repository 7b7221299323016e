package domain

import (
	"sort"
	"time"
)

// FriendshipStatus is the state of the (undirected) relation between
// two users. Values match the original wire protocol.
type FriendshipStatus int

const (
	FriendshipPending    FriendshipStatus = 1
	FriendshipAccepted   FriendshipStatus = 2
	FriendshipRejected   FriendshipStatus = 4
	FriendshipBlocked    FriendshipStatus = 8
	FriendshipUnfriended FriendshipStatus = 16
)

// Friendship keys on the sorted user pair so the relation has one row
// regardless of who initiated. LastActionBy disambiguates direction
// (who sent the pending request, who blocked).
type Friendship struct {
	ID           string
	UserA        UserID // lexicographically smaller id
	UserB        UserID
	Status       FriendshipStatus
	LastActionBy UserID
	Seen         bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Other returns the counterpart of uid in the pair.
func (f *Friendship) Other(uid UserID) UserID {
	if f.UserA == uid {
		return f.UserB
	}
	return f.UserA
}

// FriendshipID derives the deterministic key for a user pair.
func FriendshipID(a, b UserID) string {
	pair := []string{string(a), string(b)}
	sort.Strings(pair)
	return pair[0] + "_" + pair[1]
}
