package domain

import "strconv"

// PresenceStatus is the status a client declares when opening its
// presence socket, carried as a numeric code in the status query
// parameter.
type PresenceStatus int

const (
	StatusOffline   PresenceStatus = 0
	StatusOnline    PresenceStatus = 1
	StatusAway      PresenceStatus = 2
	StatusBusy      PresenceStatus = 3
	StatusInvisible PresenceStatus = 8
)

// ParsePresenceStatus maps the status query parameter to a known code,
// defaulting to online for anything unrecognised.
func ParsePresenceStatus(s string) PresenceStatus {
	n, err := strconv.Atoi(s)
	if err != nil {
		return StatusOnline
	}
	switch PresenceStatus(n) {
	case StatusOnline, StatusAway, StatusBusy, StatusInvisible:
		return PresenceStatus(n)
	default:
		return StatusOnline
	}
}
