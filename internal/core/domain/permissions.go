package domain

// Bitmask is an effective capability set for a (user, server, channel)
// triple. It is always derived on demand from roles and channel
// overrides, never persisted in resolved form.
type Bitmask uint64

const (
	PermViewChannel Bitmask = 1 << iota
	PermManageChannels
	PermSendMessages
	PermManageMessages
	PermKickMembers
	PermBanMembers
	PermManageGuild
	PermManageRoles
	PermCreateInvite
	PermAdministrator
)

// Has reports whether every bit in perm is set. Administrator is not
// special-cased here; the resolution engine handles the admin bypass.
func (b Bitmask) Has(perm Bitmask) bool {
	return b&perm == perm
}

// IsAdmin reports whether the administrator bit is set.
func (b Bitmask) IsAdmin() bool {
	return b&PermAdministrator == PermAdministrator
}

// Apply layers a channel override onto the bitmask: denied bits are
// cleared first, allowed bits set second, so allow wins inside one
// override record.
func (b Bitmask) Apply(allow, deny Bitmask) Bitmask {
	return (b &^ deny) | allow
}
