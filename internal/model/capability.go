package model

import "github.com/ethereum/go-ethereum/common"

// Role names the privilege level behind a capability.
type Role int

const (
	RoleUser Role = iota
	RoleKeeper
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleKeeper:
		return "keeper"
	case RoleAdmin:
		return "admin"
	default:
		return "user"
	}
}

// Capability is passed into every mutating call instead of relying on
// ambient identity. The HTTP layer mints capabilities from authenticated keys;
// RoleUser capabilities carry the acting address.
type Capability struct {
	Role  Role
	Actor common.Address
}

// AdminCapability returns an administrative capability.
func AdminCapability() Capability { return Capability{Role: RoleAdmin} }

// KeeperCapability returns a price keeper capability.
func KeeperCapability() Capability { return Capability{Role: RoleKeeper} }

// UserCapability returns a capability acting on behalf of addr.
func UserCapability(addr common.Address) Capability {
	return Capability{Role: RoleUser, Actor: addr}
}
