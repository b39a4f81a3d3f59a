package domain

import "time"

// SubjectType differentiates human callers from internal automation.
type SubjectType string

const (
	SubjectTypeStaff  SubjectType = "STAFF"
	SubjectTypeSystem SubjectType = "SYSTEM"
)

// OrgRole identifies which organization a caller acts for.
type OrgRole string

const (
	OrgRolePengelola    OrgRole = "PENGELOLA"
	OrgRoleRepairCenter OrgRole = "REPAIR_CENTER"
	OrgRoleBank         OrgRole = "BANK"
	OrgRoleAdmin        OrgRole = "ADMIN"
)

// Valid reports whether the role is one of the known organizations.
func (r OrgRole) Valid() bool {
	switch r {
	case OrgRolePengelola, OrgRoleRepairCenter, OrgRoleBank, OrgRoleAdmin:
		return true
	}
	return false
}

// Token represents issued authentication token metadata.
type Token struct {
	ID        string
	SubjectID string
	Subject   SubjectType
	Role      OrgRole
	ExpiresAt time.Time
	IssuedAt  time.Time
}
