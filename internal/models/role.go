package models

// EntityKind identifies which kind of collaboration entity a record belongs to.
type EntityKind string

const (
	EntityWorkspace EntityKind = "workspace"
	EntityProject   EntityKind = "project"
)

// Visibility controls how an entity can be discovered by non-members.
type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityInternal Visibility = "internal" // workspaces: members only
	VisibilityTeam     Visibility = "team"     // projects: visible to parent workspace members
	VisibilityPublic   Visibility = "public"
)

// ValidVisibility reports whether v is a legal visibility for the given entity kind.
func ValidVisibility(kind EntityKind, v Visibility) bool {
	switch kind {
	case EntityWorkspace:
		return v == VisibilityPrivate || v == VisibilityInternal || v == VisibilityPublic
	case EntityProject:
		return v == VisibilityPrivate || v == VisibilityTeam || v == VisibilityPublic
	}
	return false
}

// Role is a membership role tag. Each entity kind has four ordered roles,
// lowest to highest privilege.
type Role string

// Workspace roles
const (
	RoleGuest          Role = "guest"
	RoleMember         Role = "member"
	RoleAdmin          Role = "admin"
	RoleWorkspaceOwner Role = "owner"
)

// Project roles
const (
	RoleViewer      Role = "viewer"
	RoleAnalyst     Role = "analyst"
	RoleContributor Role = "contributor"
	RoleLead        Role = "lead"
)

// PermissionBundle is the capability set granted by a role. It is derived
// once from (entity kind, role) via PolicyFor and stored on the Membership
// row; operations check the bundle, never the role tag directly.
type PermissionBundle struct {
	CanView             bool `gorm:"default:true" json:"can_view"`
	CanAnalyze          bool `gorm:"default:false" json:"can_analyze"`
	CanPublish          bool `gorm:"default:false" json:"can_publish"`
	CanManageConnectors bool `gorm:"default:false" json:"can_manage_connectors"`
	CanInvite           bool `gorm:"default:false" json:"can_invite"`
	CanCreateProjects   bool `gorm:"default:false" json:"can_create_projects"`
	CanManageSettings   bool `gorm:"default:false" json:"can_manage_settings"`
}

var workspacePolicy = map[Role]PermissionBundle{
	RoleGuest: {CanView: true},
	RoleMember: {
		CanView:           true,
		CanAnalyze:        true,
		CanCreateProjects: true,
	},
	RoleAdmin: {
		CanView:             true,
		CanAnalyze:          true,
		CanPublish:          true,
		CanManageConnectors: true,
		CanInvite:           true,
		CanCreateProjects:   true,
		CanManageSettings:   true,
	},
	RoleWorkspaceOwner: {
		CanView:             true,
		CanAnalyze:          true,
		CanPublish:          true,
		CanManageConnectors: true,
		CanInvite:           true,
		CanCreateProjects:   true,
		CanManageSettings:   true,
	},
}

var projectPolicy = map[Role]PermissionBundle{
	RoleViewer: {CanView: true},
	RoleAnalyst: {
		CanView:    true,
		CanAnalyze: true,
	},
	RoleContributor: {
		CanView:             true,
		CanAnalyze:          true,
		CanPublish:          true,
		CanManageConnectors: true,
	},
	RoleLead: {
		CanView:             true,
		CanAnalyze:          true,
		CanPublish:          true,
		CanManageConnectors: true,
		CanInvite:           true,
		CanManageSettings:   true,
	},
}

// PolicyFor returns the permission bundle for a role within an entity kind.
// Unknown roles fail closed to the lowest-privilege bundle of that kind.
func PolicyFor(kind EntityKind, role Role) PermissionBundle {
	switch kind {
	case EntityWorkspace:
		if bundle, ok := workspacePolicy[role]; ok {
			return bundle
		}
		return workspacePolicy[RoleGuest]
	case EntityProject:
		if bundle, ok := projectPolicy[role]; ok {
			return bundle
		}
		return projectPolicy[RoleViewer]
	}
	return PermissionBundle{CanView: true}
}

// OwnerRole returns the maximal-privilege role for an entity kind. The
// entity's owner always resolves to this role even without a membership row.
func OwnerRole(kind EntityKind) Role {
	if kind == EntityProject {
		return RoleLead
	}
	return RoleWorkspaceOwner
}

// DefaultRole returns the role granted when an invitation or approval does
// not specify one.
func DefaultRole(kind EntityKind) Role {
	if kind == EntityProject {
		return RoleViewer
	}
	return RoleMember
}

// ValidRole reports whether the role tag belongs to the given entity kind.
func ValidRole(kind EntityKind, role Role) bool {
	switch kind {
	case EntityWorkspace:
		_, ok := workspacePolicy[role]
		return ok
	case EntityProject:
		_, ok := projectPolicy[role]
		return ok
	}
	return false
}
