package models

import (
	"slices"
	"time"
)

// RoleKind identifies a scoped role a user can hold over a project or form.
type RoleKind string

const (
	RoleProjectManager RoleKind = "projectManager"
	RoleDataCollector  RoleKind = "dataCollector"
	RoleAnalyst        RoleKind = "analyst"
)

// ScopedRoleKinds contains the role kinds that are granted per project/form.
var ScopedRoleKinds = []RoleKind{RoleProjectManager, RoleDataCollector, RoleAnalyst}

// IsScopedRoleKind checks if the given kind is a grantable scoped role.
func IsScopedRoleKind(kind RoleKind) bool {
	return slices.Contains(ScopedRoleKinds, kind)
}

// RoleSet holds a user's roles. Boolean roles are account-wide; the slice
// roles are scoped to project names (projectManager) or form names
// (dataCollector, analyst).
type RoleSet struct {
	Basic          bool     `bson:"basic" json:"basic"`
	Researcher     bool     `bson:"researcher" json:"researcher"`
	Administrator  bool     `bson:"administrator" json:"administrator"`
	ProjectManager []string `bson:"projectManager" json:"projectManager"`
	DataCollector  []string `bson:"dataCollector" json:"dataCollector"`
	Analyst        []string `bson:"analyst" json:"analyst"`
}

// LogEntry is one record in a user's append-only activity log.
type LogEntry struct {
	Action  string    `bson:"action" json:"action"`
	ByEmail string    `bson:"byEmail" json:"byEmail"`
	Date    time.Time `bson:"date" json:"date"`
}

// User is a platform account stored in the users collection.
// Projects and Forms mirror membership: every name in Roles.ProjectManager
// appears in Projects, and every name in Roles.DataCollector or Roles.Analyst
// appears in Forms.
type User struct {
	ID        string     `bson:"_id" json:"id"`
	Title     string     `bson:"title,omitempty" json:"title,omitempty"`
	FirstName string     `bson:"firstName,omitempty" json:"firstName,omitempty"`
	Surname   string     `bson:"surname,omitempty" json:"surname,omitempty"`
	Email     string     `bson:"email" json:"email"`
	Password  string     `bson:"password" json:"-"`
	Roles     RoleSet    `bson:"roles" json:"roles"`
	Projects  []string   `bson:"projects" json:"projects"`
	Forms     []string   `bson:"forms" json:"forms"`
	Log       []LogEntry `bson:"log" json:"log"`
}

// HoldsRole reports whether the user already holds the scoped role for the
// given project or form name.
func (u *User) HoldsRole(kind RoleKind, scope string) bool {
	switch kind {
	case RoleProjectManager:
		return slices.Contains(u.Roles.ProjectManager, scope)
	case RoleDataCollector:
		return slices.Contains(u.Roles.DataCollector, scope)
	case RoleAnalyst:
		return slices.Contains(u.Roles.Analyst, scope)
	}
	return false
}
