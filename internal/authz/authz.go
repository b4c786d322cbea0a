// Package authz holds the static role to permission table used by the
// dashboard. The defaults are compiled in; deployments can override them
// with a YAML file.
package authz

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/employd-dev/employd/internal/session"
)

// Permission names a capability a role may hold.
type Permission string

const (
	PermViewBankData Permission = "view_bank_data"
	PermViewAll      Permission = "view_all"
	PermExportData   Permission = "export_data"
	PermAuditLogs    Permission = "audit_logs"
)

// Table maps roles to their granted permissions.
type Table struct {
	grants map[session.Role]map[Permission]bool
}

// Default returns the built-in table: admins may view bank data, every
// role may view the general dashboard. export_data and audit_logs exist
// as permission names but are granted to no role yet.
func Default() *Table {
	return &Table{
		grants: map[session.Role]map[Permission]bool{
			session.RoleAdmin:    {PermViewBankData: true, PermViewAll: true},
			session.RoleHR:       {PermViewAll: true},
			session.RoleReadonly: {PermViewAll: true},
			session.RoleAuditor:  {PermViewAll: true},
		},
	}
}

// Allowed reports whether the role holds the permission. Unknown roles
// and unknown permissions are simply not allowed.
func (t *Table) Allowed(role session.Role, p Permission) bool {
	return t.grants[role][p]
}

// Permissions returns the granted permissions for a role.
func (t *Table) Permissions(role session.Role) []Permission {
	var perms []Permission
	for p, ok := range t.grants[role] {
		if ok {
			perms = append(perms, p)
		}
	}
	return perms
}

// fileFormat is the YAML override shape:
//
//	roles:
//	  admin: [view_bank_data, view_all]
//	  hr: [view_all]
type fileFormat struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadFile reads a role to permission table from a YAML file. Unknown
// role names are rejected so a typo cannot silently drop a role's
// grants.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read permissions file: %w", err)
	}

	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("failed to parse permissions file: %w", err)
	}

	grants := make(map[session.Role]map[Permission]bool, len(ff.Roles))
	for name, perms := range ff.Roles {
		role := session.Role(name)
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q in permissions file", name)
		}
		grants[role] = make(map[Permission]bool, len(perms))
		for _, p := range perms {
			grants[role][Permission(p)] = true
		}
	}

	return &Table{grants: grants}, nil
}
