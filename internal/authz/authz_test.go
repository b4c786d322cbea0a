package authz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/employd-dev/employd/internal/session"
)

func TestDefault_Grants(t *testing.T) {
	table := Default()

	tests := []struct {
		role session.Role
		perm Permission
		want bool
	}{
		{session.RoleAdmin, PermViewBankData, true},
		{session.RoleAdmin, PermViewAll, true},
		{session.RoleHR, PermViewAll, true},
		{session.RoleHR, PermViewBankData, false},
		{session.RoleReadonly, PermViewAll, true},
		{session.RoleReadonly, PermViewBankData, false},
		{session.RoleAuditor, PermViewAll, true},
		{session.RoleAuditor, PermViewBankData, false},
		// Named but granted to no role
		{session.RoleAdmin, PermExportData, false},
		{session.RoleAdmin, PermAuditLogs, false},
		{session.RoleAuditor, PermAuditLogs, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			if got := table.Allowed(tt.role, tt.perm); got != tt.want {
				t.Errorf("Allowed(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
			}
		})
	}
}

func TestAllowed_UnknownRoleAndPermission(t *testing.T) {
	table := Default()

	if table.Allowed("manager", PermViewAll) {
		t.Error("unknown role should hold no permissions")
	}
	if table.Allowed(session.RoleAdmin, "delete_everything") {
		t.Error("unknown permission should not be granted")
	}
}

func TestPermissions(t *testing.T) {
	table := Default()

	perms := table.Permissions(session.RoleAdmin)
	if len(perms) != 2 {
		t.Errorf("expected admin to hold 2 permissions, got %d: %v", len(perms), perms)
	}

	if got := table.Permissions("nobody"); len(got) != 0 {
		t.Errorf("expected no permissions for unknown role, got %v", got)
	}
}

func TestLoadFile_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.yaml")
	content := `roles:
  admin: [view_bank_data, view_all, export_data]
  auditor: [view_all, audit_logs]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write permissions file: %v", err)
	}

	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if !table.Allowed(session.RoleAdmin, PermExportData) {
		t.Error("expected override to grant export_data to admin")
	}
	if !table.Allowed(session.RoleAuditor, PermAuditLogs) {
		t.Error("expected override to grant audit_logs to auditor")
	}
	// Roles absent from the override hold nothing
	if table.Allowed(session.RoleHR, PermViewAll) {
		t.Error("expected hr to hold no permissions under the override")
	}
}

func TestLoadFile_RejectsUnknownRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.yaml")
	content := `roles:
  superuser: [view_all]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write permissions file: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unknown role name")
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
