// Package domain defines the employee directory entities and the schemas that
// map them onto MongoDB collections.
package domain

const (
	// RoleHeadAdministrator holds every permission and is assigned to the
	// seeded administrator.
	RoleHeadAdministrator = "head_administrator"
	// RolePlatformAdmin administers the platform with full access.
	RolePlatformAdmin = "platform_admin"
	// RoleHRManager manages employee records.
	RoleHRManager = "hr_manager"
	// RoleEmployee is the default role for new employees.
	RoleEmployee = "employee"
)

// Permission actions.
const (
	ActionView   = "view"
	ActionManage = "manage"
)

// Permission resources.
const (
	ResourceDashboard  = "dashboard"
	ResourceEmployees  = "employees"
	ResourceRoles      = "roles"
	ResourceAnalytics  = "analytics"
	ResourceSettings   = "settings"
	ResourceAuditTrail = "audit_trail"
)

// PermissionName joins action and resource the way stored permission names
// are spelled, e.g. "view_employees".
func PermissionName(action, resource string) string {
	return action + "_" + resource
}

// SystemPermissions lists the permissions every deployment carries.
func SystemPermissions() []Permission {
	resources := []string{
		ResourceDashboard,
		ResourceEmployees,
		ResourceRoles,
		ResourceAnalytics,
		ResourceSettings,
		ResourceAuditTrail,
	}

	out := make([]Permission, 0, len(resources)*2)
	for _, resource := range resources {
		for _, action := range []string{ActionView, ActionManage} {
			out = append(out, Permission{
				Name:     PermissionName(action, resource),
				Resource: resource,
				Action:   action,
				IsSystem: true,
				IsActive: true,
			})
		}
	}
	return out
}

// SystemRole describes a seeded role and the permission names it is granted.
// A nil Grants slice means every system permission.
type SystemRole struct {
	Role
	Grants []string
}

// SystemRoles lists the roles every deployment carries, highest priority first.
func SystemRoles() []SystemRole {
	return []SystemRole{
		{
			Role: Role{
				Name:        RoleHeadAdministrator,
				DisplayName: "Head Administrator",
				Description: "Highest level of access, can manage everything",
				Priority:    1,
				IsSystem:    true,
				IsActive:    true,
			},
		},
		{
			Role: Role{
				Name:        RolePlatformAdmin,
				DisplayName: "Platform Administrator",
				Description: "Platform administration with full access",
				Priority:    10,
				IsSystem:    true,
				IsActive:    true,
			},
		},
		{
			Role: Role{
				Name:        RoleHRManager,
				DisplayName: "HR Manager",
				Description: "Manages employee records",
				Priority:    50,
				IsSystem:    true,
				IsActive:    true,
			},
			Grants: []string{
				PermissionName(ActionView, ResourceDashboard),
				PermissionName(ActionView, ResourceEmployees),
				PermissionName(ActionManage, ResourceEmployees),
			},
		},
		{
			Role: Role{
				Name:        RoleEmployee,
				DisplayName: "Employee",
				Description: "Standard employee access",
				Priority:    100,
				IsSystem:    true,
				IsActive:    true,
			},
			Grants: []string{PermissionName(ActionView, ResourceDashboard)},
		},
	}
}
