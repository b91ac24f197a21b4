package domain

import "docmapper/internal/odm"

// Registry holds the directory's models bound to one connection.
type Registry struct {
	Employees   *odm.Model
	Roles       *odm.Model
	Permissions *odm.Model
}

// NewRegistry builds every directory model on conn.
func NewRegistry(conn *odm.Connection) *Registry {
	return &Registry{
		Employees:   odm.NewModel(conn, ModelEmployee, EmployeeSchema()),
		Roles:       odm.NewModel(conn, ModelRole, RoleSchema()),
		Permissions: odm.NewModel(conn, ModelPermission, PermissionSchema()),
	}
}

// Models lists the registered models, for index sync and stats.
func (r *Registry) Models() []*odm.Model {
	if r == nil {
		return nil
	}
	return []*odm.Model{r.Employees, r.Roles, r.Permissions}
}
