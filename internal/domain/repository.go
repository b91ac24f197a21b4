package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"docmapper/internal/odm"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("not found")

// EmployeeRepository persists and retrieves employees through the Employee
// model, so save hooks and timestamps apply.
type EmployeeRepository struct {
	model *odm.Model
}

// NewEmployeeRepository constructs an EmployeeRepository.
func NewEmployeeRepository(model *odm.Model) *EmployeeRepository {
	return &EmployeeRepository{model: model}
}

// Create saves a new employee. The save hook normalizes the email and assigns
// an employeeId; the returned value carries both along with the new _id.
func (r *EmployeeRepository) Create(ctx context.Context, employee Employee) (Employee, error) {
	if r == nil || r.model == nil {
		return Employee{}, errors.New("employee repository is not initialized")
	}
	if ctx == nil {
		return Employee{}, errors.New("context is required")
	}

	fields, err := odm.ToDocument(employee)
	if err != nil {
		return Employee{}, fmt.Errorf("encode employee: %w", err)
	}

	doc := r.model.New(fields)
	if err := doc.Save(ctx); err != nil {
		return Employee{}, fmt.Errorf("save employee: %w", err)
	}

	saved, err := odm.Decode[Employee](doc.Fields())
	if err != nil {
		return Employee{}, fmt.Errorf("decode employee: %w", err)
	}
	return saved, nil
}

// GetByID fetches an employee by _id. Textual ids are accepted.
func (r *EmployeeRepository) GetByID(ctx context.Context, id interface{}) (Employee, error) {
	if r == nil || r.model == nil {
		return Employee{}, errors.New("employee repository is not initialized")
	}
	if ctx == nil {
		return Employee{}, errors.New("context is required")
	}

	doc, err := r.model.FindByID(ctx, id, nil)
	if err != nil {
		return Employee{}, fmt.Errorf("find employee: %w", err)
	}
	return decodeEmployee(doc)
}

// GetByEmail fetches an employee by email, compared case-insensitively the
// way the save hook stores it.
func (r *EmployeeRepository) GetByEmail(ctx context.Context, email string) (Employee, error) {
	if r == nil || r.model == nil {
		return Employee{}, errors.New("employee repository is not initialized")
	}
	if ctx == nil {
		return Employee{}, errors.New("context is required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Employee{}, ErrEmailRequired
	}

	doc, err := r.model.FindOne(ctx, bson.M{"basicInfo.email": email}, nil)
	if err != nil {
		return Employee{}, fmt.Errorf("find employee: %w", err)
	}
	return decodeEmployee(doc)
}

func decodeEmployee(doc bson.M) (Employee, error) {
	if doc == nil {
		return Employee{}, fmt.Errorf("employee %w", ErrNotFound)
	}
	employee, err := odm.Decode[Employee](doc)
	if err != nil {
		return Employee{}, fmt.Errorf("decode employee: %w", err)
	}
	return employee, nil
}

// RoleRepository retrieves roles through the Role model.
type RoleRepository struct {
	model *odm.Model
}

// NewRoleRepository constructs a RoleRepository.
func NewRoleRepository(model *odm.Model) *RoleRepository {
	return &RoleRepository{model: model}
}

// GetByName fetches a role by its unique name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (Role, error) {
	if r == nil || r.model == nil {
		return Role{}, errors.New("role repository is not initialized")
	}
	if ctx == nil {
		return Role{}, errors.New("context is required")
	}
	if strings.TrimSpace(name) == "" {
		return Role{}, errors.New("role name is required")
	}

	doc, err := r.model.FindOne(ctx, bson.M{"name": name}, nil)
	if err != nil {
		return Role{}, fmt.Errorf("find role: %w", err)
	}
	if doc == nil {
		return Role{}, fmt.Errorf("role %q %w", name, ErrNotFound)
	}

	role, err := odm.Decode[Role](doc)
	if err != nil {
		return Role{}, fmt.Errorf("decode role: %w", err)
	}
	return role, nil
}

// List returns active roles, highest priority (lowest number) first.
func (r *RoleRepository) List(ctx context.Context) ([]Role, error) {
	if r == nil || r.model == nil {
		return nil, errors.New("role repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	docs, err := r.model.Find(bson.M{"isActive": true}, nil).Sort("priority name").Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}

	roles, err := odm.DecodeAll[Role](docs)
	if err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	return roles, nil
}
