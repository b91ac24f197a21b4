// Package staff serves the employee directory on top of the Employee model.
package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docmapper/internal/domain"
	"docmapper/internal/logging"
	"docmapper/internal/odm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxLoginAttempts locks an account once reached.
	MaxLoginAttempts = 5
)

// ManagerRef is the populated manager of a member.
type ManagerRef struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

// Member is the directory view of an employee with roles resolved.
type Member struct {
	ID         string        `json:"id"`
	EmployeeID string        `json:"employeeId"`
	FullName   string        `json:"fullName"`
	Email      string        `json:"email"`
	Department string        `json:"department,omitempty"`
	Position   string        `json:"position,omitempty"`
	Status     string        `json:"status,omitempty"`
	Roles      []domain.Role `json:"roles"`
	Manager    *ManagerRef   `json:"manager,omitempty"`
	IsLocked   bool          `json:"isLocked"`
}

// Directory lists and updates employees.
type Directory struct {
	employees *odm.Model
	logger    *logrus.Entry
}

// NewDirectory constructs a Directory over the registry's employee model.
func NewDirectory(registry *domain.Registry, logger *logrus.Entry) *Directory {
	if logger == nil {
		logger = logging.Logger()
	}
	d := &Directory{logger: logger}
	if registry != nil {
		d.employees = registry.Employees
	}
	return d
}

// ByDepartment returns one page of a department's employees ordered by last
// name, with roles and manager populated. page is 1-based.
func (d *Directory) ByDepartment(ctx context.Context, department string, page, size int) ([]Member, error) {
	return d.list(ctx, page, size, domain.StaticFindByDepartment, department)
}

// Active returns one page of employees with active status, with roles and
// manager populated.
func (d *Directory) Active(ctx context.Context, page, size int) ([]Member, error) {
	return d.list(ctx, page, size, domain.StaticFindActiveEmployees)
}

// Reports returns one page of the employees whose manager is managerID.
// Textual ids are accepted.
func (d *Directory) Reports(ctx context.Context, managerID interface{}, page, size int) ([]Member, error) {
	return d.list(ctx, page, size, domain.StaticFindByManager, managerID)
}

// list pages through the query built by the named static.
func (d *Directory) list(ctx context.Context, page, size int, static string, args ...interface{}) ([]Member, error) {
	if d == nil || d.employees == nil {
		return nil, errors.New("staff directory is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	result, err := d.employees.Static(ctx, static, args...)
	if err != nil {
		return nil, err
	}
	query, ok := result.(*odm.Query)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, want *odm.Query", static, result)
	}

	docs, err := query.
		Sort("basicInfo.lastName basicInfo.firstName").
		Skip(int64((page - 1) * size)).
		Limit(int64(size)).
		Populate("roles", "name displayName").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", static, err)
	}

	members := make([]Member, 0, len(docs))
	for _, doc := range docs {
		member, err := d.member(doc)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	d.logger.WithFields(logging.Fields{
		"event":  "staff_list",
		"static": static,
		"page":   page,
		"count":  len(members),
	}).Debug("listed employees")

	return members, nil
}

// RecordLogin stamps lastLogin and clears the failed attempt counter.
func (d *Directory) RecordLogin(ctx context.Context, id interface{}) (Member, error) {
	if d == nil || d.employees == nil {
		return Member{}, errors.New("staff directory is not initialized")
	}
	if ctx == nil {
		return Member{}, errors.New("context is required")
	}

	doc, err := d.employees.FindByIDAndUpdate(ctx, id,
		bson.M{"$set": bson.M{
			"lastLogin":     d.employees.Now(),
			"loginAttempts": 0,
			"isLocked":      false,
		}},
		odm.UpdateOptions{New: true},
	)
	if err != nil {
		return Member{}, fmt.Errorf("record login: %w", err)
	}
	if doc == nil {
		return Member{}, fmt.Errorf("employee %w", domain.ErrNotFound)
	}
	return d.member(doc)
}

// RecordFailedLogin increments loginAttempts and locks the account once
// MaxLoginAttempts is reached. It reports whether the account is now locked.
func (d *Directory) RecordFailedLogin(ctx context.Context, id interface{}) (bool, error) {
	if d == nil || d.employees == nil {
		return false, errors.New("staff directory is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}

	// The empty $set keeps $inc an operator; updatedAt is merged into it.
	doc, err := d.employees.FindByIDAndUpdate(ctx, id,
		bson.M{"$inc": bson.M{"loginAttempts": 1}, "$set": bson.M{}},
		odm.UpdateOptions{New: true},
	)
	if err != nil {
		return false, fmt.Errorf("record failed login: %w", err)
	}
	if doc == nil {
		return false, fmt.Errorf("employee %w", domain.ErrNotFound)
	}

	attempts := toInt(doc["loginAttempts"])
	if attempts < MaxLoginAttempts {
		return false, nil
	}
	if locked, _ := doc["isLocked"].(bool); locked {
		return true, nil
	}

	if _, err := d.employees.UpdateOne(ctx, bson.M{odm.IDField: doc[odm.IDField]}, bson.M{"$set": bson.M{"isLocked": true}}); err != nil {
		return false, fmt.Errorf("lock employee: %w", err)
	}

	d.logger.WithFields(logging.Fields{
		"event":          "staff_locked",
		"employee_id":    doc["employeeId"],
		"login_attempts": attempts,
	}).Warn("locked employee after repeated failed logins")
	return true, nil
}

func (d *Directory) member(doc bson.M) (Member, error) {
	employee := d.employees.Hydrate(doc)

	fullName, _ := employee.Virtual("fullName")
	m := Member{
		ID:         hexID(doc[odm.IDField]),
		EmployeeID: str(employee.Get("employeeId")),
		FullName:   str(fullName),
		Email:      str(employee.Get("basicInfo.email")),
		Department: str(employee.Get("employment.department")),
		Position:   str(employee.Get("employment.position")),
		Status:     str(employee.Get("employment.status")),
		Roles:      []domain.Role{},
	}
	m.IsLocked, _ = employee.Get("isLocked").(bool)

	if roles, ok := employee.Get("roles").(bson.A); ok {
		for _, item := range roles {
			role, err := roleOf(item)
			if err != nil {
				return Member{}, err
			}
			m.Roles = append(m.Roles, role)
		}
	}

	if manager, ok := employee.Get("employment.manager").(bson.M); ok {
		name, _ := d.employees.Hydrate(manager).Virtual("fullName")
		m.Manager = &ManagerRef{ID: hexID(manager[odm.IDField]), FullName: str(name)}
	}

	return m, nil
}

// roleOf decodes a populated role. An unresolved reference comes back as its
// bare id.
func roleOf(item interface{}) (domain.Role, error) {
	switch v := item.(type) {
	case bson.M:
		role, err := odm.Decode[domain.Role](v)
		if err != nil {
			return domain.Role{}, fmt.Errorf("decode role: %w", err)
		}
		return role, nil
	case primitive.ObjectID:
		return domain.Role{ID: v}, nil
	default:
		return domain.Role{}, fmt.Errorf("unexpected role reference %T", item)
	}
}

func hexID(v interface{}) string {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return str(v)
}

func str(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
