package domain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docmapper/internal/odm"
)

// Employment statuses.
const (
	StatusActive     = "active"
	StatusOnLeave    = "on_leave"
	StatusTerminated = "terminated"
)

// Registered employee methods and statics.
const (
	MethodRecordLogin = "recordLogin"
	MethodAddRole     = "addRole"
	MethodHasRole     = "hasRole"

	StaticFindByDepartment    = "findByDepartment"
	StaticFindActiveEmployees = "findActiveEmployees"
	StaticFindByManager       = "findByManager"
)

var (
	// ErrEmailRequired is returned when an employee is saved without an email.
	ErrEmailRequired = errors.New("employee email is required")
	// ErrInvalidEmail is returned when basicInfo.email does not look like an email.
	ErrInvalidEmail = errors.New("please enter a valid email")
)

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

// BasicInfo holds personal details.
type BasicInfo struct {
	FirstName string `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName  string `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Email     string `bson:"email" json:"email"`
	Phone     string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// Employment holds organisational placement.
type Employment struct {
	Department string              `bson:"department,omitempty" json:"department,omitempty"`
	Position   string              `bson:"position,omitempty" json:"position,omitempty"`
	Status     string              `bson:"status,omitempty" json:"status,omitempty"`
	Manager    *primitive.ObjectID `bson:"manager,omitempty" json:"manager,omitempty"`
	StartDate  time.Time           `bson:"startDate,omitempty" json:"startDate,omitempty"`
}

// Employee is a staff member with authentication and RBAC fields.
type Employee struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	EmployeeID    string               `bson:"employeeId,omitempty" json:"employeeId"`
	Password      string               `bson:"password,omitempty" json:"-"`
	Role          string               `bson:"role,omitempty" json:"role"`
	Roles         []primitive.ObjectID `bson:"roles" json:"roles"`
	Permissions   []primitive.ObjectID `bson:"permissions" json:"permissions"`
	BasicInfo     BasicInfo            `bson:"basicInfo" json:"basicInfo"`
	Employment    Employment           `bson:"employment" json:"employment"`
	IsActive      bool                 `bson:"isActive" json:"isActive"`
	IsLocked      bool                 `bson:"isLocked" json:"isLocked"`
	LoginAttempts int                  `bson:"loginAttempts" json:"loginAttempts"`
	LastLogin     *time.Time           `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	CreatedAt     time.Time            `bson:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt,omitempty" json:"updatedAt"`
}

// FullName joins first and last name.
func (e Employee) FullName() string {
	return strings.TrimSpace(e.BasicInfo.FirstName + " " + e.BasicInfo.LastName)
}

// EmployeeSchema maps Employee onto the employees collection.
func EmployeeSchema() *odm.Schema {
	schema := odm.NewSchema(odm.Definition{
		"employeeId":            {Type: "string"},
		"password":              {Type: "string", Required: true},
		"role":                  {Type: "string", Default: RoleEmployee},
		"roles":                 {Type: "[ObjectId]", Ref: ModelRole},
		"permissions":           {Type: "[ObjectId]", Ref: ModelPermission},
		"loginAttempts":         {Type: "number", Default: 0},
		"isLocked":              {Type: "boolean", Default: false},
		"isActive":              {Type: "boolean", Default: true},
		"lastLogin":             {Type: "date"},
		"basicInfo.firstName":   {Type: "string"},
		"basicInfo.lastName":    {Type: "string"},
		"basicInfo.email":       {Type: "string", Required: true},
		"employment.department": {Type: "string"},
		"employment.status":     {Type: "string", Default: StatusActive},
		"employment.manager":    {Type: "ObjectId", Ref: ModelEmployee},
	})

	schema.Index(bson.D{{Key: "basicInfo.email", Value: 1}}, options.Index().SetName("email_unique").SetUnique(true))
	schema.Index(bson.D{{Key: "employeeId", Value: 1}}, options.Index().SetName("employee_id_unique").SetUnique(true).SetSparse(true))
	schema.Index(bson.D{{Key: "employment.department", Value: 1}}, nil)
	schema.Index(bson.D{{Key: "employment.status", Value: 1}}, nil)
	schema.Index(bson.D{{Key: "employment.manager", Value: 1}}, nil)

	schema.Virtual("fullName").
		Get(func(doc *odm.Document) interface{} {
			first, _ := doc.Get("basicInfo.firstName").(string)
			last, _ := doc.Get("basicInfo.lastName").(string)
			return strings.TrimSpace(first + " " + last)
		}).
		Set(func(doc *odm.Document, value interface{}) {
			name, _ := value.(string)
			first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
			doc.Set("basicInfo.firstName", first)
			doc.Set("basicInfo.lastName", strings.TrimSpace(last))
		})

	schema.Virtual("tenureYears").Get(func(doc *odm.Document) interface{} {
		start, ok := asTime(doc.Get("employment.startDate"))
		if !ok {
			return 0
		}
		return int(doc.Model().Now().Sub(start).Hours() / (24 * 365.25))
	})

	schema.Pre(odm.EventSave, normalizeEmployee)

	schema.Method(MethodRecordLogin, recordLogin)
	schema.Method(MethodAddRole, addRole)
	schema.Method(MethodHasRole, hasRole)

	schema.Static(StaticFindByDepartment, func(ctx context.Context, m *odm.Model, args ...interface{}) (interface{}, error) {
		department, err := stringArg(args, "department")
		if err != nil {
			return nil, err
		}
		return withManager(m, m.Find(bson.M{"employment.department": department}, nil)), nil
	})
	schema.Static(StaticFindActiveEmployees, func(ctx context.Context, m *odm.Model, args ...interface{}) (interface{}, error) {
		return withManager(m, m.Find(bson.M{"employment.status": StatusActive}, nil)), nil
	})
	schema.Static(StaticFindByManager, func(ctx context.Context, m *odm.Model, args ...interface{}) (interface{}, error) {
		if len(args) == 0 {
			return nil, errors.New("manager id is required")
		}
		manager, err := odm.CoerceID(args[0])
		if err != nil {
			return nil, fmt.Errorf("parse manager id: %w", err)
		}
		return m.Find(bson.M{"employment.manager": manager}, nil), nil
	})

	return schema
}

// withManager resolves employment.manager against the employees collection
// itself; the first path segment would name the wrong collection.
func withManager(m *odm.Model, q *odm.Query) *odm.Query {
	return q.PopulateWith(odm.PopulateOptions{
		Path:       "employment.manager",
		Select:     "basicInfo.firstName basicInfo.lastName",
		Collection: m.CollectionName(),
	})
}

// normalizeEmployee lower-cases and validates the email, assigns an employeeId
// and fills RBAC defaults.
func normalizeEmployee(_ context.Context, doc *odm.Document) error {
	raw, _ := doc.Get("basicInfo.email").(string)
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	doc.Set("basicInfo.email", email)

	if id, _ := doc.Get("employeeId").(string); strings.TrimSpace(id) == "" {
		doc.Set("employeeId", NewEmployeeID())
	}
	if doc.Get("role") == nil {
		doc.Set("role", RoleEmployee)
	}
	if doc.Get("roles") == nil {
		doc.Set("roles", bson.A{})
	}
	if doc.Get("permissions") == nil {
		doc.Set("permissions", bson.A{})
	}
	if doc.Get("isActive") == nil {
		doc.Set("isActive", true)
	}
	if doc.Get("isLocked") == nil {
		doc.Set("isLocked", false)
	}
	if doc.Get("loginAttempts") == nil {
		doc.Set("loginAttempts", 0)
	}
	return nil
}

// NewEmployeeID returns a fresh human-readable employee identifier.
func NewEmployeeID() string {
	return "EMP-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func recordLogin(ctx context.Context, doc *odm.Document, _ ...interface{}) (interface{}, error) {
	now := doc.Model().Now()
	doc.Set("lastLogin", now)
	doc.Set("loginAttempts", 0)
	doc.Set("isLocked", false)
	if err := doc.Save(ctx); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	return now, nil
}

func addRole(_ context.Context, doc *odm.Document, args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, errors.New("role id is required")
	}
	roleID, err := odm.CoerceID(args[0])
	if err != nil {
		return nil, fmt.Errorf("parse role id: %w", err)
	}

	roles := idList(doc.Get("roles"))
	for _, existing := range roles {
		if sameID(existing, roleID) {
			return false, nil
		}
	}
	doc.Set("roles", append(roles, roleID))
	return true, nil
}

func hasRole(_ context.Context, doc *odm.Document, args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, errors.New("role id is required")
	}
	for _, existing := range idList(doc.Get("roles")) {
		if sameID(existing, args[0]) {
			return true, nil
		}
	}
	return false, nil
}

func idList(v interface{}) bson.A {
	switch ids := v.(type) {
	case bson.A:
		return ids
	case []interface{}:
		return bson.A(ids)
	case []primitive.ObjectID:
		out := make(bson.A, len(ids))
		for i, id := range ids {
			out[i] = id
		}
		return out
	default:
		return bson.A{}
	}
}

// sameID compares ids by hex form, so populated role documents and textual
// ids match their ObjectID.
func sameID(a, b interface{}) bool {
	return hexOf(a) != "" && hexOf(a) == hexOf(b)
}

func hexOf(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case bson.M:
		return hexOf(id["_id"])
	default:
		return ""
	}
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case primitive.DateTime:
		return t.Time(), true
	default:
		return time.Time{}, false
	}
}

func stringArg(args []interface{}, name string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%s is required", name)
	}
	value, ok := args[0].(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%s must be a non-empty string", name)
	}
	return value, nil
}
