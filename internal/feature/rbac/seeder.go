// Package rbac seeds the system permissions, roles and the head administrator
// account on startup.
package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"

	"docmapper/internal/domain"
	"docmapper/internal/logging"
	"docmapper/internal/odm"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// SeedResult reports what EnsureSystemRoles wrote.
type SeedResult struct {
	CreatedPermissions int
	CreatedRoles       int
	SyncedRoles        int
}

// Seeder bootstraps the RBAC catalog through the directory models.
type Seeder struct {
	registry *domain.Registry
	logger   *logrus.Entry
}

// NewSeeder constructs a Seeder over registry.
func NewSeeder(registry *domain.Registry, logger *logrus.Entry) *Seeder {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Seeder{
		registry: registry,
		logger:   logger,
	}
}

// EnsureSystemRoles creates missing system permissions and roles by name.
// Existing system roles get their permission list brought in line with the
// catalog; custom roles are left alone.
func (s *Seeder) EnsureSystemRoles(ctx context.Context) (SeedResult, error) {
	if err := s.ready(ctx); err != nil {
		return SeedResult{}, err
	}

	var result SeedResult

	permissionIDs := make(map[string]interface{})
	var all bson.A
	for _, permission := range domain.SystemPermissions() {
		id, created, err := s.ensureByName(ctx, s.registry.Permissions, permission.Name, permission)
		if err != nil {
			return result, fmt.Errorf("ensure permission %s: %w", permission.Name, err)
		}
		if created {
			result.CreatedPermissions++
		}
		permissionIDs[permission.Name] = id
		all = append(all, id)
	}

	for _, role := range domain.SystemRoles() {
		grants := all
		if role.Grants != nil {
			grants = bson.A{}
			for _, name := range role.Grants {
				id, ok := permissionIDs[name]
				if !ok {
					return result, fmt.Errorf("role %s grants unknown permission %s", role.Name, name)
				}
				grants = append(grants, id)
			}
		}

		existing, err := s.registry.Roles.FindOne(ctx, bson.M{"name": role.Name}, nil)
		if err != nil {
			return result, fmt.Errorf("find role %s: %w", role.Name, err)
		}

		if existing == nil {
			doc, err := odm.ToDocument(role.Role)
			if err != nil {
				return result, fmt.Errorf("encode role %s: %w", role.Name, err)
			}
			doc["permissions"] = grants
			if _, err := s.registry.Roles.Create(ctx, doc); err != nil {
				return result, fmt.Errorf("create role %s: %w", role.Name, err)
			}
			result.CreatedRoles++
			continue
		}

		if _, err := s.registry.Roles.FindByIDAndUpdate(ctx, existing[odm.IDField],
			bson.M{"$set": bson.M{"permissions": grants, "isSystem": true}},
			odm.UpdateOptions{},
		); err != nil {
			return result, fmt.Errorf("sync role %s: %w", role.Name, err)
		}
		result.SyncedRoles++
	}

	s.logger.WithFields(logging.Fields{
		"event":               "rbac_seed",
		"created_permissions": result.CreatedPermissions,
		"created_roles":       result.CreatedRoles,
		"synced_roles":        result.SyncedRoles,
	}).Info("ensured system roles")

	return result, nil
}

// EnsureHeadAdmin creates the head administrator with email, or promotes the
// existing employee with that email. password is only used for a new account;
// an empty password yields a random one that must be reset before login.
func (s *Seeder) EnsureHeadAdmin(ctx context.Context, email, password string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(email) == "" {
		return domain.ErrEmailRequired
	}

	role, err := s.registry.Roles.FindOne(ctx, bson.M{"name": domain.RoleHeadAdministrator}, nil)
	if err != nil {
		return fmt.Errorf("find head administrator role: %w", err)
	}
	if role == nil {
		return fmt.Errorf("head administrator role %w; seed system roles first", domain.ErrNotFound)
	}
	roleID := role[odm.IDField]

	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := s.registry.Employees.FindOne(ctx, bson.M{"basicInfo.email": email}, nil)
	if err != nil {
		return fmt.Errorf("find employee: %w", err)
	}
	if existing == nil {
		return s.createHeadAdmin(ctx, email, password, roleID)
	}

	doc := s.registry.Employees.Hydrate(existing)
	doc.Set("role", domain.RoleHeadAdministrator)
	doc.Set("isActive", true)
	added, err := doc.Call(ctx, domain.MethodAddRole, roleID)
	if err != nil {
		return fmt.Errorf("assign head administrator role: %w", err)
	}
	if err := doc.Save(ctx); err != nil {
		return fmt.Errorf("promote head administrator: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":       "rbac_head_admin",
		"employee_id": doc.Get("employeeId"),
		"role_added":  added,
	}).Info("promoted head administrator")
	return nil
}

func (s *Seeder) createHeadAdmin(ctx context.Context, email, password string, roleID interface{}) error {
	generated := password == ""
	if generated {
		password = uuid.NewString()
	}
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	doc := s.registry.Employees.New(bson.M{
		"password": hash,
		"role":     domain.RoleHeadAdministrator,
		"roles":    bson.A{roleID},
		"basicInfo": bson.M{
			"firstName": "Head",
			"lastName":  "Administrator",
			"email":     email,
		},
		"employment": bson.M{
			"department": "Administration",
			"position":   "Head Administrator",
			"status":     domain.StatusActive,
			"startDate":  s.registry.Employees.Now(),
		},
	})
	if err := doc.Save(ctx); err != nil {
		return fmt.Errorf("create head administrator: %w", err)
	}

	entry := s.logger.WithFields(logging.Fields{
		"event":       "rbac_head_admin",
		"employee_id": doc.Get("employeeId"),
	})
	if generated {
		entry.Warn("created head administrator with a random password; reset it before first login")
		return nil
	}
	entry.Info("created head administrator")
	return nil
}

func (s *Seeder) ready(ctx context.Context) error {
	if s == nil || s.registry == nil || s.registry.Roles == nil || s.registry.Permissions == nil || s.registry.Employees == nil {
		return errors.New("rbac seeder is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}

// ensureByName returns the _id of the document named name in model, creating
// it from value when missing.
func (s *Seeder) ensureByName(ctx context.Context, model *odm.Model, name string, value interface{}) (interface{}, bool, error) {
	existing, err := model.FindOne(ctx, bson.M{"name": name}, nil)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing[odm.IDField], false, nil
	}

	doc, err := odm.ToDocument(value)
	if err != nil {
		return nil, false, err
	}
	created, err := model.Create(ctx, doc)
	if err != nil {
		return nil, false, err
	}
	return created[odm.IDField], true, nil
}

// HashPassword hashes password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", fmt.Errorf("password exceeds maximum length of %d bytes", maxPasswordBytes)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
