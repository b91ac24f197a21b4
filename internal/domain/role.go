package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docmapper/internal/odm"
)

// Model names.
const (
	ModelEmployee   = "Employee"
	ModelRole       = "Role"
	ModelPermission = "Permission"
)

// Role groups permissions under a name employees can be assigned.
type Role struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	DisplayName string               `bson:"displayName,omitempty" json:"displayName,omitempty"`
	Description string               `bson:"description,omitempty" json:"description,omitempty"`
	Permissions []primitive.ObjectID `bson:"permissions" json:"permissions"`
	Priority    int                  `bson:"priority" json:"priority"`
	IsSystem    bool                 `bson:"isSystem" json:"isSystem"`
	IsActive    bool                 `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time            `bson:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt,omitempty" json:"updatedAt"`
}

// Permission is a single action on a resource.
type Permission struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Resource    string             `bson:"resource" json:"resource"`
	Action      string             `bson:"action" json:"action"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	IsSystem    bool               `bson:"isSystem" json:"isSystem"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time          `bson:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt,omitempty" json:"updatedAt"`
}

// RoleSchema maps Role onto the roles collection.
func RoleSchema() *odm.Schema {
	schema := odm.NewSchema(odm.Definition{
		"name":        {Type: "string", Required: true},
		"displayName": {Type: "string"},
		"description": {Type: "string"},
		"permissions": {Type: "[ObjectId]", Ref: ModelPermission},
		"priority":    {Type: "number", Default: 100},
		"isSystem":    {Type: "boolean", Default: false},
		"isActive":    {Type: "boolean", Default: true},
	})
	schema.Index(bson.D{{Key: "name", Value: 1}}, options.Index().SetName("name_unique").SetUnique(true))
	return schema
}

// PermissionSchema maps Permission onto the permissions collection.
func PermissionSchema() *odm.Schema {
	schema := odm.NewSchema(odm.Definition{
		"name":     {Type: "string", Required: true},
		"resource": {Type: "string", Required: true},
		"action":   {Type: "string", Required: true},
		"isSystem": {Type: "boolean", Default: false},
		"isActive": {Type: "boolean", Default: true},
	})
	schema.Index(bson.D{{Key: "name", Value: 1}}, options.Index().SetName("name_unique").SetUnique(true))
	schema.Index(bson.D{{Key: "resource", Value: 1}, {Key: "action", Value: 1}}, nil)
	return schema
}
