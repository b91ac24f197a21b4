package domain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docmapper/internal/odm"
)

func TestEmployeeSaveNormalizesAndDefaults(t *testing.T) {
	reg, db := newRegistry(t)
	ctx := context.Background()

	doc := reg.Employees.New(bson.M{
		"password":  "hashed",
		"basicInfo": bson.M{"firstName": "Ada", "lastName": "Lovelace", "email": "  Ada@Example.COM "},
	})
	require.NoError(t, doc.Save(ctx))

	stored := db.C("employees").Docs()
	require.Len(t, stored, 1)

	info := stored[0]["basicInfo"].(bson.M)
	if info["email"] != "ada@example.com" {
		t.Fatalf("expected normalized email, got %v", info["email"])
	}
	employeeID, _ := stored[0]["employeeId"].(string)
	if !strings.HasPrefix(employeeID, "EMP-") || len(employeeID) != 14 {
		t.Fatalf("expected generated employee id, got %q", employeeID)
	}
	if stored[0]["role"] != RoleEmployee {
		t.Fatalf("expected default role, got %v", stored[0]["role"])
	}
	if stored[0]["isActive"] != true || stored[0]["isLocked"] != false {
		t.Fatalf("expected active unlocked employee, got %v", stored[0])
	}
	require.Equal(t, bson.A{}, stored[0]["roles"])
	require.Equal(t, bson.A{}, stored[0]["permissions"])
}

func TestEmployeeSaveKeepsExistingEmployeeID(t *testing.T) {
	reg, db := newRegistry(t)

	doc := reg.Employees.New(bson.M{
		"employeeId": "EMP-FIXED",
		"basicInfo":  bson.M{"email": "grace@example.com"},
	})
	require.NoError(t, doc.Save(context.Background()))

	if got := db.C("employees").Docs()[0]["employeeId"]; got != "EMP-FIXED" {
		t.Fatalf("expected employee id to be kept, got %v", got)
	}
}

func TestEmployeeSaveRejectsBadEmail(t *testing.T) {
	cases := map[string]struct {
		email string
		want  error
	}{
		"missing":  {email: "   ", want: ErrEmailRequired},
		"no at":    {email: "ada.example.com", want: ErrInvalidEmail},
		"long tld": {email: "ada@example.community", want: ErrInvalidEmail},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			reg, db := newRegistry(t)

			doc := reg.Employees.New(bson.M{"basicInfo": bson.M{"email": tc.email}})
			err := doc.Save(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if n := db.C("employees").CallCount("insertOne"); n != 0 {
				t.Fatalf("expected no insert after failed hook, got %d", n)
			}
		})
	}
}

func TestEmployeeFullNameVirtual(t *testing.T) {
	reg, _ := newRegistry(t)

	doc := reg.Employees.New(bson.M{"basicInfo": bson.M{"firstName": "Ada", "lastName": "Lovelace"}})
	name, ok := doc.Virtual("fullName")
	require.True(t, ok)
	require.Equal(t, "Ada Lovelace", name)

	require.True(t, doc.SetVirtual("fullName", "Grace Brewster Hopper"))
	require.Equal(t, "Grace", doc.Get("basicInfo.firstName"))
	require.Equal(t, "Brewster Hopper", doc.Get("basicInfo.lastName"))
}

func TestEmployeeTenureUsesConnectionClock(t *testing.T) {
	reg, _ := newRegistry(t)

	doc := reg.Employees.New(bson.M{"employment": bson.M{"startDate": now.AddDate(-3, -1, 0)}})
	tenure, ok := doc.Virtual("tenureYears")
	require.True(t, ok)
	require.Equal(t, 3, tenure)

	blank := reg.Employees.New(nil)
	tenure, _ = blank.Virtual("tenureYears")
	require.Equal(t, 0, tenure)
}

func TestEmployeeRecordLogin(t *testing.T) {
	reg, db := newRegistry(t)
	ctx := context.Background()

	ids := db.C("employees").Seed(bson.M{
		"employeeId":    "EMP-1",
		"basicInfo":     bson.M{"email": "ada@example.com"},
		"loginAttempts": 3,
		"isLocked":      true,
	})
	found, err := reg.Employees.FindByID(ctx, ids[0], nil)
	require.NoError(t, err)

	result, err := reg.Employees.Hydrate(found).Call(ctx, MethodRecordLogin)
	require.NoError(t, err)
	require.Equal(t, now, result)

	stored, err := odm.Decode[Employee](db.C("employees").Docs()[0])
	require.NoError(t, err)
	if stored.LoginAttempts != 0 || stored.IsLocked {
		t.Fatalf("expected login state reset, got attempts=%d locked=%v", stored.LoginAttempts, stored.IsLocked)
	}
	if stored.LastLogin == nil || !stored.LastLogin.Equal(now) {
		t.Fatalf("expected last login %v, got %v", now, stored.LastLogin)
	}
}

func TestEmployeeAddAndHasRole(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()
	roleID := primitive.NewObjectID()

	doc := reg.Employees.New(bson.M{"roles": []primitive.ObjectID{}})

	added, err := doc.Call(ctx, MethodAddRole, roleID.Hex())
	require.NoError(t, err)
	require.Equal(t, true, added)

	added, err = doc.Call(ctx, MethodAddRole, roleID)
	require.NoError(t, err)
	require.Equal(t, false, added)

	has, err := doc.Call(ctx, MethodHasRole, roleID)
	require.NoError(t, err)
	require.Equal(t, true, has)

	has, err = doc.Call(ctx, MethodHasRole, primitive.NewObjectID())
	require.NoError(t, err)
	require.Equal(t, false, has)

	if _, err := doc.Call(ctx, MethodAddRole, "not-an-id"); err == nil {
		t.Fatalf("expected error for invalid role id")
	}
}

func TestEmployeeHasRoleMatchesPopulatedRoles(t *testing.T) {
	reg, _ := newRegistry(t)
	roleID := primitive.NewObjectID()

	doc := reg.Employees.Hydrate(bson.M{"roles": bson.A{bson.M{"_id": roleID, "name": RoleHRManager}}})

	has, err := doc.Call(context.Background(), MethodHasRole, roleID.Hex())
	require.NoError(t, err)
	require.Equal(t, true, has)
}

func TestFindByDepartmentPopulatesManager(t *testing.T) {
	reg, db := newRegistry(t)
	ctx := context.Background()

	employees := db.C("employees")
	managerIDs := employees.Seed(bson.M{
		"basicInfo":  bson.M{"firstName": "Grace", "lastName": "Hopper", "email": "grace@example.com"},
		"employment": bson.M{"department": "Engineering", "status": StatusActive},
	})
	employees.Seed(
		bson.M{
			"basicInfo":  bson.M{"firstName": "Ada", "email": "ada@example.com"},
			"employment": bson.M{"department": "Engineering", "status": StatusActive, "manager": managerIDs[0]},
		},
		bson.M{
			"basicInfo":  bson.M{"firstName": "Linus", "email": "linus@example.com"},
			"employment": bson.M{"department": "Sales", "status": StatusActive, "manager": managerIDs[0]},
		},
	)

	result, err := reg.Employees.Static(ctx, StaticFindByDepartment, "Engineering")
	require.NoError(t, err)

	docs, err := result.(*odm.Query).Sort("basicInfo.firstName").Exec(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	ada := reg.Employees.Hydrate(docs[0])
	manager, ok := ada.Get("employment.manager").(bson.M)
	if !ok {
		t.Fatalf("expected manager to be populated, got %T", ada.Get("employment.manager"))
	}
	require.Equal(t, "Grace", reg.Employees.Hydrate(manager).Get("basicInfo.firstName"))

	grace := reg.Employees.Hydrate(docs[1])
	require.Nil(t, grace.Get("employment.manager"))
}

func TestFindActiveEmployees(t *testing.T) {
	reg, db := newRegistry(t)
	ctx := context.Background()

	db.C("employees").Seed(
		bson.M{"basicInfo": bson.M{"email": "a@example.com"}, "employment": bson.M{"status": StatusActive}},
		bson.M{"basicInfo": bson.M{"email": "b@example.com"}, "employment": bson.M{"status": StatusTerminated}},
	)

	result, err := reg.Employees.Static(ctx, StaticFindActiveEmployees)
	require.NoError(t, err)

	count, err := result.(*odm.Query).Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestFindByManagerCoercesID(t *testing.T) {
	reg, db := newRegistry(t)
	ctx := context.Background()
	managerID := primitive.NewObjectID()

	db.C("employees").Seed(
		bson.M{"employment": bson.M{"manager": managerID}},
		bson.M{"employment": bson.M{"manager": primitive.NewObjectID()}},
	)

	result, err := reg.Employees.Static(ctx, StaticFindByManager, managerID.Hex())
	require.NoError(t, err)

	docs, err := result.(*odm.Query).Exec(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	if _, err := reg.Employees.Static(ctx, StaticFindByManager, "zzz"); err == nil {
		t.Fatalf("expected error for invalid manager id")
	}
	if _, err := reg.Employees.Static(ctx, StaticFindByDepartment); err == nil {
		t.Fatalf("expected error for missing department")
	}
}

func TestEmployeeIndexes(t *testing.T) {
	indexes := EmployeeSchema().Indexes()
	if len(indexes) != 5 {
		t.Fatalf("expected 5 indexes, got %d", len(indexes))
	}
	if indexes[0].Keys[0].Key != "basicInfo.email" || indexes[0].Options == nil || !*indexes[0].Options.Unique {
		t.Fatalf("expected unique email index first, got %+v", indexes[0])
	}
}

func TestNewEmployeeID(t *testing.T) {
	a, b := NewEmployeeID(), NewEmployeeID()
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	if strings.ToUpper(a) != a {
		t.Fatalf("expected upper-case id, got %q", a)
	}
}
