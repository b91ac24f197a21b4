package staff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docmapper/internal/domain"
	"docmapper/internal/odm"
	"docmapper/internal/odm/odmtest"
)

var now = time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)

func newDirectory(t *testing.T) (*Directory, *odmtest.Database, *logtest.Hook) {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	db := odmtest.NewDatabase()
	conn := odm.NewConnection(db.Dialer(),
		odm.WithClock(func() time.Time { return now }),
		odm.WithLogger(logrus.NewEntry(logger)),
	)
	require.NoError(t, conn.Connect(context.Background()))

	return NewDirectory(domain.NewRegistry(conn), logrus.NewEntry(logger)), db, hook
}

func seedDepartment(t *testing.T, db *odmtest.Database) (roleIDs []interface{}, managerID interface{}) {
	t.Helper()

	roleIDs = db.C("roles").Seed(
		bson.M{"name": domain.RoleHRManager, "priority": 50},
		bson.M{"name": domain.RoleEmployee, "priority": 100},
	)

	employees := db.C("employees")
	managerID = employees.Seed(bson.M{
		"employeeId": "EMP-M",
		"basicInfo":  bson.M{"firstName": "Grace", "lastName": "Hopper", "email": "grace@example.com"},
		"employment": bson.M{"department": "People", "status": domain.StatusActive},
		"roles":      bson.A{roleIDs[0]},
	})[0]

	employees.Seed(
		bson.M{
			"employeeId": "EMP-1",
			"basicInfo":  bson.M{"firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com"},
			"employment": bson.M{"department": "People", "status": domain.StatusActive, "manager": managerID},
			"roles":      bson.A{roleIDs[1], primitive.NewObjectID()},
		},
		bson.M{
			"employeeId": "EMP-2",
			"basicInfo":  bson.M{"firstName": "Alan", "lastName": "Turing", "email": "alan@example.com"},
			"employment": bson.M{"department": "People", "status": domain.StatusActive, "manager": managerID},
			"roles":      bson.A{roleIDs[1]},
		},
		bson.M{
			"employeeId": "EMP-3",
			"basicInfo":  bson.M{"firstName": "Linus", "lastName": "Torvalds", "email": "linus@example.com"},
			"employment": bson.M{"department": "Kernel", "status": domain.StatusActive},
		},
	)
	return roleIDs, managerID
}

func TestByDepartmentPopulatesRolesAndManager(t *testing.T) {
	dir, db, _ := newDirectory(t)
	ctx := context.Background()
	_, managerID := seedDepartment(t, db)

	members, err := dir.ByDepartment(ctx, "People", 1, 10)
	require.NoError(t, err)
	require.Len(t, members, 3)

	names := []string{members[0].FullName, members[1].FullName, members[2].FullName}
	require.Equal(t, []string{"Grace Hopper", "Ada Lovelace", "Alan Turing"}, names)

	ada := members[1]
	require.Len(t, ada.Roles, 2)
	require.Equal(t, domain.RoleEmployee, ada.Roles[0].Name)
	require.Empty(t, ada.Roles[1].Name, "unresolved role keeps only its id")
	require.False(t, ada.Roles[1].ID.IsZero())

	require.NotNil(t, ada.Manager)
	require.Equal(t, managerID.(primitive.ObjectID).Hex(), ada.Manager.ID)
	require.Equal(t, "Grace Hopper", ada.Manager.FullName)

	require.Nil(t, members[0].Manager)
	require.Equal(t, domain.RoleHRManager, members[0].Roles[0].Name)

	// one employee find, one manager lookup, one role lookup
	require.Equal(t, 2, db.C("employees").CallCount("find"))
	require.Equal(t, 1, db.C("roles").CallCount("find"))
}

func TestByDepartmentPaginates(t *testing.T) {
	dir, db, _ := newDirectory(t)
	ctx := context.Background()
	seedDepartment(t, db)

	first, err := dir.ByDepartment(ctx, "People", 1, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := dir.ByDepartment(ctx, "People", 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, "EMP-2", second[0].EmployeeID)

	empty, err := dir.ByDepartment(ctx, "Marketing", 0, 0)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestByDepartmentClampsPageSize(t *testing.T) {
	dir, db, _ := newDirectory(t)
	seedDepartment(t, db)

	_, err := dir.ByDepartment(context.Background(), "People", 1, MaxPageSize*10)
	require.NoError(t, err)

	calls := db.C("employees").Calls()
	require.NotEmpty(t, calls)
	require.Equal(t, "find", calls[0].Op)

	opts, ok := calls[0].Opts.(*options.FindOptions)
	require.True(t, ok)
	require.EqualValues(t, MaxPageSize, *opts.Limit)
	require.EqualValues(t, 0, *opts.Skip)
}

func TestByDepartmentRequiresDepartment(t *testing.T) {
	dir, _, _ := newDirectory(t)

	if _, err := dir.ByDepartment(context.Background(), "", 1, 10); err == nil {
		t.Fatalf("expected error for empty department")
	}
	if _, err := dir.ByDepartment(nil, "People", 1, 10); err == nil {
		t.Fatalf("expected error for nil context")
	}
}

func TestByDepartmentPropagatesDriverErrors(t *testing.T) {
	dir, db, _ := newDirectory(t)
	seedDepartment(t, db)
	boom := errors.New("roles unavailable")
	db.C("roles").FailOn("find", boom)

	_, err := dir.ByDepartment(context.Background(), "People", 1, 10)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped populate error, got %v", err)
	}
}

func TestActiveListsEveryDepartment(t *testing.T) {
	dir, db, _ := newDirectory(t)
	seedDepartment(t, db)
	db.C("employees").Seed(bson.M{
		"employeeId": "EMP-4",
		"basicInfo":  bson.M{"firstName": "Ken", "lastName": "Thompson", "email": "ken@example.com"},
		"employment": bson.M{"department": "Kernel", "status": domain.StatusTerminated},
	})

	members, err := dir.Active(context.Background(), 1, 10)
	require.NoError(t, err)

	var ids []string
	for _, m := range members {
		ids = append(ids, m.EmployeeID)
	}
	require.Equal(t, []string{"EMP-M", "EMP-1", "EMP-3", "EMP-2"}, ids)
}

func TestReportsAcceptsTextualManagerID(t *testing.T) {
	dir, db, _ := newDirectory(t)
	_, managerID := seedDepartment(t, db)

	members, err := dir.Reports(context.Background(), managerID.(primitive.ObjectID).Hex(), 1, 10)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, "Ada Lovelace", members[0].FullName)
	require.Equal(t, "Alan Turing", members[1].FullName)

	_, err = dir.Reports(context.Background(), "not-hex", 1, 10)
	require.Error(t, err)
}

func TestRecordLogin(t *testing.T) {
	dir, db, _ := newDirectory(t)
	ctx := context.Background()

	ids := db.C("employees").Seed(bson.M{
		"employeeId":    "EMP-1",
		"basicInfo":     bson.M{"firstName": "Ada", "email": "ada@example.com"},
		"loginAttempts": 4,
		"isLocked":      true,
	})

	member, err := dir.RecordLogin(ctx, ids[0].(primitive.ObjectID).Hex())
	require.NoError(t, err)
	require.Equal(t, "EMP-1", member.EmployeeID)
	require.False(t, member.IsLocked)

	calls := db.C("employees").Calls()
	last := calls[len(calls)-1]
	require.Equal(t, "findOneAndUpdate", last.Op)
	set := last.Update["$set"].(bson.M)
	require.Contains(t, set, odm.FieldUpdatedAt)
	require.Contains(t, set, "lastLogin")

	stored := db.C("employees").Docs()[0]
	require.EqualValues(t, 0, stored["loginAttempts"])

	_, err = dir.RecordLogin(ctx, primitive.NewObjectID())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordFailedLoginLocksAfterLimit(t *testing.T) {
	dir, db, hook := newDirectory(t)
	ctx := context.Background()

	ids := db.C("employees").Seed(bson.M{
		"employeeId":    "EMP-1",
		"basicInfo":     bson.M{"email": "ada@example.com"},
		"loginAttempts": 0,
		"isLocked":      false,
	})

	for i := 1; i < MaxLoginAttempts; i++ {
		locked, err := dir.RecordFailedLogin(ctx, ids[0])
		require.NoError(t, err)
		require.False(t, locked, "attempt %d", i)
	}

	locked, err := dir.RecordFailedLogin(ctx, ids[0])
	require.NoError(t, err)
	require.True(t, locked)

	stored := db.C("employees").Docs()[0]
	require.Equal(t, true, stored["isLocked"])
	require.EqualValues(t, MaxLoginAttempts, stored["loginAttempts"])

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, "staff_locked", entry.Data["event"])

	locked, err = dir.RecordFailedLogin(ctx, ids[0])
	require.NoError(t, err)
	require.True(t, locked)
	require.Equal(t, 1, db.C("employees").CallCount("updateOne"))
}

func TestDirectoryRequiresInitialization(t *testing.T) {
	var dir *Directory

	if _, err := dir.ByDepartment(context.Background(), "People", 1, 10); err == nil {
		t.Fatalf("expected error for nil directory")
	}
	if _, err := NewDirectory(nil, nil).RecordLogin(context.Background(), primitive.NewObjectID()); err == nil {
		t.Fatalf("expected error for directory without registry")
	}
}
