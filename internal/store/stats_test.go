package store

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"docmapper/internal/odm"
	"docmapper/internal/odm/odmtest"
)

func TestStatsProviderCountsModels(t *testing.T) {
	roles := &stubCounter{name: "Role", collection: "roles", count: 4}
	employees := &stubCounter{name: "Employee", collection: "employees", count: 12}

	provider := NewStatsProvider(roles, employees)

	ctx := context.Background()

	employeeCount, err := provider.Count(ctx, "Employee")
	if err != nil {
		t.Fatalf("expected employee count to succeed, got error: %v", err)
	}
	if employeeCount != 12 {
		t.Fatalf("expected 12 employees, got %d", employeeCount)
	}
	if employees.calls != 1 || roles.calls != 0 {
		t.Fatalf("expected only employees to be counted, got employees=%d roles=%d", employees.calls, roles.calls)
	}

	counts, err := provider.Counts(ctx)
	if err != nil {
		t.Fatalf("expected counts to succeed, got error: %v", err)
	}
	if counts["roles"] != 4 || counts["employees"] != 12 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestStatsProviderCountsThroughODMModels(t *testing.T) {
	ctx := context.Background()
	db := odmtest.NewDatabase()
	db.C("roles").Seed(bson.M{"name": "admin"}, bson.M{"name": "viewer"})

	conn := odm.NewConnection(db.Dialer())
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	provider := NewStatsProvider(odm.NewModel(conn, "Role", nil))

	count, err := provider.Count(ctx, "Role")
	if err != nil {
		t.Fatalf("expected count to succeed, got error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 roles, got %d", count)
	}
}

func TestStatsProviderRejectsUnknownModel(t *testing.T) {
	provider := NewStatsProvider(&stubCounter{name: "Role", collection: "roles"})

	if _, err := provider.Count(context.Background(), "Invoice"); err == nil {
		t.Fatalf("expected error for unknown model")
	}
}

func TestStatsProviderRequiresContext(t *testing.T) {
	provider := NewStatsProvider(&stubCounter{name: "Role"})

	if _, err := provider.Count(nil, "Role"); err == nil {
		t.Fatalf("expected error for nil context")
	}
	if _, err := provider.Counts(nil); err == nil {
		t.Fatalf("expected error for nil context")
	}
}

func TestStatsProviderRequiresInitialization(t *testing.T) {
	var provider *StatsProvider

	if _, err := provider.Count(context.Background(), "Role"); err == nil {
		t.Fatalf("expected error for nil provider")
	}
	if _, err := provider.Counts(context.Background()); err == nil {
		t.Fatalf("expected error for nil provider")
	}
}

func TestStatsProviderPropagatesErrors(t *testing.T) {
	expectedErr := errors.New("count failed")
	provider := NewStatsProvider(&stubCounter{name: "Role", collection: "roles", err: expectedErr})

	if _, err := provider.Count(context.Background(), "Role"); !errors.Is(err, expectedErr) {
		t.Fatalf("expected wrapped count error, got %v", err)
	}
	if _, err := provider.Counts(context.Background()); !errors.Is(err, expectedErr) {
		t.Fatalf("expected wrapped count error, got %v", err)
	}
}

type stubCounter struct {
	name       string
	collection string
	count      int64
	err        error
	calls      int
}

func (s *stubCounter) Name() string { return s.name }

func (s *stubCounter) CollectionName() string { return s.collection }

func (s *stubCounter) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	s.calls++
	return s.count, s.err
}
