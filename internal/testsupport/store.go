package testsupport

import (
	"context"
	"testing"

	"autocoder/internal/config"
	"autocoder/internal/store"
)

// MustOpenStore opens a response store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// SeedPerson inserts a considered person for tests.
func SeedPerson(t testing.TB, s *store.Store, workspaceID int64, id, group string) {
	t.Helper()

	err := s.InsertPerson(context.Background(), store.Person{
		ID:          id,
		WorkspaceID: workspaceID,
		GroupName:   group,
		Consider:    true,
	})
	if err != nil {
		t.Fatalf("InsertPerson: %v", err)
	}
}

// SeedUnit creates a booklet for the person plus one unit inside it and
// returns the unit id.
func SeedUnit(t testing.TB, s *store.Store, personID, unitName, alias string) int64 {
	t.Helper()

	ctx := context.Background()
	bookletID, err := s.InsertBooklet(ctx, personID)
	if err != nil {
		t.Fatalf("InsertBooklet: %v", err)
	}
	unitID, err := s.InsertUnit(ctx, bookletID, unitName, alias)
	if err != nil {
		t.Fatalf("InsertUnit: %v", err)
	}
	return unitID
}

// SeedResponse inserts one response and returns its id.
func SeedResponse(t testing.TB, s *store.Store, response store.Response) int64 {
	t.Helper()

	ids, err := s.InsertResponses(context.Background(), []store.Response{response})
	if err != nil {
		t.Fatalf("InsertResponses: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected one inserted id, got %d", len(ids))
	}
	return ids[0]
}
