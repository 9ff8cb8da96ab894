package repo

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pmarques/go-drops-backend/internal/domain"
)

// ---------- test helpers ----------

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// ---------- CreateMessage / ListMessages ----------

func TestCreateMessage_AssignsIncreasingIDsAndTimestamps(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		m, err := CreateMessage(ctx, db, domain.RoleUser, fmt.Sprintf("msg %d", i), nil)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if m.ID <= prev {
			t.Fatalf("id not strictly increasing: %d after %d", m.ID, prev)
		}
		if m.Timestamp.IsZero() {
			t.Fatalf("timestamp not assigned")
		}
		prev = m.ID
	}
}

func TestCreateMessage_StoresAudioURL(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	url := "data:audio/webm;base64,AAAA"
	m, err := CreateMessage(ctx, db, domain.RoleUser, "from audio", &url)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.AudioURL == nil || *m.AudioURL != url {
		t.Fatalf("audio url not stored: %v", m.AudioURL)
	}

	// Text-originated turns keep it nil.
	m2, err := CreateMessage(ctx, db, domain.RoleAssistant, "reply", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m2.AudioURL != nil {
		t.Fatalf("expected nil audio url, got %v", *m2.AudioURL)
	}
}

func TestListMessages_OrderMatchesCreationOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	want := []string{"first", "second", "third", "fourth"}
	for _, content := range want {
		if _, err := CreateMessage(ctx, db, domain.RoleUser, content, nil); err != nil {
			t.Fatalf("create %q: %v", content, err)
		}
	}

	got, err := ListMessages(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i, m := range got {
		if m.Content != want[i] {
			t.Fatalf("position %d: got %q want %q", i, m.Content, want[i])
		}
		if i > 0 {
			if m.Timestamp.Before(got[i-1].Timestamp) {
				t.Fatalf("timestamps not non-decreasing at %d", i)
			}
			if m.ID <= got[i-1].ID {
				t.Fatalf("ids not strictly increasing at %d", i)
			}
		}
	}
}

func TestListMessages_ReturnsFreshSlice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CreateMessage(ctx, db, domain.RoleUser, "hello", nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	a, err := ListMessages(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	a[0].Content = "mutated"

	b, err := ListMessages(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if b[0].Content != "hello" {
		t.Fatalf("internal state exposed: got %q", b[0].Content)
	}
}

func TestListMessages_EmptyStoreReturnsEmptySlice(t *testing.T) {
	db := newTestDB(t)

	got, err := ListMessages(context.Background(), db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", got)
	}
}

// ---------- CountMessages ----------

func TestCountMessages(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if n, err := CountMessages(ctx, db); err != nil || n != 0 {
		t.Fatalf("empty count: n=%d err=%v", n, err)
	}
	for i := 0; i < 3; i++ {
		if _, err := CreateMessage(ctx, db, domain.RoleUser, "x", nil); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if n, err := CountMessages(ctx, db); err != nil || n != 3 {
		t.Fatalf("count: n=%d err=%v", n, err)
	}
}

func TestCountMessages_MissingTableErrors(t *testing.T) {
	dsn := fmt.Sprintf("file:repo_bare_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if _, err := CountMessages(context.Background(), db); err == nil {
		t.Fatalf("expected error for missing table")
	}
}

// ---------- ClearMessages ----------

func TestClearMessages_ResetsIdentifierCounter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := CreateMessage(ctx, db, domain.RoleUser, "x", nil); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := ClearMessages(ctx, db); err != nil {
		t.Fatalf("clear: %v", err)
	}

	got, err := ListMessages(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("store not emptied: %d rows left", len(got))
	}

	m, err := CreateMessage(ctx, db, domain.RoleUser, "fresh start", nil)
	if err != nil {
		t.Fatalf("create after clear: %v", err)
	}
	if m.ID != 1 {
		t.Fatalf("counter not reset: first id after clear = %d, want 1", m.ID)
	}
}

func TestClearMessages_EmptyStoreIsNoop(t *testing.T) {
	db := newTestDB(t)
	if err := ClearMessages(context.Background(), db); err != nil {
		t.Fatalf("clear on empty store: %v", err)
	}
}

// ---------- concurrency ----------

func TestCreateMessage_ConcurrentCreatesGetUniqueIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	const n = 20
	ids := make(chan int64, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			m, err := CreateMessage(ctx, db, domain.RoleUser, fmt.Sprintf("c%d", i), nil)
			if err != nil {
				errs <- err
				return
			}
			ids <- m.ID
		}(i)
	}

	seen := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			t.Fatalf("concurrent create: %v", err)
		case id := <-ids:
			if seen[id] {
				t.Fatalf("duplicate id %d", id)
			}
			seen[id] = true
		}
	}
}
