package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cretee/creteebot/internal/db"
	"github.com/cretee/creteebot/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, errOpen := db.Open(filepath.Join(t.TempDir(), "store_test.db"))
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return New(conn)
}

func TestUpsertUser_CreateThenRefresh(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &models.User{TelegramID: 42, FirstName: "Alice", Premium: false, AccountQuota: 3}
	if errUpsert := s.UpsertUser(ctx, first); errUpsert != nil {
		t.Fatalf("upsert: %v", errUpsert)
	}

	second := &models.User{TelegramID: 42, FirstName: "Alicia", Premium: true, AccountQuota: 10}
	if errUpsert := s.UpsertUser(ctx, second); errUpsert != nil {
		t.Fatalf("upsert again: %v", errUpsert)
	}

	got, errFind := s.FindUser(ctx, 42)
	if errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	if got.FirstName != "Alicia" || !got.Premium || got.AccountQuota != 10 {
		t.Fatalf("refresh did not apply: %+v", got)
	}

	if _, errMissing := s.FindUser(ctx, 999); errMissing != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", errMissing)
	}
}

func TestCreateAccount_RequiresEncryptedSession(t *testing.T) {
	s := newTestStore(t)

	account := &models.Account{OwnerID: 42, Phone: "+1234567890", APIID: "123456", APIHash: "abcdef123456"}
	if errCreate := s.CreateAccount(context.Background(), account); errCreate == nil {
		t.Fatal("expected error for empty session blob")
	}
}

func TestAccountLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		account := &models.Account{
			OwnerID:    42,
			Phone:      "+123456789" + string(rune('0'+i)),
			APIID:      "123456",
			APIHash:    "abcdef123456",
			SessionEnc: "aa:bb:cc",
		}
		if errCreate := s.CreateAccount(ctx, account); errCreate != nil {
			t.Fatalf("create account %d: %v", i, errCreate)
		}
	}

	count, errCount := s.CountActiveAccounts(ctx, 42)
	if errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 2 {
		t.Fatalf("expected 2 active accounts, got %d", count)
	}

	rows, errList := s.FindAccountsByOwner(ctx, 42, true)
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(rows))
	}

	if errDeactivate := s.DeactivateAccount(ctx, rows[0].ID, 42); errDeactivate != nil {
		t.Fatalf("deactivate: %v", errDeactivate)
	}
	count, errCount = s.CountActiveAccounts(ctx, 42)
	if errCount != nil {
		t.Fatalf("recount: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected 1 active account after deactivation, got %d", count)
	}

	// Soft deactivation keeps the row.
	all, errAll := s.FindAccountsByOwner(ctx, 42, false)
	if errAll != nil {
		t.Fatalf("list all: %v", errAll)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rows including inactive, got %d", len(all))
	}

	if errMissing := s.DeactivateAccount(ctx, rows[0].ID, 777); errMissing != ErrNotFound {
		t.Fatalf("expected ErrNotFound for wrong owner, got %v", errMissing)
	}
}

func TestTouchAccount_SetsLastUsed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	account := &models.Account{OwnerID: 42, Phone: "+1234567890", APIID: "1", APIHash: "h", SessionEnc: "aa:bb:cc"}
	if errCreate := s.CreateAccount(ctx, account); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if errTouch := s.TouchAccount(ctx, account.ID); errTouch != nil {
		t.Fatalf("touch: %v", errTouch)
	}
	got, errFind := s.FindAccount(ctx, account.ID)
	if errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	if got.LastUsedAt == nil {
		t.Fatal("expected last_used_at to be set")
	}
}

func TestGroupsAndRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	group := &models.Group{Name: "g-1", RemoteID: 100, AccountID: 1, OwnerID: 42, MemberCount: 1}
	if errCreate := s.CreateGroup(ctx, group); errCreate != nil {
		t.Fatalf("create group: %v", errCreate)
	}

	run := &models.BulkRun{RunID: "run-1", OwnerID: 42, AccountID: 1, Requested: 3, Succeeded: 2, Failed: 1}
	if errCreate := s.CreateBulkRun(ctx, run); errCreate != nil {
		t.Fatalf("create run: %v", errCreate)
	}

	runs, errList := s.ListBulkRunsByOwner(ctx, 42, 10)
	if errList != nil {
		t.Fatalf("list runs: %v", errList)
	}
	if len(runs) != 1 || runs[0].RunID != "run-1" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	totals, errTotals := s.CountTotals(ctx)
	if errTotals != nil {
		t.Fatalf("totals: %v", errTotals)
	}
	if totals.Groups != 1 {
		t.Fatalf("expected 1 group in totals, got %d", totals.Groups)
	}
}
