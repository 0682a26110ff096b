package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"sessionkeeper/backend/internal/db"
	"sessionkeeper/backend/internal/db/dbtest"
	"sessionkeeper/backend/internal/fingerprint"
	"sessionkeeper/backend/internal/session/domain"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()
	sqlDB := dbtest.NewSQLite(t)
	dbtest.InsertUser(t, sqlDB, "u1", "alice")
	dbtest.InsertUser(t, sqlDB, "u2", "bobby")
	repo := NewSQLRepository(sqlDB, db.DriverSQLite)
	repo.now = func() time.Time { return time.Unix(5_000, 0) }
	return repo
}

func seed(t *testing.T, repo *SQLRepository, id, userID string, createdAt, expiresAt int64) {
	t.Helper()
	err := repo.Create(context.Background(), &domain.Session{
		ID: id, UserID: userID, DeviceName: "iPhone iOS", BrowserVersion: "Safari 17", IPAddress: "1.1.1.1",
		CreatedAt: createdAt, ExpiresAt: expiresAt,
	})
	if err != nil {
		t.Fatalf("Create %s: %v", id, err)
	}
}

func TestSQLRepository_CreateAndFindOne(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "s1", "u1", 1_000, 9_000)

	got, err := repo.FindOne(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got == nil {
		t.Fatal("FindOne returned nil")
	}
	if got.Version != 1 || got.Revoked || got.Reason != "" {
		t.Errorf("new session state = %+v", got)
	}
	if got.CreatedAt != 1_000 || got.ExpiresAt != 9_000 || got.UpdatedAt != 5_000 {
		t.Errorf("times = %d/%d/%d", got.CreatedAt, got.ExpiresAt, got.UpdatedAt)
	}
	if got.DeviceName != "iPhone iOS" || got.BrowserVersion != "Safari 17" || got.IPAddress != "1.1.1.1" {
		t.Errorf("fingerprint = %+v", got.Fingerprint())
	}
}

func TestSQLRepository_FindOneScopedByUser(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo, "s1", "u1", 1_000, 9_000)
	got, err := repo.FindOne(context.Background(), "s1", "u2")
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got != nil {
		t.Errorf("session must not be visible to another user: %+v", got)
	}
}

func TestSQLRepository_DuplicateID(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo, "s1", "u1", 1_000, 9_000)
	err := repo.Create(context.Background(), &domain.Session{ID: "s1", UserID: "u2", CreatedAt: 1, ExpiresAt: 2})
	if err == nil {
		t.Fatal("session ids must never be reassigned")
	}
	if !db.IsUniqueViolation(err) {
		t.Errorf("want unique violation, got %v", err)
	}
}

func TestSQLRepository_UpdateRotate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "s1", "u1", 1_000, 9_000)
	repo.now = func() time.Time { return time.Unix(6_000, 0) }

	fp := fingerprint.Fingerprint{DeviceName: "iPhone iOS", BrowserVersion: "Safari 17", IPAddress: "2.2.2.2"}
	ok, err := repo.Update(ctx, "s1", "u1", domain.RotatePatch(2, fp, time.Unix(6_000, 0)))
	if err != nil || !ok {
		t.Fatalf("Update = %v, %v", ok, err)
	}
	got, _ := repo.FindOne(ctx, "s1", "u1")
	if got.Version != 2 || got.IPAddress != "2.2.2.2" || got.UpdatedAt != 6_000 {
		t.Errorf("after rotate = %+v", got)
	}
	if got.ExpiresAt != 9_000 || got.CreatedAt != 1_000 {
		t.Error("rotation must not move created_at or expires_at")
	}
}

func TestSQLRepository_UpdateVersionGuard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "s1", "u1", 1_000, 9_000)
	fp := fingerprint.Fingerprint{DeviceName: "d", BrowserVersion: "b", IPAddress: "i"}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Update(ctx, "s1", "u1", domain.RotatePatch(2, fp, time.Unix(6_000, 0)))
			if err != nil {
				t.Errorf("Update: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("exactly one rotation from version 1 must win, got %d", wins)
	}
	got, _ := repo.FindOne(ctx, "s1", "u1")
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}
}

func TestSQLRepository_RevokeIsOneWayAndKeepsFirstReason(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "s1", "u1", 1_000, 9_000)

	ok, err := repo.Update(ctx, "s1", "u1", domain.RevokePatch(domain.ReasonLogout))
	if err != nil || !ok {
		t.Fatalf("first revoke = %v, %v", ok, err)
	}
	ok, err = repo.Update(ctx, "s1", "u1", domain.RevokePatch(domain.ReasonInactivity))
	if err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if ok {
		t.Error("second revoke should affect no rows")
	}
	got, _ := repo.FindOne(ctx, "s1", "u1")
	if !got.Revoked || got.Reason != domain.ReasonLogout {
		t.Errorf("after revokes = %+v", got)
	}
}

func TestSQLRepository_RotateSkipsInactiveRows(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "revoked", "u1", 1_000, 9_000)
	seed(t, repo, "expired", "u1", 1_000, 4_000)
	fp := fingerprint.Fingerprint{DeviceName: "d", BrowserVersion: "b", IPAddress: "i"}

	if ok, err := repo.Update(ctx, "revoked", "u1", domain.RevokePatch(domain.ReasonLogout)); err != nil || !ok {
		t.Fatalf("revoke = %v, %v", ok, err)
	}
	for _, id := range []string{"revoked", "expired"} {
		ok, err := repo.Update(ctx, id, "u1", domain.RotatePatch(2, fp, time.Unix(5_000, 0)))
		if err != nil {
			t.Fatalf("Update(%s): %v", id, err)
		}
		if ok {
			t.Errorf("rotation of %s session must affect no rows", id)
		}
		got, _ := repo.FindOne(ctx, id, "u1")
		if got.Version != 1 || got.DeviceName == "d" {
			t.Errorf("%s session changed: %+v", id, got)
		}
	}
}

func TestSQLRepository_EmptyPatch(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo, "s1", "u1", 1_000, 9_000)
	ok, err := repo.Update(context.Background(), "s1", "u1", domain.Patch{})
	if err != nil || ok {
		t.Errorf("empty patch = %v, %v; want false, nil", ok, err)
	}
	n, err := repo.UpdateAll(context.Background(), "u1", domain.Patch{})
	if err != nil || n != 0 {
		t.Errorf("empty UpdateAll = %d, %v", n, err)
	}
}

func TestSQLRepository_UpdateAllAndLists(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "a", "u1", 1_000, 9_000)
	seed(t, repo, "b", "u1", 2_000, 9_000)
	seed(t, repo, "old", "u1", 500, 4_000) // past its ceiling at now=5000
	seed(t, repo, "other", "u2", 1_000, 9_000)

	active, err := repo.ListActive(ctx, "u1", 5_000)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 2 || active[0].ID != "b" || active[1].ID != "a" {
		t.Fatalf("ListActive = %v", ids(active))
	}

	if _, err := repo.Update(ctx, "a", "u1", domain.RevokePatch(domain.ReasonLogout)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	n, err := repo.UpdateAll(ctx, "u1", domain.RevokePatch(domain.ReasonLogoutAll))
	if err != nil {
		t.Fatalf("UpdateAll: %v", err)
	}
	if n != 2 {
		t.Errorf("UpdateAll changed %d rows, want 2 (b and old)", n)
	}

	revoked, err := repo.ListRevoked(ctx, "u1")
	if err != nil {
		t.Fatalf("ListRevoked: %v", err)
	}
	if len(revoked) != 3 {
		t.Fatalf("ListRevoked = %v", ids(revoked))
	}
	for _, s := range revoked {
		if s.ID == "a" && s.Reason != domain.ReasonLogout {
			t.Errorf("session a reason = %q, want first reason kept", s.Reason)
		}
	}
	other, _ := repo.FindOne(ctx, "other", "u2")
	if other.Revoked {
		t.Error("UpdateAll must not touch other users")
	}
}

func TestSQLRepository_PurgeExpired(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "fresh", "u1", 1_000, 9_000)
	seed(t, repo, "stale", "u1", 100, 200)

	n, err := repo.PurgeExpired(ctx, 5_000)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if s, _ := repo.FindOne(ctx, "stale", "u1"); s != nil {
		t.Error("stale session should be gone")
	}
	if s, _ := repo.FindOne(ctx, "fresh", "u1"); s == nil {
		t.Error("fresh session should remain")
	}
}

func ids(list []*domain.Session) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}
