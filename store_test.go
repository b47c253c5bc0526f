package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLitePlayerStore {
	t.Helper()

	store, err := OpenPlayerStore(filepath.Join(t.TempDir(), "players.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	return store
}

func TestOpenPlayerStoreRequiresPath(t *testing.T) {
	if _, err := OpenPlayerStore(""); err == nil {
		t.Fatal("open with empty path succeeded")
	}
}

func TestInsertAndFindPlayer(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	inserted, err := store.InsertPlayer(ctx, "Ana")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted.ID == "" {
		t.Fatal("inserted player has no id")
	}
	if inserted.Score != 0 {
		t.Fatalf("inserted score = %d, want 0", inserted.Score)
	}

	found, err := store.FindPlayer(ctx, "Ana")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil {
		t.Fatal("inserted player not found")
	}
	if found.ID != inserted.ID || found.Name != "Ana" || found.Score != 0 {
		t.Fatalf("found = %+v, want %+v", found, inserted)
	}
}

func TestFindMissingPlayerReturnsNil(t *testing.T) {
	store := openTestStore(t)

	found, err := store.FindPlayer(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != nil {
		t.Fatalf("found = %+v, want nil", found)
	}
}

func TestInsertDuplicateName(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.InsertPlayer(ctx, "Ana"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := store.InsertPlayer(ctx, "Ana"); !errors.Is(err, ErrPlayerExists) {
		t.Fatalf("second insert error = %v, want ErrPlayerExists", err)
	}
}

func TestExistsByName(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	exists, err := store.ExistsByName(ctx, "Ana")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("exists = true before insert")
	}

	if _, err := store.InsertPlayer(ctx, "Ana"); err != nil {
		t.Fatal(err)
	}

	exists, err = store.ExistsByName(ctx, "Ana")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("exists = false after insert")
	}
}

func TestUpdateScore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.InsertPlayer(ctx, "Ana"); err != nil {
		t.Fatal(err)
	}

	updated, err := store.UpdateScore(ctx, "Ana", 15)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Score != 15 {
		t.Fatalf("updated score = %d, want 15", updated.Score)
	}

	found, err := store.FindPlayer(ctx, "Ana")
	if err != nil {
		t.Fatal(err)
	}
	if found.Score != 15 {
		t.Fatalf("stored score = %d, want 15", found.Score)
	}
}

func TestUpdateScoreMissingPlayer(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.UpdateScore(context.Background(), "nobody", 5); err == nil {
		t.Fatal("update of missing player succeeded")
	}
}

func TestScoresSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.db")
	ctx := context.Background()

	store, err := OpenPlayerStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.InsertPlayer(ctx, "Ana"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpdateScore(ctx, "Ana", 10); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenPlayerStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	found, err := reopened.FindPlayer(ctx, "Ana")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.Score != 10 {
		t.Fatalf("found = %+v after reopen, want Ana with score 10", found)
	}
}
