package rankdb

import (
	"context"
	"testing"
	"time"
)

func TestSnapshotsRoundTrip(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	payload := []map[string]any{{"fid": 2, "score": 12.5}}
	if err := db.PutSnapshot(ctx, base, 1, "top-friends", payload); err != nil {
		t.Fatal(err)
	}
	if err := db.PutSnapshot(ctx, base.Add(time.Hour), 1, "top-friends", payload); err != nil {
		t.Fatal(err)
	}
	if err := db.PutSnapshot(ctx, base, 99, "top-friends", payload); err != nil {
		t.Fatal(err)
	}

	snaps, err := db.LoadSnapshotsRange(ctx, 1, "top-friends", base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("snapshots = %d, want 2 (other subjects excluded)", len(snaps))
	}
	if !snaps[0].TS.Equal(base) || snaps[0].Subject != 1 {
		t.Fatalf("first = %+v", snaps[0])
	}

	latest, ok, err := db.LatestSnapshot(ctx, 1, "top-friends")
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if !latest.TS.Equal(base.Add(time.Hour)) {
		t.Fatalf("latest ts = %s", latest.TS)
	}

	if _, ok, err := db.LatestSnapshot(ctx, 1, "reply-guys"); err != nil || ok {
		t.Fatalf("expected no reply-guys snapshot, ok=%v err=%v", ok, err)
	}
}

func TestCursors(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	v, err := db.LoadCursor(ctx, "refresh:last_run")
	if err != nil || v != "" {
		t.Fatalf("unset cursor: %q %v", v, err)
	}
	if err := db.SaveCursor(ctx, "refresh:last_run", "2025-06-01T12:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveCursor(ctx, "refresh:last_run", "2025-06-01T13:00:00Z"); err != nil {
		t.Fatal(err)
	}
	v, err = db.LoadCursor(ctx, "refresh:last_run")
	if err != nil || v != "2025-06-01T13:00:00Z" {
		t.Fatalf("cursor = %q %v", v, err)
	}
}
