package jobs

import (
	"context"
	"time"

	"castdex/internal/indexer"
	"castdex/internal/logging"
	"castdex/internal/rank"
	"castdex/internal/store/rankdb"
)

const lastRunCursor = "refresh:last_run"

// Kinds of stored snapshots.
const (
	KindTopFriends = "top-friends"
	KindReplyGuys  = "reply-guys"
)

// Ranker is the slice of the indexer the refresh job needs.
type Ranker interface {
	TopInteractions(ctx context.Context, fid uint64, limit int, opts indexer.ScoreOptions) ([]rank.RankedInteractor, error)
	ReplyGuys(ctx context.Context, fid uint64, limit int) ([]rank.RankedInteractor, error)
}

// RefreshOnce computes and stores both ranking snapshots for fid.
func RefreshOnce(ctx context.Context, db *rankdb.DB, ix Ranker, fid uint64) error {
	now := time.Now().UTC()
	top, err := ix.TopInteractions(ctx, fid, indexer.DefaultTopLimit, indexer.ScoreOptions{})
	if err != nil {
		return err
	}
	if err := db.PutSnapshot(ctx, now, fid, KindTopFriends, top); err != nil {
		return err
	}
	guys, err := ix.ReplyGuys(ctx, fid, indexer.DefaultTopLimit)
	if err != nil {
		return err
	}
	if err := db.PutSnapshot(ctx, now, fid, KindReplyGuys, guys); err != nil {
		return err
	}
	_ = db.SaveCursor(ctx, lastRunCursor, now.Format(time.RFC3339Nano))
	logging.Info("refresh_once", map[string]any{"fid": fid, "top": len(top), "replyGuys": len(guys)})
	return nil
}

// RefreshLoop runs RefreshOnce on a ticker until ctx is cancelled.
func RefreshLoop(ctx context.Context, db *rankdb.DB, ix Ranker, fid uint64, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	// run immediately
	if err := RefreshOnce(ctx, db, ix, fid); err != nil {
		logging.Error("refresh_once_error", map[string]any{"error": err.Error()})
	}
	for {
		select {
		case <-ctx.Done():
			logging.Info("refresh_loop_stop", nil)
			return ctx.Err()
		case <-t.C:
			if err := RefreshOnce(ctx, db, ix, fid); err != nil {
				logging.Error("refresh_once_error", map[string]any{"error": err.Error()})
			}
		}
	}
}
