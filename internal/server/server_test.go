package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"castdex/internal/indexer"
	"castdex/internal/model"
	"castdex/internal/rank"
)

// fakeService implements Service with canned data.
type fakeService struct {
	user    model.User
	userErr error
	ranked  []rank.RankedInteractor
	cleared bool
	reset   bool
}

func (f *fakeService) GetUser(_ context.Context, fid, _ uint64) (model.User, error) {
	if f.userErr != nil {
		return model.User{}, f.userErr
	}
	return f.user, nil
}

func (f *fakeService) SearchUsers(context.Context, string, int) ([]model.User, error) {
	return []model.User{f.user}, nil
}

func (f *fakeService) GetFollowers(context.Context, uint64, int, string) ([]model.User, string, error) {
	return []model.User{f.user}, "cur1", nil
}

func (f *fakeService) GetFollowing(context.Context, uint64, int, string) ([]model.User, string, error) {
	return nil, "", nil
}

func (f *fakeService) TopInteractions(context.Context, uint64, int, indexer.ScoreOptions) ([]rank.RankedInteractor, error) {
	return f.ranked, nil
}

func (f *fakeService) ReplyGuys(context.Context, uint64, int) ([]rank.RankedInteractor, error) {
	return f.ranked, nil
}

func (f *fakeService) CacheStats() indexer.CacheStats { return indexer.CacheStats{Entries: 3} }

func (f *fakeService) RateLimitStats() map[string]indexer.BudgetStat { return nil }

func (f *fakeService) PerformanceStats() indexer.PerfStats { return indexer.PerfStats{Requests: 9} }

func (f *fakeService) ClearCache() { f.cleared = true }

func (f *fakeService) ResetStats() { f.reset = true }

func doRequest(t *testing.T, svc Service, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	srv := New(":0", svc)
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestUserRoute(t *testing.T) {
	svc := &fakeService{user: model.User{FID: 2, Username: "alice"}}
	rec := doRequest(t, svc, http.MethodGet, "/api/user?fid=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		User model.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.User.Username != "alice" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestMalformedFIDRejected(t *testing.T) {
	svc := &fakeService{}
	rec := doRequest(t, svc, http.MethodGet, "/api/user?fid=abc")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestNotFoundMapsTo404(t *testing.T) {
	svc := &fakeService{userErr: indexer.ErrNotFound}
	rec := doRequest(t, svc, http.MethodGet, "/api/user?fid=2")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRateLimitedMapsTo429WithHint(t *testing.T) {
	svc := &fakeService{userErr: &indexer.RateLimitedError{Endpoint: "user-bulk", RetryAfter: 9 * time.Second}}
	rec := doRequest(t, svc, http.MethodGet, "/api/user?fid=2")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "9" {
		t.Fatalf("Retry-After = %q, want 9", rec.Header().Get("Retry-After"))
	}
}

func TestUnavailableMapsTo503(t *testing.T) {
	svc := &fakeService{userErr: &indexer.UnavailableError{Endpoint: "user-bulk", Attempts: 3}}
	rec := doRequest(t, svc, http.MethodGet, "/api/user?fid=2")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestTopFriendsRoute(t *testing.T) {
	svc := &fakeService{ranked: []rank.RankedInteractor{{User: model.User{FID: 2, Username: "alice"}, Score: 12.5}}}
	rec := doRequest(t, svc, http.MethodGet, "/api/top-friends?fid=1&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Friends []rank.RankedInteractor `json:"friends"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Friends) != 1 || body.Friends[0].Score != 12.5 {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestCacheClearRoute(t *testing.T) {
	svc := &fakeService{}
	rec := doRequest(t, svc, http.MethodPost, "/api/cache/clear")
	if rec.Code != http.StatusOK || !svc.cleared {
		t.Fatalf("status = %d cleared = %v", rec.Code, svc.cleared)
	}
}

func TestStatsRoute(t *testing.T) {
	svc := &fakeService{}
	rec := doRequest(t, svc, http.MethodGet, "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Cache       indexer.CacheStats `json:"cache"`
		Performance indexer.PerfStats  `json:"performance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Cache.Entries != 3 || body.Performance.Requests != 9 {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
