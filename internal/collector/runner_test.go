package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"mcsr-analyzer/internal/db"
	"mcsr-analyzer/internal/dedupe"
	"mcsr-analyzer/internal/mcsr"
	"mcsr-analyzer/internal/stats"
	"mcsr-analyzer/internal/storage"
)

// fakeFetcher returns canned matches per username
type fakeFetcher struct {
	mu      sync.Mutex
	matches map[string][]mcsr.Match
	errs    map[string]error
	calls   []string
	onFetch func(username string)
}

func (f *fakeFetcher) FetchUserMatches(ctx context.Context, identifier string, _ mcsr.FetchParams) (*mcsr.MatchesResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, identifier)
	f.mu.Unlock()

	if f.onFetch != nil {
		f.onFetch(identifier)
	}
	if err := f.errs[identifier]; err != nil {
		return nil, err
	}
	return &mcsr.MatchesResponse{Status: "success", Data: f.matches[identifier]}, nil
}

func ids(values ...int64) []mcsr.Match {
	out := make([]mcsr.Match, len(values))
	for i := range values {
		id := values[i]
		out[i] = mcsr.Match{ID: &id}
	}
	return out
}

func newJSONPersister(t *testing.T) (*JSONPersister, *storage.JSONStore) {
	t.Helper()
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "matches.json"))
	p, err := NewJSONPersister(store)
	if err != nil {
		t.Fatalf("NewJSONPersister failed: %v", err)
	}
	return p, store
}

func TestRun_FailedUserIsSkipped(t *testing.T) {
	fetcher := &fakeFetcher{
		matches: map[string][]mcsr.Match{
			"alpha": ids(1, 2),
			"gamma": ids(3),
		},
		errs: map[string]error{
			"beta": fmt.Errorf("beta: %w 404", mcsr.ErrUnexpectedStatus),
		},
	}
	persister, store := newJSONPersister(t)

	summary, err := NewRunner(fetcher, persister, mcsr.DefaultFetchParams()).Run(context.Background(), []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.TotalAdded() != 3 {
		t.Errorf("Expected 3 added, got %d", summary.TotalAdded())
	}
	if failed := summary.FailedUsers(); len(failed) != 1 || failed[0] != "beta" {
		t.Errorf("Expected beta to fail, got %v", failed)
	}
	if summary.Interrupted {
		t.Error("Run should not be marked interrupted")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := strings.Join(loaded.Usernames(), ","); got != "alpha,gamma" {
		t.Errorf("Expected alpha,gamma stored, got %s", got)
	}
}

func TestRun_AppendsToExistingFile(t *testing.T) {
	persister, store := newJSONPersister(t)
	fetcher := &fakeFetcher{matches: map[string][]mcsr.Match{"alpha": ids(1, 2)}}

	for run := 0; run < 2; run++ {
		p, err := NewJSONPersister(store)
		if err != nil {
			t.Fatal(err)
		}
		persister = p
		if _, err := NewRunner(fetcher, persister, mcsr.DefaultFetchParams()).Run(context.Background(), []string{"alpha"}); err != nil {
			t.Fatalf("Run %d failed: %v", run, err)
		}
	}

	if total := persister.Collection().TotalMatches(); total != 4 {
		t.Errorf("Expected 4 records after two runs (append-only), got %d", total)
	}
}

func TestRun_CancelStopsBeforeNextUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &fakeFetcher{
		matches: map[string][]mcsr.Match{
			"alpha": ids(1),
			"beta":  ids(2),
		},
		onFetch: func(username string) {
			if username == "alpha" {
				cancel()
			}
		},
	}
	persister, store := newJSONPersister(t)

	summary, err := NewRunner(fetcher, persister, mcsr.DefaultFetchParams()).Run(ctx, []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !summary.Interrupted {
		t.Error("Expected run to be interrupted")
	}
	if len(fetcher.calls) != 1 {
		t.Errorf("Expected only alpha to be fetched, got %v", fetcher.calls)
	}

	// alpha was fetched before the cancel took effect and must still be saved
	loaded, _ := store.Load()
	if _, ok := loaded.Get("alpha"); !ok {
		t.Error("Expected alpha to be persisted after interrupt")
	}
}

func TestRun_CancelledFetchIsNotCountedAsFailure(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{"alpha": context.Canceled}}
	persister, _ := newJSONPersister(t)

	summary, err := NewRunner(fetcher, persister, mcsr.DefaultFetchParams()).Run(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !summary.Interrupted {
		t.Error("Expected run to be interrupted")
	}
	if len(summary.FailedUsers()) != 0 {
		t.Errorf("Expected no failed users, got %v", summary.FailedUsers())
	}
}

type failingPersister struct{ flushErr error }

func (p *failingPersister) Persist(context.Context, string, []mcsr.Match) (int, error) {
	return 0, errors.New("disk full")
}

func (p *failingPersister) Flush(context.Context) error { return p.flushErr }

func TestRun_PersistErrors(t *testing.T) {
	fetcher := &fakeFetcher{matches: map[string][]mcsr.Match{"alpha": ids(1)}}

	summary, err := NewRunner(fetcher, &failingPersister{}, mcsr.DefaultFetchParams()).Run(context.Background(), []string{"alpha"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summary.FailedUsers()) != 1 {
		t.Errorf("Expected persist failure to mark the user failed, got %v", summary.FailedUsers())
	}

	_, err = NewRunner(fetcher, &failingPersister{flushErr: errors.New("read-only")}, mcsr.DefaultFetchParams()).Run(context.Background(), []string{"alpha"})
	if err == nil {
		t.Error("Expected flush error to be returned")
	}
}

func TestRun_DBPersisterCountsOnlyNewRows(t *testing.T) {
	ctx := context.Background()
	store, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "matches.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer store.Close()
	if err := store.CreateTables(ctx); err != nil {
		t.Fatalf("CreateTables failed: %v", err)
	}

	fetcher := &fakeFetcher{
		matches: map[string][]mcsr.Match{
			"alpha": ids(1, 2),
			"beta":  append(ids(2, 3), mcsr.Match{}),
		},
	}

	summary, err := NewRunner(fetcher, NewDBPersister(store), mcsr.DefaultFetchParams()).Run(ctx, []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// beta shares match 2 with alpha and has one record without an id
	if summary.Users[0].Added != 2 || summary.Users[1].Added != 1 {
		t.Errorf("Expected added counts 2 and 1, got %d and %d", summary.Users[0].Added, summary.Users[1].Added)
	}
	if summary.Users[1].Fetched != 3 {
		t.Errorf("Expected beta to report 3 fetched, got %d", summary.Users[1].Fetched)
	}
}

// TestPipeline_FetchDedupeStats runs the HTTP client against a mock API through to the stats reducers
func TestPipeline_FetchDedupeStats(t *testing.T) {
	responses := map[string]string{
		"alpha": `{"status":"success","data":[
			{"id":10,"forfeited":true,"seed":{"bastion":"BRIDGE","overworld":"VILLAGE"},
			 "result":{"uuid":"u1","time":1000},
			 "players":[{"uuid":"u1","nickname":"alpha","country":"br"}],
			 "changes":[{"uuid":"u1","change":-12}]},
			{"id":11,"seed":{"bastion":"STABLES","overworld":"SHIPWRECK"},
			 "result":{"uuid":"u2","time":2000},
			 "players":[{"uuid":"u1","nickname":"alpha","country":"br"},{"uuid":"u2","nickname":"beta","country":"us"}]}
		]}`,
		"beta": `{"status":"success","data":[
			{"id":11,"seed":{"bastion":"STABLES","overworld":"SHIPWRECK"},
			 "result":{"uuid":"u2","time":2000},
			 "players":[{"uuid":"u1","nickname":"alpha","country":"br"},{"uuid":"u2","nickname":"beta","country":"us"}]}
		]}`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/users/"), "/matches")
		body, ok := responses[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := mcsr.NewClient(mcsr.WithBaseURL(server.URL), mcsr.WithRetryDelay(0))
	persister, store := newJSONPersister(t)

	summary, err := NewRunner(client, persister, mcsr.DefaultFetchParams()).Run(context.Background(), []string{"alpha", "ghost", "beta"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.TotalAdded() != 3 {
		t.Errorf("Expected 3 records appended, got %d", summary.TotalAdded())
	}
	if failed := summary.FailedUsers(); len(failed) != 1 || failed[0] != "ghost" {
		t.Errorf("Expected ghost to fail with 404, got %v", failed)
	}

	data, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	result := dedupe.Deduplicate(data)
	if result.Removed != 1 {
		t.Errorf("Expected 1 duplicate removed, got %d", result.Removed)
	}

	if total := stats.CountMatches(data)[stats.LabelMatches]; total != 2 {
		t.Errorf("Expected 2 matches after dedupe, got %d", total)
	}
	forfeits := stats.CountForfeits(data, "br")
	if forfeits[stats.LabelTotalForfeits] != 1 || forfeits[stats.LabelRatingLossForfeits] != 1 {
		t.Errorf("Unexpected forfeit tally: %+v", forfeits.MostCommon())
	}

	rates := stats.BastionOverworldWinRate(data, "br")
	wl := rates[stats.SeedKey{Bastion: "BRIDGE", Overworld: "VILLAGE"}]
	if wl == nil || wl.Wins != 1 || wl.Total != 1 {
		t.Errorf("Expected BRIDGE/VILLAGE 1/1, got %+v", wl)
	}
}
