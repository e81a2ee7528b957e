package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mcsr-analyzer/internal/mcsr"
)

// Fetcher is the part of the API client the run loop needs
type Fetcher interface {
	FetchUserMatches(ctx context.Context, identifier string, p mcsr.FetchParams) (*mcsr.MatchesResponse, error)
}

// UserResult is the outcome for one username
type UserResult struct {
	Username string
	Fetched  int
	Added    int
	Err      error
}

// RunSummary describes a finished (or interrupted) run
type RunSummary struct {
	Users       []UserResult
	Interrupted bool
	Duration    time.Duration
}

// TotalAdded sums added matches over all users
func (s *RunSummary) TotalAdded() int {
	total := 0
	for _, u := range s.Users {
		total += u.Added
	}
	return total
}

// FailedUsers lists usernames whose fetch or persist failed
func (s *RunSummary) FailedUsers() []string {
	var failed []string
	for _, u := range s.Users {
		if u.Err != nil {
			failed = append(failed, u.Username)
		}
	}
	return failed
}

// Runner fetches every username in order and hands results to a Persister
type Runner struct {
	fetcher   Fetcher
	persister Persister
	params    mcsr.FetchParams
}

// NewRunner creates a run loop
func NewRunner(fetcher Fetcher, persister Persister, params mcsr.FetchParams) *Runner {
	return &Runner{
		fetcher:   fetcher,
		persister: persister,
		params:    params,
	}
}

// Run processes usernames sequentially. A failed user is logged and skipped.
// Cancelling ctx stops the loop before the next user; what was fetched is still flushed.
func (r *Runner) Run(ctx context.Context, usernames []string) (*RunSummary, error) {
	startTime := time.Now()
	summary := &RunSummary{}

	for i, username := range usernames {
		select {
		case <-ctx.Done():
			log.Printf("[Collector] Stopping before %s (%d/%d)", username, i+1, len(usernames))
			summary.Interrupted = true
		default:
		}
		if summary.Interrupted {
			break
		}

		fmt.Printf("[%d/%d] [%s elapsed] Fetching %s...\n", i+1, len(usernames), formatDuration(time.Since(startTime)), username)

		result := r.runUser(ctx, username)
		if errors.Is(result.Err, context.Canceled) {
			summary.Interrupted = true
			break
		}
		summary.Users = append(summary.Users, result)
	}

	// Flush with a fresh context so an interrupt still saves what was fetched
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := r.persister.Flush(flushCtx); err != nil {
		return summary, fmt.Errorf("failed to persist results: %w", err)
	}

	summary.Duration = time.Since(startTime)
	return summary, nil
}

func (r *Runner) runUser(ctx context.Context, username string) UserResult {
	result := UserResult{Username: username}

	resp, err := r.fetcher.FetchUserMatches(ctx, username, r.params)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("[Collector] Failed to fetch %s: %v", username, err)
		}
		result.Err = err
		return result
	}
	result.Fetched = len(resp.Data)

	added, err := r.persister.Persist(ctx, username, resp.Data)
	result.Added = added
	if err != nil {
		log.Printf("[Collector] Failed to persist %s: %v", username, err)
		result.Err = err
		return result
	}

	fmt.Printf("  %s: %d matches fetched, %d added\n", username, result.Fetched, result.Added)
	return result
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%02dm%02ds", hours, mins, secs)
}
