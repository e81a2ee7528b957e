package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

const (
	// Colors for Discord embeds
	colorRed    = 15158332 // 0xE74C3C - some users failed
	colorGreen  = 5763719  // 0x57F287 - clean run
	colorYellow = 16776960 // 0xFFFF00 - duplicates removed

	// Default timeout for webhook requests
	defaultWebhookTimeout = 10 * time.Second

	// Max retries for rate limiting
	maxRetries = 3

	// Discord rejects field values over 1024 characters
	maxFieldLength = 1024
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// FetchSummary is what a fetch run reports
type FetchSummary struct {
	Store       string
	Users       int
	Added       int
	FailedUsers []string
	Runtime     time.Duration
}

// NewFetchSummaryPayload creates a payload for the end of a fetch run
func NewFetchSummaryPayload(s FetchSummary) WebhookPayload {
	color := colorGreen
	failed := "none"
	if len(s.FailedUsers) > 0 {
		color = colorRed
		failed = truncate(strings.Join(s.FailedUsers, ", "), maxFieldLength)
	}

	return WebhookPayload{
		Embeds: []Embed{
			{
				Title: "📥 Match Fetch Complete",
				Color: color,
				Fields: []EmbedField{
					{Name: "Store", Value: s.Store, Inline: true},
					{Name: "Users", Value: formatNumber(s.Users), Inline: true},
					{Name: "Matches Added", Value: formatNumber(s.Added), Inline: true},
					{Name: "Runtime", Value: formatDuration(s.Runtime), Inline: true},
					{Name: "Failed Users", Value: failed},
				},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		},
	}
}

// NewDedupeSummaryPayload creates a payload for the end of a dedupe pass
func NewDedupeSummaryPayload(scanned, removed int) WebhookPayload {
	color := colorGreen
	if removed > 0 {
		color = colorYellow
	}

	return WebhookPayload{
		Embeds: []Embed{
			{
				Title: "🧹 Duplicate Cleanup Complete",
				Color: color,
				Fields: []EmbedField{
					{Name: "Scanned", Value: formatNumber(scanned), Inline: true},
					{Name: "Removed", Value: formatNumber(removed), Inline: true},
					{Name: "Kept", Value: formatNumber(scanned - removed), Inline: true},
				},
				Footer: &EmbedFooter{
					Text: "First occurrence of each match id kept",
				},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		},
	}
}

// WebhookClient sends notifications to Discord webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

// SendFetchSummary posts a fetch run summary
func (c *WebhookClient) SendFetchSummary(ctx context.Context, s FetchSummary) error {
	return c.sendPayload(ctx, NewFetchSummaryPayload(s))
}

// SendDedupeSummary posts a dedupe pass summary
func (c *WebhookClient) SendDedupeSummary(ctx context.Context, scanned, removed int) error {
	return c.sendPayload(ctx, NewDedupeSummaryPayload(scanned, removed))
}

// sendPayload sends a webhook payload with retry on rate limiting
func (c *WebhookClient) sendPayload(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Success - Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		// Rate limited - wait and retry
		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := time.Second
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					waitDuration = time.Duration(seconds) * time.Second
				}
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := strconv.Itoa(n)
	if n < 1000 {
		return s
	}

	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatDuration formats a duration as "Xm Ys"
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// truncate cuts s to at most n bytes on a rune boundary
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
