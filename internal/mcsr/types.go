package mcsr

import (
	json "github.com/goccy/go-json"
)

// MatchesResponse represents the response from /api/users/{identifier}/matches
type MatchesResponse struct {
	Status string  `json:"status"`
	Data   []Match `json:"data"`
}

// Match is a single ranked match record.
// Fields the API may omit are pointers so reducers can tell "absent" from zero.
type Match struct {
	ID        *int64         `json:"id,omitempty"`
	Type      int            `json:"type"`
	Category  string         `json:"category,omitempty"`
	GameMode  string         `json:"gameMode,omitempty"`
	Forfeited bool           `json:"forfeited"`
	Result    *MatchResult   `json:"result,omitempty"`
	Season    int            `json:"season"`
	Date      int64          `json:"date"`
	Seed      *Seed          `json:"seed,omitempty"`
	Players   []MatchPlayer  `json:"players"`
	Changes   []RatingChange `json:"changes"`

	// raw keeps the record exactly as the API sent it so unknown fields survive a rewrite
	raw []byte
}

type MatchResult struct {
	UUID string `json:"uuid"`
	Time int64  `json:"time"`
}

type Seed struct {
	Bastion   string `json:"bastion"`
	Overworld string `json:"overworld"`
}

type MatchPlayer struct {
	UUID     string `json:"uuid"`
	Nickname string `json:"nickname"`
	Country  string `json:"country"`
}

// RatingChange is a player's elo delta for a match. Change is nil when the API sent null.
type RatingChange struct {
	UUID   string `json:"uuid"`
	Change *int   `json:"change"`
}

type matchAlias Match

// UnmarshalJSON decodes the known fields and remembers the original bytes.
func (m *Match) UnmarshalJSON(data []byte) error {
	var a matchAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = Match(a)
	m.raw = append([]byte(nil), data...)
	return nil
}

// MarshalJSON writes back the original API bytes when available.
func (m Match) MarshalJSON() ([]byte, error) {
	if len(m.raw) > 0 {
		return m.raw, nil
	}
	return json.Marshal(matchAlias(m))
}

// HasID reports whether the record carries an identifier
func (m *Match) HasID() bool {
	return m.ID != nil
}

// PlayerFromCountry returns the first player (list order) with the given country code
func (m *Match) PlayerFromCountry(country string) (MatchPlayer, bool) {
	for _, p := range m.Players {
		if p.Country == country {
			return p, true
		}
	}
	return MatchPlayer{}, false
}

// RatingChangeFor returns the first rating change entry for uuid, in list order.
// The second return is false when no entry exists or the delta is null.
func (m *Match) RatingChangeFor(uuid string) (int, bool) {
	for _, c := range m.Changes {
		if c.UUID != uuid {
			continue
		}
		if c.Change == nil {
			return 0, false
		}
		return *c.Change, true
	}
	return 0, false
}

// WinnerUUID returns the declared winner, or "" when the match has no result
func (m *Match) WinnerUUID() string {
	if m.Result == nil {
		return ""
	}
	return m.Result.UUID
}
