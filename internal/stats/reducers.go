package stats

import (
	"sort"

	"mcsr-analyzer/internal/mcsr"
	"mcsr-analyzer/internal/storage"
)

// DefaultCountry is the country code whose players the forfeit and win-rate reducers follow
const DefaultCountry = "br"

// Labels written by the counter reducers
const (
	LabelMatches            = "Matches"
	LabelTotalForfeits      = "Total Forfeits"
	LabelRatingLossForfeits = "Rating-Loss Forfeits"
)

// KnownBastions is the allow-list for the bastion counter
var KnownBastions = map[string]bool{
	"HOUSING":  true,
	"STABLES":  true,
	"TREASURE": true,
	"BRIDGE":   true,
}

// Counter is a label -> count tally
type Counter map[string]int

// Entry is one row of a sorted Counter
type Entry struct {
	Label string
	Count int
}

// MostCommon returns entries by descending count, ties broken by label
func (c Counter) MostCommon() []Entry {
	out := make([]Entry, 0, len(c))
	for label, n := range c {
		out = append(out, Entry{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// SeedKey is the composite (bastion, overworld) key
type SeedKey struct {
	Bastion   string
	Overworld string
}

// WinLoss holds wins over total samples
type WinLoss struct {
	Wins  int
	Total int
}

// Rate returns the win percentage (0 when there are no samples)
func (w WinLoss) Rate() float64 {
	if w.Total == 0 {
		return 0
	}
	return float64(w.Wins) / float64(w.Total) * 100
}

// WinRates maps seed features to the followed player's results
type WinRates map[SeedKey]*WinLoss

// WinRateRow is one row of a sorted WinRates table
type WinRateRow struct {
	SeedKey
	WinLoss
}

// Sorted returns rows by descending sample size, ties broken by bastion then overworld
func (w WinRates) Sorted() []WinRateRow {
	out := make([]WinRateRow, 0, len(w))
	for k, v := range w {
		out = append(out, WinRateRow{SeedKey: k, WinLoss: *v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		if out[i].Bastion != out[j].Bastion {
			return out[i].Bastion < out[j].Bastion
		}
		return out[i].Overworld < out[j].Overworld
	})
	return out
}

// PlayerForfeit is the per-nickname forfeit breakdown
type PlayerForfeit struct {
	Nickname      string
	Matches       int
	LossForfeits  int // forfeits where the player's first rating change was negative
	OtherForfeits int // forfeits without a matching negative change
}

// Forfeits returns the player's total forfeit count
func (p PlayerForfeit) Forfeits() int {
	return p.LossForfeits + p.OtherForfeits
}

// PlayerForfeits maps nickname -> breakdown
type PlayerForfeits map[string]*PlayerForfeit

// Sorted returns rows by descending forfeit count, then matches played, then nickname
func (p PlayerForfeits) Sorted() []PlayerForfeit {
	out := make([]PlayerForfeit, 0, len(p))
	for _, v := range p {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Forfeits() != out[j].Forfeits() {
			return out[i].Forfeits() > out[j].Forfeits()
		}
		if out[i].Matches != out[j].Matches {
			return out[i].Matches > out[j].Matches
		}
		return out[i].Nickname < out[j].Nickname
	})
	return out
}

// CountBastions counts matches whose bastion is one of the four known types
func CountBastions(data *storage.Collection) Counter {
	counter := Counter{}
	data.EachMatch(func(_ string, m *mcsr.Match) {
		if m.Seed == nil {
			return
		}
		if KnownBastions[m.Seed.Bastion] {
			counter[m.Seed.Bastion]++
		}
	})
	return counter
}

// CountOverworlds counts matches by any non-empty overworld label
func CountOverworlds(data *storage.Collection) Counter {
	counter := Counter{}
	data.EachMatch(func(_ string, m *mcsr.Match) {
		if m.Seed == nil || m.Seed.Overworld == "" {
			return
		}
		counter[m.Seed.Overworld]++
	})
	return counter
}

// CountMatches counts every stored match across all users
func CountMatches(data *storage.Collection) Counter {
	counter := Counter{}
	data.EachMatch(func(_ string, _ *mcsr.Match) {
		counter[LabelMatches]++
	})
	return counter
}

// lostRating reports whether uuid's first rating change entry is negative
func lostRating(m *mcsr.Match, uuid string) bool {
	delta, ok := m.RatingChangeFor(uuid)
	return ok && delta < 0
}

// CountForfeits tallies forfeited matches involving a player from country,
// and how many of those cost that player rating
func CountForfeits(data *storage.Collection, country string) Counter {
	counter := Counter{}
	data.EachMatch(func(_ string, m *mcsr.Match) {
		if !m.Forfeited {
			return
		}
		player, ok := m.PlayerFromCountry(country)
		if !ok {
			return
		}
		counter[LabelTotalForfeits]++
		if lostRating(m, player.UUID) {
			counter[LabelRatingLossForfeits]++
		}
	})
	return counter
}

// PlayerForfeitBreakdown tallies, per nickname of the country's player,
// matches played and forfeits split by whether rating was lost
func PlayerForfeitBreakdown(data *storage.Collection, country string) PlayerForfeits {
	out := PlayerForfeits{}
	data.EachMatch(func(_ string, m *mcsr.Match) {
		player, ok := m.PlayerFromCountry(country)
		if !ok || player.Nickname == "" {
			return
		}

		row, ok := out[player.Nickname]
		if !ok {
			row = &PlayerForfeit{Nickname: player.Nickname}
			out[player.Nickname] = row
		}
		row.Matches++

		if !m.Forfeited {
			return
		}
		if lostRating(m, player.UUID) {
			row.LossForfeits++
		} else {
			row.OtherForfeits++
		}
	})
	return out
}

// BastionOverworldWinRate tallies the country player's wins per (bastion, overworld) pair
func BastionOverworldWinRate(data *storage.Collection, country string) WinRates {
	stats := WinRates{}
	data.EachMatch(func(_ string, m *mcsr.Match) {
		if m.Seed == nil || m.Seed.Bastion == "" || m.Seed.Overworld == "" {
			return
		}
		player, ok := m.PlayerFromCountry(country)
		if !ok {
			return
		}

		key := SeedKey{Bastion: m.Seed.Bastion, Overworld: m.Seed.Overworld}
		wl, ok := stats[key]
		if !ok {
			wl = &WinLoss{}
			stats[key] = wl
		}
		wl.Total++
		if winner := m.WinnerUUID(); winner != "" && winner == player.UUID {
			wl.Wins++
		}
	})
	return stats
}
