package stats

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"mcsr-analyzer/internal/storage"
)

// ErrUnknownStat is returned when a query matches no registered stat
var ErrUnknownStat = errors.New("unknown stat")

// Stat is a named reducer together with how it is presented
type Stat struct {
	Name    string
	Aliases []string
	Print   func(w io.Writer, data *storage.Collection)
}

// Registry returns every stat in presentation order. Reducers that follow a player
// use the given country code.
func Registry(country string) []Stat {
	winRateTitle := fmt.Sprintf("Winrate by Bastion and Overworld (%s)", strings.ToUpper(country))

	return []Stat{
		{
			Name: "Bastions Count",
			Print: func(w io.Writer, data *storage.Collection) {
				PrintCounter(w, "Bastions Count", CountBastions(data))
			},
		},
		{
			Name: "Overworlds Counts",
			Print: func(w io.Writer, data *storage.Collection) {
				PrintCounter(w, "Overworlds Counts", CountOverworlds(data))
			},
		},
		{
			Name: "All Matches",
			Print: func(w io.Writer, data *storage.Collection) {
				PrintCounter(w, "All Matches", CountMatches(data))
			},
		},
		{
			Name: "Forfeits",
			Print: func(w io.Writer, data *storage.Collection) {
				PrintCounter(w, "Forfeits", CountForfeits(data, country))
			},
		},
		{
			Name:    "Forfeits by Player",
			Aliases: []string{"forfeits_by_player", "player_forfeits"},
			Print: func(w io.Writer, data *storage.Collection) {
				PrintPlayerForfeits(w, "Forfeits by Player", PlayerForfeitBreakdown(data, country))
			},
		},
		{
			Name:    "Winrate by Bastion and Overworld",
			Aliases: []string{"winrate", "bastion_winrate"},
			Print: func(w io.Writer, data *storage.Collection) {
				PrintWinRates(w, winRateTitle, BastionOverworldWinRate(data, country))
			},
		},
	}
}

// Select resolves a --stat query: "all", an alias, a full name, or a
// case-insensitive fragment of a name (first registered match wins)
func Select(registry []Stat, query string) ([]Stat, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || q == "all" {
		return registry, nil
	}

	for _, s := range registry {
		if strings.ToLower(s.Name) == q {
			return []Stat{s}, nil
		}
		for _, alias := range s.Aliases {
			if alias == q {
				return []Stat{s}, nil
			}
		}
	}

	for _, s := range registry {
		if strings.Contains(strings.ToLower(s.Name), q) {
			return []Stat{s}, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownStat, query)
}

// Options lists what Select accepts, for the unknown-stat message
func Options(registry []Stat) []string {
	var out []string
	for _, s := range registry {
		out = append(out, s.Name)
		out = append(out, s.Aliases...)
	}
	return out
}

// Run prints every selected stat over the same dataset
func Run(w io.Writer, selected []Stat, data *storage.Collection) {
	for _, s := range selected {
		s.Print(w, data)
	}
}
