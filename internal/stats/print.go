package stats

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	titleColor = color.New(color.Bold)
	goodColor  = color.New(color.FgGreen)
	evenColor  = color.New(color.FgYellow)
	badColor   = color.New(color.FgRed)
)

// PrintCounter prints a counter as a bullet list, most common first
func PrintCounter(w io.Writer, title string, c Counter) {
	fmt.Fprintf(w, "\n%s\n", title)
	for _, e := range c.MostCommon() {
		fmt.Fprintf(w, "• %s: %d\n", e.Label, e.Count)
	}
}

// rateColor picks green at 50%+, yellow at 45%+, red below
func rateColor(rate float64) *color.Color {
	switch {
	case rate >= 50:
		return goodColor
	case rate >= 45:
		return evenColor
	default:
		return badColor
	}
}

// PrintWinRates prints the win-rate table by descending sample size
func PrintWinRates(w io.Writer, title string, rates WinRates) {
	fmt.Fprintf(w, "\n%s\n", titleColor.Sprint(title))
	for _, row := range rates.Sorted() {
		rate := row.Rate()
		result := rateColor(rate).Sprintf("%d/%d wins (%.1f%%)", row.Wins, row.Total, rate)
		fmt.Fprintf(w, "• %-10s | %-15s → %s\n", row.Bastion, row.Overworld, result)
	}
}

// PrintPlayerForfeits prints the per-player breakdown by descending forfeit count
func PrintPlayerForfeits(w io.Writer, title string, players PlayerForfeits) {
	fmt.Fprintf(w, "\n%s\n", titleColor.Sprint(title))
	for _, p := range players.Sorted() {
		fmt.Fprintf(w, "• %-16s | %4d matches | %3d forfeits (%d lost rating, %d other)\n",
			p.Nickname, p.Matches, p.Forfeits(), p.LossForfeits, p.OtherForfeits)
	}
}
