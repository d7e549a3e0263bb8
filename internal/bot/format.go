package bot

import (
	"fmt"
	"strings"

	"hrtoolkit/internal/db"
	"hrtoolkit/internal/logic"
	"hrtoolkit/internal/messages"
	"hrtoolkit/internal/roster"
)

// rosterPreview is how many names /roster prints before summarizing.
const rosterPreview = 50

func formatRoster(names []string) string {
	if len(names) == 0 {
		return messages.RosterEmpty
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, messages.RosterSize, len(names))
	for i, n := range names {
		if i == rosterPreview {
			fmt.Fprintf(&sb, "\n... and %d more", len(names)-rosterPreview)
			break
		}
		fmt.Fprintf(&sb, "\n%d. %s", i+1, n)
	}
	return sb.String()
}

func formatStats(rep roster.Report) string {
	if rep.Total == 0 {
		return messages.RosterEmpty
	}
	text := fmt.Sprintf(messages.RosterSize, rep.Total)
	if rep.Redundant == 0 {
		return text + " " + messages.RosterNoDupes
	}
	dups := make([]string, len(rep.Duplicates))
	for i, d := range rep.Duplicates {
		dups[i] = fmt.Sprintf("%s ×%d", d, rep.Counts[d])
	}
	return text + "\n" + fmt.Sprintf(messages.RosterDuplicate, rep.Redundant, strings.Join(dups, ", "))
}

// formatHistory numbers winners in draw order while listing the latest first.
func formatHistory(history []string) string {
	if len(history) == 0 {
		return messages.DrawNoHistory
	}
	lines := make([]string, len(history))
	for i, w := range history {
		lines[i] = fmt.Sprintf("%d. %s", len(history)-i, w)
	}
	return fmt.Sprintf(messages.DrawHistory, strings.Join(lines, "\n"))
}

func formatGroups(header string, groups []logic.Group) string {
	var sb strings.Builder
	sb.WriteString(header)
	for _, g := range groups {
		fmt.Fprintf(&sb, "\n%s (%d): %s", g.Name, len(g.Members), strings.Join(g.Members, ", "))
	}
	return sb.String()
}

func formatWins(wins []db.Win) string {
	if len(wins) == 0 {
		return messages.WinnersNone
	}
	lines := make([]string, len(wins))
	for i, w := range wins {
		mode := ""
		if w.Repeat {
			mode = " (repeat)"
		}
		lines[i] = fmt.Sprintf("%s %s%s", w.DrawnAt.Format("2006-01-02 15:04"), w.Winner, mode)
	}
	return fmt.Sprintf(messages.WinnersList, strings.Join(lines, "\n"))
}
