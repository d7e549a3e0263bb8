package logic

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxGroups caps the group count offered to users.
const MaxGroups = 20

type Group struct {
	ID      int
	Name    string
	Members []string
}

// Labeler returns the default display name of group n (1-based).
type Labeler func(n int) string

// TemplateLabel substitutes the group number for "{n}" in tmpl.
func TemplateLabel(tmpl string) Labeler {
	if !strings.Contains(tmpl, "{n}") {
		tmpl = strings.TrimSpace(tmpl) + " {n}"
	}
	return func(n int) string {
		return strings.ReplaceAll(tmpl, "{n}", strconv.Itoa(n))
	}
}

var DefaultLabel = TemplateLabel("Group {n}")

// MakeGroups shuffles a copy of names and deals them round-robin into count
// groups, so sizes differ by at most one.
func MakeGroups(names []string, count int, rng Rand, label Labeler) ([]Group, error) {
	n := len(names)
	if count < 1 || count > n {
		return nil, fmt.Errorf("%w: %d groups for %d names", ErrInvalidGroupCount, count, n)
	}
	if label == nil {
		label = DefaultLabel
	}
	shuffled := make([]string, n)
	copy(shuffled, names)
	Shuffle(shuffled, rng)

	groups := make([]Group, count)
	for i := range groups {
		groups[i] = Group{
			ID:      i + 1,
			Name:    label(i + 1),
			Members: make([]string, 0, (n+count-1)/count),
		}
	}
	for i, name := range shuffled {
		g := &groups[i%count]
		g.Members = append(g.Members, name)
	}
	return groups, nil
}

// Rename overwrites display names by position. Extra names are ignored,
// blank ones skipped, and membership is untouched.
func Rename(groups []Group, names []string) []Group {
	out := make([]Group, len(groups))
	copy(out, groups)
	for i := range out {
		if i >= len(names) {
			break
		}
		if name := strings.TrimSpace(names[i]); name != "" {
			out[i].Name = name
		}
	}
	return out
}

// GroupCountRange is the [min, max] group count offered for a roster of
// size n. max < min means grouping is not possible.
func GroupCountRange(n int) (int, int) {
	return 2, min(n, MaxGroups)
}
