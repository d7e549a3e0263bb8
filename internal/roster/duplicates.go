package roster

// Report describes duplicate entries of a roster. It is recomputed from the
// roster whenever it changes and owns nothing.
type Report struct {
	Counts     map[string]int
	Total      int
	Distinct   int
	Redundant  int
	Duplicates []string // names seen more than once, first-appearance order
}

func Analyze(names []string) Report {
	rep := Report{Counts: make(map[string]int, len(names)), Total: len(names)}
	for _, n := range names {
		rep.Counts[n]++
		if rep.Counts[n] == 2 {
			rep.Duplicates = append(rep.Duplicates, n)
		}
	}
	rep.Distinct = len(rep.Counts)
	rep.Redundant = rep.Total - rep.Distinct
	return rep
}

func (r Report) IsDuplicate(name string) bool { return r.Counts[name] > 1 }

// RemoveDuplicates keeps the first occurrence of every name.
func RemoveDuplicates(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
