package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"hrtoolkit/internal/logic"
)

// BOM lets spreadsheet tools detect UTF-8.
const BOM = "\ufeff"

var header = []string{"GroupName", "MemberName"}

// WriteCSV writes one row per group member. Fields holding a comma are
// quoted.
func WriteCSV(w io.Writer, groups []logic.Group) error {
	if _, err := io.WriteString(w, BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, g := range groups {
		for _, m := range g.Members {
			if err := cw.Write([]string{g.Name, m}); err != nil {
				return fmt.Errorf("write row for group %d: %w", g.ID, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName is the download name for an export made at now.
func FileName(now time.Time) string {
	return "groups_" + now.Format("2006-01-02") + ".csv"
}
