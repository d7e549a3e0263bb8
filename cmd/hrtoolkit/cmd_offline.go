package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"hrtoolkit/internal/export"
	"hrtoolkit/internal/logic"
	"hrtoolkit/internal/naming"
	"hrtoolkit/internal/roster"

	"github.com/spf13/cobra"
)

var (
	dedupeFlag bool
	drawCount  int
	drawRepeat bool
	drawSpin   bool
	groupCount int
	groupAI    bool
	groupCSV   string
)

var rosterCmd = &cobra.Command{
	Use:   "roster [file]",
	Short: "Show the size and duplicates of a participant list",
	Long: `Reads names from a .csv/.txt file or stdin ("-" or no argument).
Names are separated by newlines or commas.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRoster,
}

var drawCmd = &cobra.Command{
	Use:   "draw [file]",
	Short: "Draw winners from a participant list",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDraw,
}

var groupCmd = &cobra.Command{
	Use:   "group [file]",
	Short: "Split a participant list into balanced random groups",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGroup,
}

func init() {
	rosterCmd.Flags().BoolVar(&dedupeFlag, "dedupe", false, "Print the list without duplicates")

	drawCmd.Flags().IntVarP(&drawCount, "count", "n", 1, "Number of winners")
	drawCmd.Flags().BoolVar(&drawRepeat, "repeat", false, "Allow the same name to win again")
	drawCmd.Flags().BoolVar(&drawSpin, "spin", false, "Show the spin before each winner")

	groupCmd.Flags().IntVarP(&groupCount, "groups", "g", 2, "Number of groups")
	groupCmd.Flags().BoolVar(&groupAI, "ai", false, "Ask the naming service for group names")
	groupCmd.Flags().StringVar(&groupCSV, "csv", "", `Write the groups as CSV to this path ("-" for stdout)`)
}

func readNames(cmd *cobra.Command, args []string) ([]string, error) {
	if len(args) == 0 || args[0] == "-" {
		return roster.ParseFile(cmd.InOrStdin())
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", roster.ErrFileRead, err)
	}
	defer f.Close()
	return roster.ParseFile(f)
}

func runRoster(cmd *cobra.Command, args []string) error {
	names, err := readNames(cmd, args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if dedupeFlag {
		fmt.Fprintln(out, roster.Join(roster.RemoveDuplicates(names)))
		return nil
	}
	rep := roster.Analyze(names)
	fmt.Fprintf(out, "total: %d\ndistinct: %d\n", rep.Total, rep.Distinct)
	for _, d := range rep.Duplicates {
		fmt.Fprintf(out, "duplicate: %s x%d\n", d, rep.Counts[d])
	}
	return nil
}

func runDraw(cmd *cobra.Command, args []string) error {
	names, err := readNames(cmd, args)
	if err != nil {
		return err
	}
	d := logic.NewDraw(names, newRand())
	if err := d.SetRepeat(drawRepeat); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for i := 1; i <= drawCount; i++ {
		var winner string
		if drawSpin {
			winner, err = spin(cmd.Context(), d, out)
		} else {
			winner, err = d.Pick()
		}
		if errors.Is(err, logic.ErrEmptyPool) {
			fmt.Fprintln(out, "no names remaining")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d. %s\n", i, winner)
	}
	return nil
}

// spin runs one cosmetic spin on the terminal and returns its winner.
func spin(ctx context.Context, d *logic.Draw, out io.Writer) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	type result struct {
		winner string
		err    error
	}
	done := make(chan result, 1)
	err := d.Spin(ctx, spinConfig(),
		func(sample []string) { fmt.Fprintf(out, "\r%v", sample) },
		func(winner string, err error) { done <- result{winner, err} })
	if err != nil {
		return "", err
	}
	res := <-done
	fmt.Fprint(out, "\r")
	return res.winner, res.err
}

func runGroup(cmd *cobra.Command, args []string) error {
	names, err := readNames(cmd, args)
	if err != nil {
		return err
	}
	lo, hi := logic.GroupCountRange(len(names))
	if hi < lo {
		return fmt.Errorf("at least %d participants are needed, got %d", lo, len(names))
	}
	if groupCount < lo || groupCount > hi {
		return fmt.Errorf("--groups must be between %d and %d, got %d", lo, hi, groupCount)
	}
	groups, err := logic.MakeGroups(names, groupCount, newRand(), logic.TemplateLabel(cfg.GroupNameTemplate))
	if err != nil {
		return err
	}
	if groupAI {
		groups = nameGroups(cmd.Context(), groups)
	}

	out := cmd.OutOrStdout()
	if groupCSV == "-" {
		return export.WriteCSV(out, groups)
	}
	for _, g := range groups {
		fmt.Fprintf(out, "%s (%d)\n", g.Name, len(g.Members))
		for _, m := range g.Members {
			fmt.Fprintf(out, "  %s\n", m)
		}
	}
	if groupCSV == "" {
		return nil
	}
	f, err := os.Create(groupCSV)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(f, groups); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func nameGroups(ctx context.Context, groups []logic.Group) []logic.Group {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, keeping default group names")
		return groups
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.NamingTimeout)
	defer cancel()
	namer, err := naming.NewGenAI(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return naming.Apply(groups, naming.Failed(err), logger)
	}
	return naming.Apply(groups, namer.Suggest(ctx, len(groups)), logger)
}
