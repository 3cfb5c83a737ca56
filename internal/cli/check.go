package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/couchcryptid/notable-obs-filter/internal/domain"
	"github.com/spf13/cobra"
)

// leapYear is used to validate day bounds so that February 29 is allowed.
const leapYear = 2024

// ErrCheckFailed is returned when at least one check phase fails.
var ErrCheckFailed = errors.New("rules check failed")

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect a rules file",
	}
	cmd.AddCommand(newCheckCommand(rootOpts))
	return cmd
}

func newCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var rulesPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a rules file and report its contents",
		Long: `Parse a rules file and run integrity checks over it: day bounds must
exist in their month, region vertices must be valid coordinates, and the
file must define at least one rule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, err := loadEnv(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			logger.Debug("checking rules", "path", rulesPath)
			return runCheck(cmd.OutOrStdout(), rulesPath)
		},
	}
	cmd.Flags().StringVarP(&rulesPath, "rules", "r", "", "rules CSV file")
	_ = cmd.MarkFlagRequired("rules")
	return cmd
}

// phase tracks pass/fail for a check phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func runCheck(w io.Writer, path string) error {
	fmt.Fprintln(w, "=== Rules Check ===")
	fmt.Fprintln(w)

	parse := &phase{name: "Parse rules file"}
	index, err := domain.LoadRules(path)
	if err != nil {
		parse.errorf("%v", err)
		return report(w, index, []*phase{parse})
	}

	var rules []domain.Rule
	for _, species := range index.Species() {
		rules = append(rules, index.Rules(species)...)
	}

	return report(w, index, []*phase{
		parse,
		checkDateBounds(rules),
		checkRegions(rules),
		checkSummary(index),
	})
}

func checkDateBounds(rules []domain.Rule) *phase {
	p := &phase{name: "Date bounds"}
	for _, r := range rules {
		checkDay(p, r, "start", r.Window.StartMonth, r.Window.StartDay)
		checkDay(p, r, "end", r.Window.EndMonth, r.Window.EndDay)
	}
	return p
}

func checkDay(p *phase, r domain.Rule, bound string, month, day int) {
	switch {
	case day == 0:
	case month == 0:
		p.errorf("line %d (%s): %s day %d has no %s month", r.Line, r.Species, bound, day, bound)
	case day > domain.DaysIn(time.Month(month), leapYear):
		p.errorf("line %d (%s): %s day %d does not exist in %s", r.Line, r.Species, bound, day, time.Month(month))
	}
}

func checkRegions(rules []domain.Rule) *phase {
	p := &phase{name: "Region geometry"}
	for _, r := range rules {
		if r.Region == nil {
			continue
		}
		for i, v := range r.Region.Vertices() {
			lat, lon := v[0], v[1]
			if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
				p.errorf("line %d (%s): vertex %d (%g, %g) is not a valid latitude/longitude", r.Line, r.Species, i+1, lat, lon)
			}
		}
	}
	return p
}

func checkSummary(index *domain.RuleIndex) *phase {
	p := &phase{name: "Species summary"}
	if index.Len() == 0 {
		p.errorf("no rules defined")
	}
	return p
}

func report(w io.Writer, index *domain.RuleIndex, phases []*phase) error {
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-24s %s\n", p.name, status)
	}

	if index != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Rules: %d across %d species\n", index.Len(), index.SpeciesCount())
		for _, species := range index.Species() {
			fmt.Fprintf(w, "  %-32s %d\n", species, len(index.Rules(species)))
		}
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll checks passed.")
		return nil
	}
	fmt.Fprintln(w, "\nCheck FAILED.")
	return ErrCheckFailed
}
