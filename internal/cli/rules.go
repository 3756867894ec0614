package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/distance/internal/compiler"
	"github.com/roach88/distance/internal/profiles"
	"github.com/roach88/distance/internal/rule"
)

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
	Profiles []string
}

// RuleInfo describes one compiled rule.
type RuleInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Priority    int      `json:"priority"`
	Stratum     int      `json:"stratum"`
	Patterns    []string `json:"patterns"`
	Produces    []string `json:"produces"`
}

// RulesResult lists the rules of a profile selection.
type RulesResult struct {
	Profiles []string                `json:"profiles"`
	Rules    []RuleInfo              `json:"rules"`
	Cycles   []compiler.CycleWarning `json:"cycles"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the rules of the selected profiles",
		Long: `List the compiled rules of the selected profiles in firing order:
stratum first, then priority.

Rules that can feed their own conditions are reported as cycle warnings.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Profiles, "profile", "p", nil, "built-in profile (repeatable; default all)")

	return cmd
}

func runRules(opts *RulesOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	names := opts.Profiles
	if len(names) == 0 {
		names = profiles.Builtin().Names()
	}
	set, err := loadRuleSet(names)
	if err != nil {
		return outputCompileError(formatter, err)
	}

	result := RulesResult{
		Profiles: names,
		Rules:    describeRules(set),
		Cycles:   compiler.AnalyzeCycles(set),
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%d rule(s) from %s\n\n", len(result.Rules), strings.Join(names, ", "))
	fmt.Fprintf(w, "%-7s %-8s %-24s %s\n", "STRATUM", "PRIORITY", "RULE", "PRODUCES")
	for _, r := range result.Rules {
		fmt.Fprintf(w, "%-7d %-8d %-24s %s\n", r.Stratum, r.Priority, r.Name, strings.Join(r.Produces, ", "))
		if formatter.Verbose {
			fmt.Fprintf(w, "        when %s\n", strings.Join(r.Patterns, ", "))
		}
	}
	for _, c := range result.Cycles {
		fmt.Fprintf(w, "\n%s: %s\n", c.Level, c.Message)
	}
	return nil
}

// describeRules lists rules in firing order: stratum ascending, then
// priority descending, then declaration order.
func describeRules(set *rule.Set) []RuleInfo {
	rules := set.Rules()
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Stratum != rules[j].Stratum {
			return rules[i].Stratum < rules[j].Stratum
		}
		return rules[i].Priority > rules[j].Priority
	})

	out := make([]RuleInfo, len(rules))
	for i, r := range rules {
		patterns := make([]string, len(r.Patterns))
		for j, p := range r.Patterns {
			switch p.Kind {
			case rule.KindMatch:
				patterns[j] = p.Var + ":" + p.Type
			case rule.KindNot:
				patterns[j] = "not " + p.Type
			case rule.KindGuard:
				patterns[j] = "guard " + p.Name
			}
		}
		out[i] = RuleInfo{
			Name:        r.Name,
			Description: r.Description,
			Priority:    r.Priority,
			Stratum:     r.Stratum,
			Patterns:    patterns,
			Produces:    append([]string(nil), r.Produces...),
		}
	}
	return out
}
