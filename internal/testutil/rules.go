package testutil

import (
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/rule"
)

// Rules over QuerySource shared by engine, runner, and harness tests.

// AnswerRule pairs a Query with the Response travelling the opposite way
// with the same id.
func AnswerRule() rule.Rule {
	return rule.Rule{
		Name:     "answer",
		Priority: 10,
		Patterns: []rule.Pattern{
			rule.Match("q", "Query"),
			rule.Match("r", "Response",
				rule.Bound("Id", "q", "Id"),
				rule.Bound("Src", "q", "Dst"),
				rule.Bound("Dst", "q", "Src"),
			),
		},
		Produces: []string{"Answer"},
		Action: func(ctx rule.Context) error {
			a, err := ctx.New("Answer", ir.NewRef(ctx.Fact("q")), ir.NewRef(ctx.Fact("r")))
			if err != nil {
				return err
			}
			_, err = ctx.Insert(a)
			return err
		},
	}
}

// UnansweredRule yields Unanswered for a Query no Answer references.
func UnansweredRule() rule.Rule {
	return rule.Rule{
		Name: "unanswered",
		Patterns: []rule.Pattern{
			rule.Match("q", "Query"),
			rule.Not("Answer", rule.Bound("Query", "q", "")),
		},
		Produces: []string{"Unanswered"},
		Action: func(ctx rule.Context) error {
			ev, err := ctx.New("Unanswered", ir.NewRef(ctx.Fact("q")))
			if err != nil {
				return err
			}
			_, err = ctx.Yield(ev)
			return err
		},
	}
}

// FailedRule logs and yields Failed for an Answer with a non-zero rcode.
func FailedRule() rule.Rule {
	return rule.Rule{
		Name:     "failed",
		Priority: 5,
		Patterns: []rule.Pattern{
			rule.Match("a", "Answer", rule.Cmp("Response.Rcode", rule.OpNe, ir.Int(0))),
		},
		Produces: []string{"Failed"},
		Action: func(ctx rule.Context) error {
			a := ctx.Fact("a")
			rcode, _ := a.Lookup("Response.Rcode")
			ctx.Error("query failed with rcode %s", ir.Format(rcode))
			ev, err := ctx.New("Failed", ir.NewRef(a))
			if err != nil {
				return err
			}
			_, err = ctx.Yield(ev)
			return err
		},
	}
}
