package eligibility

import (
	"sync"

	"fredscafe-rewards/pkg/celengine"

	"github.com/google/cel-go/cel"
)

const expressionUncheckable = "This reward's conditions could not be checked."

var (
	exprOnce   sync.Once
	exprEngine *celengine.Engine
	exprErr    error
)

func expressionEngine() (*celengine.Engine, error) {
	exprOnce.Do(func() {
		exprEngine, exprErr = celengine.New(
			cel.Variable("loyalty_points", cel.IntType),
			cel.Variable("purchases_this_month", cel.IntType),
			cel.Variable("lifetime_spend", cel.DoubleType),
			cel.Variable("membership_tier", cel.StringType),
			cel.Variable("referrals_made", cel.IntType),
			cel.Variable("has_birth_date", cel.BoolType),
			cel.Variable("has_join_date", cel.BoolType),
			cel.Variable("claimed_count", cel.IntType),
		)
	})
	return exprEngine, exprErr
}

func compileExpression(src string) (cel.Program, error) {
	e, err := expressionEngine()
	if err != nil {
		return nil, err
	}
	return e.Compile(src)
}

// ExpressionCriterion is a CEL predicate over the customer profile.
type ExpressionCriterion struct {
	Source  string
	program cel.Program
}

// NewExpressionCriterion compiles src. Compile failures are returned so the
// owning criteria document can be marked unreadable.
func NewExpressionCriterion(src string) (ExpressionCriterion, error) {
	program, err := compileExpression(src)
	if err != nil {
		return ExpressionCriterion{}, err
	}
	return ExpressionCriterion{Source: src, program: program}, nil
}

func (ExpressionCriterion) Family() Family { return FamilyExpression }

func (c ExpressionCriterion) Evaluate(in Input) Result {
	matched, err := c.eval(in.Profile)
	if err != nil {
		return Result{Unmet: expressionUncheckable}
	}
	// A false expression has nothing to explain; the earning hint covers it.
	return Result{Met: matched}
}

func (c ExpressionCriterion) eval(p CustomerProfile) (bool, error) {
	program := c.program
	if program == nil {
		compiled, err := compileExpression(c.Source)
		if err != nil {
			return false, err
		}
		program = compiled
	}

	spend, _ := p.LifetimeSpend.Float64()
	_, hasBirth := p.Birthday()

	return celengine.Evaluate(program, map[string]any{
		"loyalty_points":       p.LoyaltyPoints,
		"purchases_this_month": int64(p.PurchasesThisMonth),
		"lifetime_spend":       spend,
		"membership_tier":      p.MembershipTier,
		"referrals_made":       int64(p.ReferralsMade),
		"has_birth_date":       hasBirth,
		"has_join_date":        p.HasJoinDate(),
		"claimed_count":        int64(len(p.ClaimedRewardIDs)),
	})
}
