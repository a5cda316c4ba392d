package eligibility

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Family orders criterion variants. Aggregated messages follow this order.
type Family int

const (
	FamilyPoints Family = iota
	FamilyPurchase
	FamilyCalendar
	FamilyMembership
	FamilyReferral
	FamilySignup
	FamilyTimeWindow
	FamilyProduct
	FamilyExpression
)

func (f Family) String() string {
	switch f {
	case FamilyPoints:
		return "points"
	case FamilyPurchase:
		return "purchase"
	case FamilyCalendar:
		return "calendar"
	case FamilyMembership:
		return "membership"
	case FamilyReferral:
		return "referral"
	case FamilySignup:
		return "signup"
	case FamilyTimeWindow:
		return "time_window"
	case FamilyProduct:
		return "product"
	case FamilyExpression:
		return "expression"
	default:
		return "unknown"
	}
}

// Input is what every criterion is evaluated against. Now is already in the
// cafe's local time zone.
type Input struct {
	Profile CustomerProfile
	Now     time.Time
}

type Result struct {
	Met      bool
	Unmet    string
	Progress string
}

// Criterion is one family's predicate. Implementations must be pure.
type Criterion interface {
	Family() Family
	Evaluate(in Input) Result
}

type PointsCriterion struct {
	MinPoints int64
}

func (PointsCriterion) Family() Family { return FamilyPoints }

func (c PointsCriterion) Evaluate(in Input) Result {
	have := in.Profile.LoyaltyPoints
	if have >= c.MinPoints {
		return Result{Met: true, Progress: fmt.Sprintf("Points: %d/%d.", have, c.MinPoints)}
	}
	return Result{Unmet: fmt.Sprintf("Need %d more points (%d/%d).", c.MinPoints-have, have, c.MinPoints)}
}

// PurchaseCriterion checks purchase history. MinSpend and
// MinSpendPerTransaction need the order being placed, so they are reported
// but left to the server.
type PurchaseCriterion struct {
	MinPurchasesMonthly    *int
	MinSpendPerTransaction *decimal.Decimal
	CumulativeSpendTotal   *decimal.Decimal
	MinSpend               *decimal.Decimal
}

func (PurchaseCriterion) Family() Family { return FamilyPurchase }

func (c PurchaseCriterion) Evaluate(in Input) Result {
	var acc accumulator

	if c.MinPurchasesMonthly != nil {
		need, have := *c.MinPurchasesMonthly, in.Profile.PurchasesThisMonth
		if have >= need {
			acc.progress(fmt.Sprintf("Purchases this month: %d/%d.", have, need))
		} else {
			acc.unmet(fmt.Sprintf("Make %d more %s this month (%d/%d).", need-have, plural(need-have, "purchase", "purchases"), have, need))
		}
	}

	if c.MinSpendPerTransaction != nil {
		acc.progress(fmt.Sprintf("Minimum single purchase of %s (check required).", money(*c.MinSpendPerTransaction)))
	}

	if c.CumulativeSpendTotal != nil {
		need, have := *c.CumulativeSpendTotal, in.Profile.LifetimeSpend
		if have.GreaterThanOrEqual(need) {
			acc.progress(fmt.Sprintf("Total spend: %s/%s.", money(have), money(need)))
		} else {
			acc.unmet(fmt.Sprintf("Spend %s more in total (%s/%s).", money(need.Sub(have)), money(have), money(need)))
		}
	}

	if c.MinSpend != nil {
		acc.progress(fmt.Sprintf("Minimum spend of %s (check required).", money(*c.MinSpend)))
	}

	return acc.result()
}

// CalendarCriterion restricts a reward to the customer's birthday or birth
// month and/or to an inclusive date range. StartDate and EndDate are
// YYYY-MM-DD and compared as strings against today.
type CalendarCriterion struct {
	BirthdayOnly   bool
	BirthMonthOnly bool
	StartDate      string
	EndDate        string
}

func (CalendarCriterion) Family() Family { return FamilyCalendar }

func (c CalendarCriterion) Evaluate(in Input) Result {
	var acc accumulator

	if c.BirthdayOnly || c.BirthMonthOnly {
		birth, ok := in.Profile.Birthday()
		switch {
		case !ok:
			acc.unmet("Add your birth date to your profile to unlock birthday rewards.")
		case c.BirthdayOnly:
			if birth.Month() == in.Now.Month() && birth.Day() == in.Now.Day() {
				acc.progress("Happy birthday!")
			} else {
				acc.unmet("Only available on your birthday.")
			}
		default:
			if birth.Month() == in.Now.Month() {
				acc.progress("Happy birthday month!")
			} else {
				acc.unmet("Only available during your birth month.")
			}
		}
	}

	today := in.Now.Format(time.DateOnly)
	if c.StartDate != "" && today < c.StartDate {
		acc.unmet(fmt.Sprintf("Available from %s.", c.StartDate))
	}
	if c.EndDate != "" && today > c.EndDate {
		acc.unmet(fmt.Sprintf("Offer ended on %s.", c.EndDate))
	}

	return acc.result()
}

type MembershipCriterion struct {
	Tiers []string
}

func (MembershipCriterion) Family() Family { return FamilyMembership }

func (c MembershipCriterion) Evaluate(in Input) Result {
	if len(c.Tiers) == 0 {
		return Result{Met: true}
	}

	tier := strings.TrimSpace(in.Profile.MembershipTier)
	if tier != "" {
		for _, allowed := range c.Tiers {
			if strings.EqualFold(allowed, tier) {
				return Result{Met: true}
			}
		}
	}

	return Result{Unmet: fmt.Sprintf("Requires membership tier: %s.", strings.Join(c.Tiers, ", "))}
}

// ReferralCriterion checks the referral count. The bonus flags only describe
// the reward and are not checked.
type ReferralCriterion struct {
	MinReferrals  *int
	NewUserBonus  bool
	ReferrerBonus bool
}

func (ReferralCriterion) Family() Family { return FamilyReferral }

func (c ReferralCriterion) Evaluate(in Input) Result {
	if c.MinReferrals == nil {
		return Result{Met: true}
	}

	need, have := *c.MinReferrals, in.Profile.ReferralsMade
	if have >= need {
		return Result{Met: true, Progress: fmt.Sprintf("Referrals: %d/%d.", have, need)}
	}
	return Result{Unmet: fmt.Sprintf("Refer %d more %s (%d/%d).", need-have, plural(need-have, "friend", "friends"), have, need)}
}

// SignupCriterion uses the presence of a join date as a proxy for a new
// signup. It does not check how recent the join date is.
type SignupCriterion struct{}

func (SignupCriterion) Family() Family { return FamilySignup }

func (SignupCriterion) Evaluate(in Input) Result {
	if in.Profile.HasJoinDate() {
		return Result{Met: true, Progress: "Sign-up bonus."}
	}
	return Result{Unmet: "Available to newly registered members only."}
}

// TimeWindow is an "HH:MM"-"HH:MM" range on a set of weekdays. An empty Days
// set means every day. End before Start wraps past midnight.
type TimeWindow struct {
	Start string
	End   string
	Days  []time.Weekday
}

func (w TimeWindow) contains(now time.Time) bool {
	if len(w.Days) > 0 {
		found := false
		for _, d := range w.Days {
			if d == now.Weekday() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	start, ok := clockMinutes(w.Start)
	if !ok {
		return false
	}
	end, ok := clockMinutes(w.End)
	if !ok {
		return false
	}
	current := now.Hour()*60 + now.Minute()

	if start <= end {
		return current >= start && current <= end
	}
	return current >= start || current <= end
}

func (w TimeWindow) String() string {
	span := w.Start + "-" + w.End
	if len(w.Days) == 0 || len(w.Days) == 7 {
		return "daily " + span
	}
	days := make([]string, 0, len(w.Days))
	for _, d := range w.Days {
		days = append(days, d.String()[:3])
	}
	return strings.Join(days, ", ") + " " + span
}

type TimeWindowCriterion struct {
	Windows []TimeWindow
}

func (TimeWindowCriterion) Family() Family { return FamilyTimeWindow }

func (c TimeWindowCriterion) Evaluate(in Input) Result {
	if len(c.Windows) == 0 {
		return Result{Met: true}
	}

	for _, w := range c.Windows {
		if w.contains(in.Now) {
			return Result{Met: true}
		}
	}

	described := make([]string, 0, len(c.Windows))
	for _, w := range c.Windows {
		described = append(described, w.String())
	}
	return Result{Unmet: fmt.Sprintf("Available only %s.", strings.Join(described, "; "))}
}

// ProductCriterion restricts what is in the order. The cart is not visible
// here, so it is always met and only annotated.
type ProductCriterion struct {
	RequiredProductIDs []string
	ExcludedProductIDs []string
	RequiredCategory   string
	ExactProductIDs    []string
}

func (ProductCriterion) Family() Family { return FamilyProduct }

func (c ProductCriterion) Evaluate(Input) Result {
	var acc accumulator
	if len(c.RequiredProductIDs) > 0 {
		acc.progress("Requires specific products (check needed).")
	}
	if len(c.ExcludedProductIDs) > 0 {
		acc.progress("Some products are excluded (check needed).")
	}
	if c.RequiredCategory != "" {
		acc.progress(fmt.Sprintf("Requires a product from %s (check needed).", c.RequiredCategory))
	}
	if len(c.ExactProductIDs) > 0 {
		acc.progress("Requires exactly the listed products (check needed).")
	}
	return acc.result()
}

type accumulator struct {
	failed bool
	unmets []string
	notes  []string
}

func (a *accumulator) unmet(msg string) {
	a.failed = true
	a.unmets = append(a.unmets, msg)
}

func (a *accumulator) progress(msg string) {
	a.notes = append(a.notes, msg)
}

func (a *accumulator) result() Result {
	return Result{
		Met:      !a.failed,
		Unmet:    strings.Join(a.unmets, " "),
		Progress: strings.Join(a.notes, " "),
	}
}

func clockMinutes(s string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
