package eligibility

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var ErrUnparseableCriteria = errors.New("unparseable reward criteria")

type timeWindowDocument struct {
	StartTime  string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime    string `json:"endTime" validate:"required,datetime=15:04"`
	DaysOfWeek []int  `json:"daysOfWeek,omitempty" validate:"dive,min=0,max=6"`
}

// criteriaDocument is the flat wire form of a reward's criteria.
type criteriaDocument struct {
	MinPoints *int64 `json:"minPoints,omitempty" validate:"omitempty,gte=0"`

	MinPurchasesMonthly    *int             `json:"minPurchasesMonthly,omitempty" validate:"omitempty,gte=0"`
	MinSpend               *decimal.Decimal `json:"minSpend,omitempty"`
	MinSpendPerTransaction *decimal.Decimal `json:"minSpendPerTransaction,omitempty"`
	CumulativeSpendTotal   *decimal.Decimal `json:"cumulativeSpendTotal,omitempty"`

	IsBirthdayOnly   bool   `json:"isBirthdayOnly,omitempty"`
	IsBirthMonthOnly bool   `json:"isBirthMonthOnly,omitempty"`
	StartDate        string `json:"startDate,omitempty" validate:"omitempty,isodate"`
	EndDate          string `json:"endDate,omitempty" validate:"omitempty,isodate"`

	AllowedMembershipTiers []string `json:"allowedMembershipTiers,omitempty" validate:"dive,required"`

	MinReferrals               *int `json:"minReferrals,omitempty" validate:"omitempty,gte=0"`
	IsReferralBonusForNewUser  bool `json:"isReferralBonusForNewUser,omitempty"`
	IsReferralBonusForReferrer bool `json:"isReferralBonusForReferrer,omitempty"`

	IsSignUpBonus bool `json:"isSignUpBonus,omitempty"`

	ActiveTimeWindows []timeWindowDocument `json:"activeTimeWindows,omitempty" validate:"dive"`

	RequiredProductIDs      []string `json:"requiredProductIds,omitempty"`
	ExcludedProductIDs      []string `json:"excludedProductIds,omitempty"`
	RequiredProductCategory string   `json:"requiredProductCategory,omitempty"`
	ExactProductIDs         []string `json:"exactProductIds,omitempty"`

	Expression string `json:"expression,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, ok := normaliseDate(fl.Field().String())
		return ok
	})
	return v
}

// ParseCriteria reads a criteria document into its family variants, ordered
// by family. The document may be an object, a JSON string holding an object,
// or absent. Any failure wraps ErrUnparseableCriteria.
func ParseCriteria(raw json.RawMessage) ([]Criterion, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var embedded string
		if err := json.Unmarshal(raw, &embedded); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnparseableCriteria, err)
		}
		embedded = strings.TrimSpace(embedded)
		if embedded == "" || embedded == "null" {
			return nil, nil
		}
		raw = json.RawMessage(embedded)
	}

	var doc criteriaDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseableCriteria, err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseableCriteria, err)
	}

	criteria, err := doc.variants()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseableCriteria, err)
	}
	return criteria, nil
}

func (d criteriaDocument) variants() ([]Criterion, error) {
	var out []Criterion

	if d.MinPoints != nil {
		out = append(out, PointsCriterion{MinPoints: *d.MinPoints})
	}

	for name, amount := range map[string]*decimal.Decimal{
		"minSpend":               d.MinSpend,
		"minSpendPerTransaction": d.MinSpendPerTransaction,
		"cumulativeSpendTotal":   d.CumulativeSpendTotal,
	} {
		if amount != nil && amount.IsNegative() {
			return nil, fmt.Errorf("%s must not be negative", name)
		}
	}
	if d.MinPurchasesMonthly != nil || d.MinSpend != nil || d.MinSpendPerTransaction != nil || d.CumulativeSpendTotal != nil {
		out = append(out, PurchaseCriterion{
			MinPurchasesMonthly:    d.MinPurchasesMonthly,
			MinSpendPerTransaction: d.MinSpendPerTransaction,
			CumulativeSpendTotal:   d.CumulativeSpendTotal,
			MinSpend:               d.MinSpend,
		})
	}

	if d.IsBirthdayOnly || d.IsBirthMonthOnly || d.StartDate != "" || d.EndDate != "" {
		c := CalendarCriterion{BirthdayOnly: d.IsBirthdayOnly, BirthMonthOnly: d.IsBirthMonthOnly}
		if d.StartDate != "" {
			c.StartDate, _ = normaliseDate(d.StartDate)
		}
		if d.EndDate != "" {
			c.EndDate, _ = normaliseDate(d.EndDate)
		}
		out = append(out, c)
	}

	if len(d.AllowedMembershipTiers) > 0 {
		out = append(out, MembershipCriterion{Tiers: slices.Clone(d.AllowedMembershipTiers)})
	}

	if d.MinReferrals != nil || d.IsReferralBonusForNewUser || d.IsReferralBonusForReferrer {
		out = append(out, ReferralCriterion{
			MinReferrals:  d.MinReferrals,
			NewUserBonus:  d.IsReferralBonusForNewUser,
			ReferrerBonus: d.IsReferralBonusForReferrer,
		})
	}

	if d.IsSignUpBonus {
		out = append(out, SignupCriterion{})
	}

	if len(d.ActiveTimeWindows) > 0 {
		windows := make([]TimeWindow, 0, len(d.ActiveTimeWindows))
		for _, w := range d.ActiveTimeWindows {
			days := make([]time.Weekday, 0, len(w.DaysOfWeek))
			for _, day := range w.DaysOfWeek {
				days = append(days, time.Weekday(day))
			}
			windows = append(windows, TimeWindow{Start: w.StartTime, End: w.EndTime, Days: days})
		}
		out = append(out, TimeWindowCriterion{Windows: windows})
	}

	if len(d.RequiredProductIDs) > 0 || len(d.ExcludedProductIDs) > 0 || d.RequiredProductCategory != "" || len(d.ExactProductIDs) > 0 {
		out = append(out, ProductCriterion{
			RequiredProductIDs: d.RequiredProductIDs,
			ExcludedProductIDs: d.ExcludedProductIDs,
			RequiredCategory:   d.RequiredProductCategory,
			ExactProductIDs:    d.ExactProductIDs,
		})
	}

	if expr := strings.TrimSpace(d.Expression); expr != "" {
		c, err := NewExpressionCriterion(expr)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, nil
}

// EncodeCriteria writes variants back into the flat wire document.
func EncodeCriteria(criteria []Criterion) (json.RawMessage, error) {
	var d criteriaDocument
	for _, c := range criteria {
		switch v := c.(type) {
		case PointsCriterion:
			points := v.MinPoints
			d.MinPoints = &points
		case PurchaseCriterion:
			d.MinPurchasesMonthly = v.MinPurchasesMonthly
			d.MinSpend = v.MinSpend
			d.MinSpendPerTransaction = v.MinSpendPerTransaction
			d.CumulativeSpendTotal = v.CumulativeSpendTotal
		case CalendarCriterion:
			d.IsBirthdayOnly = v.BirthdayOnly
			d.IsBirthMonthOnly = v.BirthMonthOnly
			d.StartDate = v.StartDate
			d.EndDate = v.EndDate
		case MembershipCriterion:
			d.AllowedMembershipTiers = v.Tiers
		case ReferralCriterion:
			d.MinReferrals = v.MinReferrals
			d.IsReferralBonusForNewUser = v.NewUserBonus
			d.IsReferralBonusForReferrer = v.ReferrerBonus
		case SignupCriterion:
			d.IsSignUpBonus = true
		case TimeWindowCriterion:
			for _, w := range v.Windows {
				days := make([]int, 0, len(w.Days))
				for _, day := range w.Days {
					days = append(days, int(day))
				}
				d.ActiveTimeWindows = append(d.ActiveTimeWindows, timeWindowDocument{StartTime: w.Start, EndTime: w.End, DaysOfWeek: days})
			}
		case ProductCriterion:
			d.RequiredProductIDs = v.RequiredProductIDs
			d.ExcludedProductIDs = v.ExcludedProductIDs
			d.RequiredProductCategory = v.RequiredCategory
			d.ExactProductIDs = v.ExactProductIDs
		case ExpressionCriterion:
			d.Expression = v.Source
		default:
			return nil, fmt.Errorf("unsupported criterion %T", c)
		}
	}
	return json.Marshal(d)
}
