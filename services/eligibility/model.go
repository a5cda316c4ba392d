package eligibility

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type RewardKind string

var (
	KindStandard        RewardKind = "standard"
	KindVoucher         RewardKind = "voucher"
	KindDiscountCoupon  RewardKind = "discount_coupon"
	KindLoyaltyTierPerk RewardKind = "loyalty_tier_perk"
	KindManualGrant     RewardKind = "manual_grant"
)

// ParseRewardKind matches s case-insensitively. An empty or unknown kind
// yields KindStandard; ok is false only for unknown kinds.
func ParseRewardKind(s string) (kind RewardKind, ok bool) {
	switch k := RewardKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindStandard, KindVoucher, KindDiscountCoupon, KindLoyaltyTierPerk, KindManualGrant:
		return k, true
	case "":
		return KindStandard, true
	default:
		return KindStandard, false
	}
}

// RewardDefinition is a catalog entry as published by the cafe API.
// Criteria holds one variant per criterion family present on the entry.
// When the criteria document could not be read, CriteriaErr is set and
// Criteria is empty.
type RewardDefinition struct {
	ID              string
	Name            string
	Description     string
	ImageURL        string
	Kind            RewardKind
	PointsCost      *int64
	DiscountPercent *decimal.Decimal
	DiscountAmount  *decimal.Decimal
	FreeItemIDs     []string
	Criteria        []Criterion
	CriteriaErr     error
	EarningHint     string

	rawCriteria json.RawMessage
	unknownKind string
}

type rewardWire struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	Description         string           `json:"description,omitempty"`
	Image               string           `json:"image,omitempty"`
	Kind                RewardKind       `json:"kind"`
	PointsCost          *int64           `json:"pointsCost,omitempty"`
	DiscountPercentage  *decimal.Decimal `json:"discountPercentage,omitempty"`
	DiscountFixedAmount *decimal.Decimal `json:"discountFixedAmount,omitempty"`
	FreeMenuItemIDs     []string         `json:"freeMenuItemIds,omitempty"`
	Criteria            json.RawMessage  `json:"criteria,omitempty"`
	EarningHint         string           `json:"earningHint,omitempty"`
}

// UnmarshalJSON never fails on a bad criteria document; the parse error is
// kept on CriteriaErr so a single broken entry does not hide the catalog.
func (r *RewardDefinition) UnmarshalJSON(data []byte) error {
	var w rewardWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*r = RewardDefinition{
		ID:              w.ID,
		Name:            w.Name,
		Description:     w.Description,
		ImageURL:        w.Image,
		PointsCost:      w.PointsCost,
		DiscountPercent: w.DiscountPercentage,
		DiscountAmount:  w.DiscountFixedAmount,
		FreeItemIDs:     w.FreeMenuItemIDs,
		EarningHint:     w.EarningHint,
		rawCriteria:     w.Criteria,
	}
	var known bool
	if r.Kind, known = ParseRewardKind(string(w.Kind)); !known {
		r.unknownKind = string(w.Kind)
	}

	r.Criteria, r.CriteriaErr = ParseCriteria(w.Criteria)
	return nil
}

// UnknownKind is the kind as published when it was not recognised and the
// reward was treated as standard.
func (r RewardDefinition) UnknownKind() string {
	return r.unknownKind
}

func (r RewardDefinition) MarshalJSON() ([]byte, error) {
	criteria := r.rawCriteria
	if len(criteria) == 0 && len(r.Criteria) > 0 {
		encoded, err := EncodeCriteria(r.Criteria)
		if err != nil {
			return nil, err
		}
		criteria = encoded
	}

	return json.Marshal(rewardWire{
		ID:                  r.ID,
		Name:                r.Name,
		Description:         r.Description,
		Image:               r.ImageURL,
		Kind:                r.Kind,
		PointsCost:          r.PointsCost,
		DiscountPercentage:  r.DiscountPercent,
		DiscountFixedAmount: r.DiscountAmount,
		FreeMenuItemIDs:     r.FreeItemIDs,
		Criteria:            criteria,
		EarningHint:         r.EarningHint,
	})
}

type VoucherStatus string

var (
	VoucherActive  VoucherStatus = "active"
	VoucherClaimed VoucherStatus = "claimed"
	VoucherExpired VoucherStatus = "expired"
)

// VoucherInstance is a server-issued, customer-specific realization of a reward.
type VoucherInstance struct {
	InstanceID  string        `json:"instanceId"`
	RewardID    string        `json:"rewardId"`
	Status      VoucherStatus `json:"status"`
	Description string        `json:"description,omitempty"`
}

// CustomerProfile is a read-only snapshot of the customer as seen by the
// cafe API. Dates are ISO strings; only the date part is significant.
type CustomerProfile struct {
	CustomerID         string            `json:"customerId"`
	LoyaltyPoints      int64             `json:"loyaltyPoints"`
	PurchasesThisMonth int               `json:"purchasesThisMonth"`
	LifetimeSpend      decimal.Decimal   `json:"lifetimeTotalSpend"`
	BirthDate          string            `json:"birthDate,omitempty"`
	MembershipTier     string            `json:"membershipTier,omitempty"`
	ReferralsMade      int               `json:"referralsMade"`
	JoinDate           string            `json:"joinDate,omitempty"`
	ClaimedRewardIDs   []string          `json:"claimedRewardIds"`
	Vouchers           []VoucherInstance `json:"activeVouchers"`
}

func (p CustomerProfile) HasClaimed(rewardID string) bool {
	return slices.Contains(p.ClaimedRewardIDs, rewardID)
}

// Birthday returns the stored birth date, if it can be read.
func (p CustomerProfile) Birthday() (time.Time, bool) {
	date, ok := normaliseDate(p.BirthDate)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (p CustomerProfile) HasJoinDate() bool {
	return strings.TrimSpace(p.JoinDate) != ""
}

// normaliseDate reduces an ISO date or timestamp to its YYYY-MM-DD prefix.
func normaliseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(time.DateOnly) {
		return "", false
	}
	date := s[:len(time.DateOnly)]
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return "", false
	}
	return date, true
}

type TargetKind string

var (
	TargetReward  TargetKind = "reward"
	TargetVoucher TargetKind = "voucher"
)

// Target identifies what a claim acts on: a catalog reward id or a voucher
// instance id.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

func (t Target) String() string {
	return string(t.Kind) + ":" + t.ID
}
