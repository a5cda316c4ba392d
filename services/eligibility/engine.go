package eligibility

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Status string

var (
	StatusClaim         Status = "claim"
	StatusClaimed       Status = "claimed"
	StatusIneligible    Status = "ineligible"
	StatusActiveVoucher Status = "active_voucher"
	StatusUnparseable   Status = "unparseable"
)

// Claimable reports whether a claim may be attempted for this status.
func (s Status) Claimable() bool {
	return s == StatusClaim || s == StatusActiveVoucher
}

type Verdict struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

const (
	msgEligible        = "Eligible to claim!"
	msgNotEligible     = "Not eligible."
	msgAlreadyClaimed  = "You have already claimed this reward."
	msgVoucherUsed     = "This voucher has already been used."
	msgVoucherExpired  = "This voucher has expired."
	msgVoucherReady    = "Voucher is active and ready to use."
	msgUnreadableRules = "This reward's conditions could not be read."
)

// Entry is one evaluated row of a customer's rewards view.
type Entry struct {
	Target  Target
	Reward  *RewardDefinition
	Voucher *VoucherInstance
	Verdict Verdict
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the time zone "today" and "now" are read in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithLenientCriteria treats unreadable criteria as no criteria at all.
func WithLenientCriteria(lenient bool) Option {
	return func(e *Engine) {
		e.lenient = lenient
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine computes eligibility verdicts. It holds no per-customer state and is
// safe for concurrent use.
type Engine struct {
	logger   *zap.Logger
	now      func() time.Time
	location *time.Location
	lenient  bool
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:   zap.NewNop(),
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the verdict for a catalog reward at the engine's current time.
func (e *Engine) Evaluate(reward RewardDefinition, profile CustomerProfile) Verdict {
	return e.EvaluateAt(reward, profile, e.now())
}

func (e *Engine) EvaluateAt(reward RewardDefinition, profile CustomerProfile, now time.Time) Verdict {
	if reward.Kind != KindVoucher && profile.HasClaimed(reward.ID) {
		return Verdict{Status: StatusClaimed, Message: msgAlreadyClaimed}
	}

	criteria := reward.Criteria
	if reward.CriteriaErr != nil {
		if !e.lenient {
			e.logger.Debug("reward criteria unreadable",
				zap.String("reward_id", reward.ID),
				zap.Error(reward.CriteriaErr),
			)
			return Verdict{Status: StatusUnparseable, Message: msgUnreadableRules}
		}
		criteria = nil
	}

	return aggregate(reward, criteria, Input{Profile: profile, Now: now.In(e.location)})
}

// EvaluateVoucher resolves a voucher instance from its status alone.
func (e *Engine) EvaluateVoucher(v VoucherInstance) Verdict {
	switch v.Status {
	case VoucherClaimed:
		return Verdict{Status: StatusClaimed, Message: msgVoucherUsed}
	case VoucherExpired:
		return Verdict{Status: StatusIneligible, Message: msgVoucherExpired}
	case VoucherActive:
		msg := strings.TrimSpace(v.Description)
		if msg == "" {
			msg = msgVoucherReady
		}
		return Verdict{Status: StatusActiveVoucher, Message: msg}
	default:
		e.logger.Warn("unrecognised voucher status",
			zap.String("instance_id", v.InstanceID),
			zap.String("status", string(v.Status)),
		)
		return Verdict{Status: StatusIneligible, Message: fmt.Sprintf("Voucher status %q is not recognised.", v.Status)}
	}
}

// EvaluateCatalog builds the rewards view for a customer: issued vouchers
// first, then catalog rewards. Voucher-kind rewards the customer already
// holds an instance of are listed only through the instance.
func (e *Engine) EvaluateCatalog(profile CustomerProfile, catalog []RewardDefinition) []Entry {
	now := e.now()

	byID := make(map[string]*RewardDefinition, len(catalog))
	for i := range catalog {
		byID[catalog[i].ID] = &catalog[i]
	}

	issued := make(map[string]struct{}, len(profile.Vouchers))
	entries := make([]Entry, 0, len(profile.Vouchers)+len(catalog))

	for i := range profile.Vouchers {
		v := &profile.Vouchers[i]
		issued[v.RewardID] = struct{}{}
		entries = append(entries, Entry{
			Target:  Target{Kind: TargetVoucher, ID: v.InstanceID},
			Reward:  byID[v.RewardID],
			Voucher: v,
			Verdict: e.EvaluateVoucher(*v),
		})
	}

	for i := range catalog {
		r := &catalog[i]
		if r.Kind == KindVoucher {
			if _, ok := issued[r.ID]; ok {
				continue
			}
		}
		entries = append(entries, Entry{
			Target:  Target{Kind: TargetReward, ID: r.ID},
			Reward:  r,
			Verdict: e.EvaluateAt(*r, profile, now),
		})
	}

	return entries
}

// Lookup finds the entry for target in a previously evaluated view.
func Lookup(entries []Entry, target Target) (Entry, bool) {
	i := slices.IndexFunc(entries, func(en Entry) bool { return en.Target == target })
	if i < 0 {
		return Entry{}, false
	}
	return entries[i], true
}

func aggregate(reward RewardDefinition, criteria []Criterion, in Input) Verdict {
	ordered := slices.Clone(criteria)
	slices.SortStableFunc(ordered, func(a, b Criterion) int {
		return int(a.Family()) - int(b.Family())
	})

	eligible := true
	var unmet, progress []string
	for _, c := range ordered {
		r := c.Evaluate(in)
		if !r.Met {
			eligible = false
		}
		if r.Unmet != "" {
			unmet = append(unmet, r.Unmet)
		}
		if r.Progress != "" {
			progress = append(progress, r.Progress)
		}
	}

	if eligible && reward.PointsCost != nil && *reward.PointsCost > in.Profile.LoyaltyPoints {
		return Verdict{
			Status:  StatusIneligible,
			Message: fmt.Sprintf("Eligible, but need %d points to redeem (Have %d).", *reward.PointsCost, in.Profile.LoyaltyPoints),
		}
	}

	if eligible {
		if len(progress) == 0 {
			return Verdict{Status: StatusClaim, Message: msgEligible}
		}
		return Verdict{Status: StatusClaim, Message: strings.Join(progress, " ")}
	}

	switch {
	case len(unmet) > 0:
		return Verdict{Status: StatusIneligible, Message: strings.Join(unmet, " ")}
	case strings.TrimSpace(reward.EarningHint) != "":
		return Verdict{Status: StatusIneligible, Message: reward.EarningHint}
	default:
		return Verdict{Status: StatusIneligible, Message: msgNotEligible}
	}
}
