package claim

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"fredscafe-rewards/pkg/db/pagination"
	"fredscafe-rewards/services/eligibility"
	"fredscafe-rewards/services/snapshot"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrClaimInProgress = errors.New("a claim for this item is already in progress")
	ErrUnknownTarget   = errors.New("unknown claim target")
)

var claimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rewards_claims_total",
	Help: "Claim attempts by target kind and result.",
}, []string{"kind", "result"})

const (
	NoticeRewardClaimed  = "Reward claimed successfully!"
	NoticeVoucherApplied = "Voucher applied successfully!"
)

type State string

var (
	StateIdle     State = "idle"
	StateClaiming State = "claiming"
)

// Claimer performs the remote claim actions.
type Claimer interface {
	ClaimReward(ctx context.Context, customerID, rewardID string) error
	UseVoucher(ctx context.Context, customerID, instanceID string) error
}

// Refresher replaces a customer's snapshot after a successful claim.
type Refresher interface {
	Refresh(ctx context.Context, customerID string) (*snapshot.Snapshot, error)
	Invalidate(customerID string)
}

// Outcome is the result of a successful claim. Snapshot is nil when the
// follow-up refetch failed; the stale snapshot has been dropped in that case.
type Outcome struct {
	Target   eligibility.Target
	Notice   string
	Snapshot *snapshot.Snapshot
}

type inflightKey struct {
	customerID string
	target     eligibility.Target
}

// Orchestrator runs claims with at most one request in flight per customer
// and target. Claims on different targets proceed independently.
type Orchestrator struct {
	claimer   Claimer
	refresher Refresher
	repo      Repository
	node      *snowflake.Node
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	inflight map[inflightKey]struct{}
}

// OrchestratorParams defines dependencies for Orchestrator construction.
type OrchestratorParams struct {
	fx.In

	Claimer    Claimer
	Refresher  Refresher
	Repository Repository
	Node       *snowflake.Node
	Logger     *zap.Logger `optional:"true"`
}

func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if p.Claimer == nil || p.Refresher == nil {
		panic("claim orchestrator requires claimer and refresher dependencies")
	}
	return &Orchestrator{
		claimer:   p.Claimer,
		refresher: p.Refresher,
		repo:      p.Repository,
		node:      p.Node,
		logger:    logger,
		now:       time.Now,
		inflight:  make(map[inflightKey]struct{}),
	}
}

// State reports whether a claim for target is currently in flight.
func (o *Orchestrator) State(customerID string, target eligibility.Target) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inflight[inflightKey{customerID, target}]; ok {
		return StateClaiming
	}
	return StateIdle
}

// Claim sends the claim for target and, on success, refetches the customer's
// snapshot. Once dispatched the request is not cancelled with ctx. Remote
// failures are returned unchanged so their message can be shown as is.
func (o *Orchestrator) Claim(ctx context.Context, customerID string, target eligibility.Target) (Outcome, error) {
	notice, err := noticeFor(target)
	if err != nil {
		return Outcome{}, err
	}

	key := inflightKey{customerID, target}
	o.mu.Lock()
	if _, busy := o.inflight[key]; busy {
		o.mu.Unlock()
		claimsTotal.WithLabelValues(string(target.Kind), "in_progress").Inc()
		return Outcome{}, ErrClaimInProgress
	}
	o.inflight[key] = struct{}{}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.inflight, key)
		o.mu.Unlock()
	}()

	ctx = context.WithoutCancel(ctx)

	start := o.now()
	err = o.dispatch(ctx, customerID, target)
	o.audit(ctx, customerID, target, err, o.now().Sub(start))

	if err != nil {
		claimsTotal.WithLabelValues(string(target.Kind), "failure").Inc()
		o.logger.Info("claim rejected",
			zap.String("customer_id", customerID),
			zap.String("target", target.String()),
			zap.Error(err),
		)
		return Outcome{}, err
	}
	claimsTotal.WithLabelValues(string(target.Kind), "success").Inc()

	snap, err := o.refresher.Refresh(ctx, customerID)
	if err != nil {
		o.logger.Warn("refetch after claim failed",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		o.refresher.Invalidate(customerID)
		snap = nil
	}

	return Outcome{Target: target, Notice: notice, Snapshot: snap}, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, customerID string, target eligibility.Target) error {
	switch target.Kind {
	case eligibility.TargetReward:
		return o.claimer.ClaimReward(ctx, customerID, target.ID)
	case eligibility.TargetVoucher:
		return o.claimer.UseVoucher(ctx, customerID, target.ID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target.Kind)
	}
}

func (o *Orchestrator) audit(ctx context.Context, customerID string, target eligibility.Target, claimErr error, elapsed time.Duration) {
	if o.repo == nil || o.node == nil {
		return
	}

	attempt := &Attempt{
		AttemptID:  o.node.Generate(),
		CustomerID: customerID,
		TargetKind: string(target.Kind),
		TargetID:   target.ID,
		Succeeded:  claimErr == nil,
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  o.now().UTC(),
	}
	if claimErr != nil {
		attempt.ErrorMessage = claimErr.Error()
	}

	if err := o.repo.Create(ctx, attempt); err != nil {
		o.logger.Error("failed to record claim attempt",
			zap.String("customer_id", customerID),
			zap.String("target", target.String()),
			zap.Error(err),
		)
	}
}

// History lists a customer's audited claim attempts, newest first.
func (o *Orchestrator) History(ctx context.Context, customerID string, page pagination.Pagination) ([]Attempt, pagination.PageInfo, error) {
	if o.repo == nil {
		return nil, pagination.PageInfo{}, nil
	}

	page = page.Normalize()
	params := ListParams{Limit: page.Limit + 1}
	if page.Cursor != "" {
		cursor, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, pagination.PageInfo{}, err
		}
		before, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, pagination.PageInfo{}, fmt.Errorf("%w: %w", pagination.ErrInvalidCursor, err)
		}
		params.BeforeID = before
	}

	attempts, err := o.repo.ListByCustomer(ctx, customerID, params)
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}

	return pagination.BuildCursorPage(attempts, page.Limit, func(a Attempt) pagination.Cursor {
		return pagination.Cursor{ID: a.AttemptID.String()}
	})
}

func noticeFor(target eligibility.Target) (string, error) {
	switch target.Kind {
	case eligibility.TargetReward:
		return NoticeRewardClaimed, nil
	case eligibility.TargetVoucher:
		return NoticeVoucherApplied, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, target.Kind)
	}
}
