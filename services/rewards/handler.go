package rewards

import (
	"context"
	"errors"
	"net/http"

	"fredscafe-rewards/pkg/db/pagination"
	"fredscafe-rewards/pkg/errutil"
	"fredscafe-rewards/services/cafeapi"
	"fredscafe-rewards/services/claim"
	"fredscafe-rewards/services/eligibility"
	"fredscafe-rewards/services/snapshot"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Snapshots serves customer snapshots.
type Snapshots interface {
	Get(ctx context.Context, customerID string) (*snapshot.Snapshot, error)
	Refresh(ctx context.Context, customerID string) (*snapshot.Snapshot, error)
}

// Claims runs claims and reports their in-flight state.
type Claims interface {
	Claim(ctx context.Context, customerID string, target eligibility.Target) (claim.Outcome, error)
	State(customerID string, target eligibility.Target) claim.State
	History(ctx context.Context, customerID string, page pagination.Pagination) ([]claim.Attempt, pagination.PageInfo, error)
}

type Handler struct {
	snapshots Snapshots
	claims    Claims
	engine    *eligibility.Engine
	logger    *zap.Logger
}

type Params struct {
	fx.In

	Snapshots Snapshots
	Claims    Claims
	Engine    *eligibility.Engine
	Logger    *zap.Logger `optional:"true"`
}

func NewHandler(p Params) *Handler {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		snapshots: p.Snapshots,
		claims:    p.Claims,
		engine:    p.Engine,
		logger:    logger,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	customers := r.Group("/customers/:customerId")
	customers.GET("/rewards", h.List)
	customers.POST("/rewards/:rewardId/claim", h.ClaimReward)
	customers.POST("/vouchers/:instanceId/use", h.UseVoucher)
	customers.POST("/refresh", h.Refresh)
	customers.GET("/claims", h.History)
}

func (h *Handler) List(c *gin.Context) {
	snap, err := h.snapshots.Get(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, h.render(snap))
}

func (h *Handler) Refresh(c *gin.Context) {
	snap, err := h.snapshots.Refresh(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, h.render(snap))
}

func (h *Handler) ClaimReward(c *gin.Context) {
	h.claim(c, eligibility.Target{Kind: eligibility.TargetReward, ID: c.Param("rewardId")})
}

func (h *Handler) UseVoucher(c *gin.Context) {
	h.claim(c, eligibility.Target{Kind: eligibility.TargetVoucher, ID: c.Param("instanceId")})
}

// claim only forwards targets whose current verdict allows it.
func (h *Handler) claim(c *gin.Context, target eligibility.Target) {
	ctx := c.Request.Context()
	customerID := c.Param("customerId")

	snap, err := h.snapshots.Get(ctx, customerID)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}

	entry, ok := eligibility.Lookup(h.engine.EvaluateCatalog(snap.Profile, snap.Catalog), target)
	if !ok {
		_ = c.Error(errutil.NotFound(target.String()+" not found", nil))
		return
	}
	if !entry.Verdict.Status.Claimable() {
		_ = c.Error(errutil.Conflict(entry.Verdict.Message, nil))
		return
	}

	out, err := h.claims.Claim(ctx, customerID, target)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}

	resp := ClaimResponse{Notice: out.Notice}
	if out.Snapshot != nil {
		view := h.render(out.Snapshot)
		resp.Rewards = &view
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) History(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err, errutil.WithDetails(errutil.ValidationDetails(err)...)))
		return
	}

	attempts, info, err := h.claims.History(c.Request.Context(), c.Param("customerId"), page)
	switch {
	case errors.Is(err, pagination.ErrInvalidCursor):
		_ = c.Error(errutil.BadRequest("invalid cursor", err))
		return
	case err != nil:
		_ = c.Error(errutil.Internal("failed to load claim history", err))
		return
	}
	if attempts == nil {
		attempts = []claim.Attempt{}
	}
	c.JSON(http.StatusOK, HistoryResponse{Attempts: attempts, PageInfo: info})
}

// mapError keeps the cafe API's own wording for rejected calls.
func mapError(err error) error {
	var apiErr *cafeapi.APIError
	switch {
	case errors.Is(err, claim.ErrClaimInProgress):
		return errutil.Conflict(err.Error(), err)
	case errors.Is(err, cafeapi.ErrCustomerNotFound):
		return errutil.NotFound("customer not found", err)
	case errors.As(err, &apiErr):
		return errutil.New(errutil.StatusFromHTTP(apiErr.StatusCode), apiErr.Error(), errutil.WithErr(err))
	case errors.Is(err, context.DeadlineExceeded):
		return errutil.Timeout("cafe service timed out", err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return errutil.BadGateway("cafe service unavailable", err)
	}
}
