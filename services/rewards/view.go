package rewards

import (
	"time"

	"fredscafe-rewards/pkg/db/pagination"
	"fredscafe-rewards/services/claim"
	"fredscafe-rewards/services/eligibility"
	"fredscafe-rewards/services/snapshot"
)

const (
	ActionClaim       = "Claim"
	ActionUseVoucher  = "Use voucher"
	ActionClaimed     = "Claimed"
	ActionNotEligible = "Not eligible"
	ActionClaiming    = "Claiming..."
)

// EntryView is one row of the customer's rewards screen.
type EntryView struct {
	TargetKind eligibility.TargetKind        `json:"targetKind"`
	ID         string                        `json:"id"`
	Reward     *eligibility.RewardDefinition `json:"reward,omitempty"`
	Voucher    *eligibility.VoucherInstance  `json:"voucher,omitempty"`
	Status     eligibility.Status            `json:"status"`
	Message    string                        `json:"message"`
	Action     string                        `json:"action"`
	Claimable  bool                          `json:"claimable"`
	Claiming   bool                          `json:"claiming"`
}

type RewardsResponse struct {
	CustomerID    string      `json:"customerId"`
	LoyaltyPoints int64       `json:"loyaltyPoints"`
	FetchedAt     time.Time   `json:"fetchedAt"`
	Rewards       []EntryView `json:"rewards"`
}

type ClaimResponse struct {
	Notice string `json:"notice"`
	// Rewards is absent when the refetch after the claim failed; the client
	// should reload the list.
	Rewards *RewardsResponse `json:"rewards,omitempty"`
}

type HistoryResponse struct {
	Attempts []claim.Attempt     `json:"attempts"`
	PageInfo pagination.PageInfo `json:"pageInfo"`
}

func actionLabel(status eligibility.Status, claiming bool) string {
	if claiming {
		return ActionClaiming
	}
	switch status {
	case eligibility.StatusClaim:
		return ActionClaim
	case eligibility.StatusActiveVoucher:
		return ActionUseVoucher
	case eligibility.StatusClaimed:
		return ActionClaimed
	default:
		return ActionNotEligible
	}
}

func (h *Handler) render(snap *snapshot.Snapshot) RewardsResponse {
	entries := h.engine.EvaluateCatalog(snap.Profile, snap.Catalog)

	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		claiming := h.claims.State(snap.CustomerID, e.Target) == claim.StateClaiming
		views = append(views, EntryView{
			TargetKind: e.Target.Kind,
			ID:         e.Target.ID,
			Reward:     e.Reward,
			Voucher:    e.Voucher,
			Status:     e.Verdict.Status,
			Message:    e.Verdict.Message,
			Action:     actionLabel(e.Verdict.Status, claiming),
			Claimable:  e.Verdict.Status.Claimable() && !claiming,
			Claiming:   claiming,
		})
	}

	return RewardsResponse{
		CustomerID:    snap.CustomerID,
		LoyaltyPoints: snap.Profile.LoyaltyPoints,
		FetchedAt:     snap.FetchedAt,
		Rewards:       views,
	}
}
