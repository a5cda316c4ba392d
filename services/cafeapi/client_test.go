package cafeapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"fredscafe-rewards/services/eligibility"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCafe struct {
	profileCalls atomic.Int32
	claimCalls   atomic.Int32
	failReads    atomic.Int32
	claimStatus  int
	claimBody    any
}

func (f *fakeCafe) handler() http.Handler {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.GET("/api/customers/:customerId/profile", func(c *gin.Context) {
		f.profileCalls.Add(1)
		if c.GetHeader("Authorization") != "Bearer token-1" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
			return
		}
		if f.failReads.Load() > 0 {
			f.failReads.Add(-1)
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": "try later"})
			return
		}
		if c.Param("customerId") == "ghost" {
			c.JSON(http.StatusNotFound, gin.H{"message": "Customer not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"customerId":         c.Param("customerId"),
			"loyaltyPoints":      120,
			"purchasesThisMonth": 3,
			"lifetimeTotalSpend": 245.5,
			"membershipTier":     "Gold",
			"claimedRewardIds":   []string{"r-old"},
			"activeVouchers": []gin.H{
				{"instanceId": "vi-1", "rewardId": "r-muffin", "status": "active", "description": "Free muffin"},
			},
		})
	})

	r.GET("/api/rewards", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": "r-coffee", "name": "Coffee", "kind": "standard", "pointsCost": 50, "criteria": gin.H{"minPoints": 20}},
			{"id": "r-cake", "name": "Cake", "kind": "standard", "criteria": `{"isBirthdayOnly":true}`},
			{"id": "r-bad", "name": "Bad", "kind": "standard", "criteria": "{nope"},
		})
	})

	r.POST("/api/customers/:customerId/rewards/:rewardId/claim", func(c *gin.Context) {
		f.claimCalls.Add(1)
		c.JSON(f.claimStatus, f.claimBody)
	})

	r.POST("/api/customers/:customerId/vouchers/:instanceId/use", func(c *gin.Context) {
		if c.Param("instanceId") != "vi-1" {
			c.String(http.StatusBadGateway, "upstream down")
			return
		}
		c.Status(http.StatusNoContent)
	})

	return r
}

func newTestClient(t *testing.T, f *fakeCafe) Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	return NewHTTPClient(Options{
		BaseURL:    srv.URL + "/api/",
		Token:      "token-1",
		RetryCount: 2,
		Logger:     zap.NewNop(),
	})
}

func TestFetchProfile(t *testing.T) {
	f := &fakeCafe{}
	client := newTestClient(t, f)

	profile, err := client.FetchProfile(context.Background(), "c-1")
	require.NoError(t, err)
	require.Equal(t, "c-1", profile.CustomerID)
	require.Equal(t, int64(120), profile.LoyaltyPoints)
	require.Equal(t, "245.5", profile.LifetimeSpend.String())
	require.True(t, profile.HasClaimed("r-old"))
	require.Len(t, profile.Vouchers, 1)
	require.Equal(t, eligibility.VoucherActive, profile.Vouchers[0].Status)
}

func TestFetchProfile_RetriesServerErrors(t *testing.T) {
	f := &fakeCafe{}
	f.failReads.Store(2)
	client := newTestClient(t, f)

	_, err := client.FetchProfile(context.Background(), "c-1")
	require.NoError(t, err)
	require.Equal(t, int32(3), f.profileCalls.Load())
}

func TestFetchProfile_NotFound(t *testing.T) {
	client := newTestClient(t, &fakeCafe{})

	_, err := client.FetchProfile(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrCustomerNotFound)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestFetchRewards_KeepsUnreadableEntries(t *testing.T) {
	client := newTestClient(t, &fakeCafe{})

	rewards, err := client.FetchRewards(context.Background())
	require.NoError(t, err)
	require.Len(t, rewards, 3)

	require.NoError(t, rewards[0].CriteriaErr)
	require.Equal(t, int64(50), *rewards[0].PointsCost)
	require.NoError(t, rewards[1].CriteriaErr)
	require.Len(t, rewards[1].Criteria, 1)
	require.ErrorIs(t, rewards[2].CriteriaErr, eligibility.ErrUnparseableCriteria)
}

func TestClaimReward_SurfacesServerMessageVerbatim(t *testing.T) {
	f := &fakeCafe{claimStatus: http.StatusConflict, claimBody: gin.H{"message": "Reward already claimed today."}}
	client := newTestClient(t, f)

	err := client.ClaimReward(context.Background(), "c-1", "r-coffee")
	require.Error(t, err)
	require.Equal(t, "Reward already claimed today.", err.Error())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestClaimReward_NotRetried(t *testing.T) {
	f := &fakeCafe{claimStatus: http.StatusInternalServerError, claimBody: gin.H{"message": "boom"}}
	client := newTestClient(t, f)

	err := client.ClaimReward(context.Background(), "c-1", "r-coffee")
	require.EqualError(t, err, "boom")
	require.Equal(t, int32(1), f.claimCalls.Load())

	f.claimStatus = http.StatusOK
	f.claimBody = gin.H{"ok": true}
	require.NoError(t, client.ClaimReward(context.Background(), "c-1", "r-coffee"))
}

func TestUseVoucher(t *testing.T) {
	client := newTestClient(t, &fakeCafe{})

	require.NoError(t, client.UseVoucher(context.Background(), "c-1", "vi-1"))

	err := client.UseVoucher(context.Background(), "c-1", "vi-2")
	require.EqualError(t, err, "upstream down")
}

func TestTransportFailureIsWrapped(t *testing.T) {
	client := NewHTTPClient(Options{BaseURL: "http://127.0.0.1:1"})

	err := client.ClaimReward(context.Background(), "c-1", "r-coffee")
	require.Error(t, err)

	var apiErr *APIError
	require.False(t, errors.As(err, &apiErr))
}
