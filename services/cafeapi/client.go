package cafeapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fredscafe-rewards/services/eligibility"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var ErrCustomerNotFound = errors.New("customer not found")

// APIError is a non-2xx answer from the cafe API. Message is the server's
// own wording and is shown to customers unchanged.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return fmt.Sprintf("cafe api returned status %d", e.StatusCode)
}

// Client is the remote cafe API as used by the rewards view.
type Client interface {
	FetchProfile(ctx context.Context, customerID string) (eligibility.CustomerProfile, error)
	FetchRewards(ctx context.Context) ([]eligibility.RewardDefinition, error)
	ClaimReward(ctx context.Context, customerID, rewardID string) error
	UseVoucher(ctx context.Context, customerID, instanceID string) error
}

type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RetryCount int
	Logger     *zap.Logger
}

type httpClient struct {
	reads  *resty.Client
	writes *resty.Client
	logger *zap.Logger
}

// NewHTTPClient builds a Client over resty. Reads are retried on transport
// errors and 5xx answers; claim writes are sent exactly once.
func NewHTTPClient(opts Options) Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	newResty := func() *resty.Client {
		c := resty.New().
			SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
			SetHeader("Accept", "application/json")
		if opts.Timeout > 0 {
			c.SetTimeout(opts.Timeout)
		}
		if opts.Token != "" {
			c.SetAuthToken(opts.Token)
		}
		return c
	}

	reads := newResty().
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &httpClient{
		reads:  reads,
		writes: newResty(),
		logger: logger,
	}
}

func (c *httpClient) FetchProfile(ctx context.Context, customerID string) (eligibility.CustomerProfile, error) {
	var profile eligibility.CustomerProfile
	resp, err := c.reads.R().
		SetContext(ctx).
		SetPathParam("customerId", customerID).
		SetResult(&profile).
		SetError(&APIError{}).
		Get("/customers/{customerId}/profile")
	if err := c.check(resp, err, "fetch profile"); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return eligibility.CustomerProfile{}, fmt.Errorf("%w: %w", ErrCustomerNotFound, err)
		}
		return eligibility.CustomerProfile{}, err
	}

	if profile.CustomerID == "" {
		profile.CustomerID = customerID
	}
	return profile, nil
}

func (c *httpClient) FetchRewards(ctx context.Context) ([]eligibility.RewardDefinition, error) {
	var rewards []eligibility.RewardDefinition
	resp, err := c.reads.R().
		SetContext(ctx).
		SetResult(&rewards).
		SetError(&APIError{}).
		Get("/rewards")
	if err := c.check(resp, err, "fetch rewards"); err != nil {
		return nil, err
	}

	for _, r := range rewards {
		if kind := r.UnknownKind(); kind != "" {
			c.logger.Warn("unknown reward kind, treating as standard",
				zap.String("reward_id", r.ID),
				zap.String("kind", kind),
			)
		}
		if r.CriteriaErr != nil {
			c.logger.Warn("reward criteria unreadable",
				zap.String("reward_id", r.ID),
				zap.Error(r.CriteriaErr),
			)
		}
	}
	return rewards, nil
}

func (c *httpClient) ClaimReward(ctx context.Context, customerID, rewardID string) error {
	resp, err := c.writes.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"customerId": customerID,
			"rewardId":   rewardID,
		}).
		SetError(&APIError{}).
		Post("/customers/{customerId}/rewards/{rewardId}/claim")
	return c.check(resp, err, "claim reward")
}

func (c *httpClient) UseVoucher(ctx context.Context, customerID, instanceID string) error {
	resp, err := c.writes.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"customerId": customerID,
			"instanceId": instanceID,
		}).
		SetError(&APIError{}).
		Post("/customers/{customerId}/vouchers/{instanceId}/use")
	return c.check(resp, err, "use voucher")
}

// check turns a resty result into an error: transport failures are wrapped,
// non-2xx answers become *APIError.
func (c *httpClient) check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil {
		apiErr = &APIError{}
	}
	apiErr.StatusCode = resp.StatusCode()
	if strings.TrimSpace(apiErr.Message) == "" {
		apiErr.Message = strings.TrimSpace(string(resp.Body()))
	}

	c.logger.Debug("cafe api error",
		zap.String("op", op),
		zap.Int("status", apiErr.StatusCode),
		zap.String("message", apiErr.Message),
	)
	return apiErr
}
