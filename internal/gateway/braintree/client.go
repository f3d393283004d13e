// Package braintree adapts the Braintree SDK to the payment processor:
// every call runs behind a circuit breaker with a per-call timeout, and SDK
// errors are mapped onto this package's sentinels.
package braintree

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	bt "github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"payments-reconciler/internal/domain"
)

type Client struct {
	gateway *bt.Braintree
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	env, err := cfg.environment()
	if err != nil {
		return nil, err
	}
	if cfg.MerchantID == "" || cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, errors.New("braintree merchant id, public key and private key are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "braintree",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return !countsAgainstBreaker(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: statusTransport{base: http.DefaultTransport},
	}

	return &Client{
		gateway: bt.NewWithHttpClient(env, cfg.MerchantID, cfg.PublicKey, cfg.PrivateKey, httpClient),
		timeout: timeout,
		breaker: breaker,
		logger:  logger,
	}, nil
}

// Charge creates a sale that is submitted for settlement. A processor
// decline or gateway rejection is a result, not an error.
func (c *Client) Charge(ctx context.Context, payload domain.TokenPayload, amount decimal.Decimal) (*domain.StatusReport, error) {
	req := &bt.TransactionRequest{
		Type:               "sale",
		Amount:             toSDKAmount(amount),
		PaymentMethodToken: payload.PaymentMethodToken,
		PaymentMethodNonce: payload.PaymentMethodNonce,
		Options: &bt.TransactionOptions{
			SubmitForSettlement:   true,
			StoreInVaultOnSuccess: payload.StoreInVault && payload.PaymentMethodNonce != "",
		},
	}

	var tx *bt.Transaction
	err := c.call(ctx, "charge", func(ctx context.Context) (err error) {
		tx, err = c.gateway.Transaction().Create(ctx, req)
		return err
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.transaction != nil {
			return toReport(apiErr.transaction), nil
		}
		return nil, fmt.Errorf("charge: %w", err)
	}
	return toReport(tx), nil
}

// Refund refunds a settled transaction in full, or partially when amount is set.
func (c *Client) Refund(ctx context.Context, gatewayTransactionID string, amount *decimal.Decimal) (bool, error) {
	var amounts []*bt.Decimal
	if amount != nil {
		amounts = append(amounts, toSDKAmount(*amount))
	}

	err := c.call(ctx, "refund", func(ctx context.Context) error {
		_, err := c.gateway.Transaction().Refund(ctx, gatewayTransactionID, amounts...)
		return err
	})
	if errors.Is(err, ErrValidation) {
		c.logger.Warn("Refund rejected by gateway", zap.String("gateway_transaction_id", gatewayTransactionID), zap.Error(err))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("refund %s: %w", gatewayTransactionID, err)
	}
	return true, nil
}

func (c *Client) Void(ctx context.Context, gatewayTransactionID string) (bool, error) {
	err := c.call(ctx, "void", func(ctx context.Context) error {
		_, err := c.gateway.Transaction().Void(ctx, gatewayTransactionID)
		return err
	})
	if errors.Is(err, ErrValidation) {
		c.logger.Warn("Void rejected by gateway", zap.String("gateway_transaction_id", gatewayTransactionID), zap.Error(err))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("void %s: %w", gatewayTransactionID, err)
	}
	return true, nil
}

func (c *Client) FindTransaction(ctx context.Context, gatewayTransactionID string) (*domain.StatusReport, error) {
	var tx *bt.Transaction
	err := c.call(ctx, "find", func(ctx context.Context) (err error) {
		tx, err = c.gateway.Transaction().Find(ctx, gatewayTransactionID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find transaction %s: %w", gatewayTransactionID, err)
	}
	return toReport(tx), nil
}

// GenerateClientToken returns a token for the client-side SDK. customerID
// may be empty.
func (c *Client) GenerateClientToken(ctx context.Context, customerID string) (string, error) {
	var token string
	err := c.call(ctx, "client_token", func(ctx context.Context) (err error) {
		if customerID == "" {
			token, err = c.gateway.ClientToken().Generate(ctx)
		} else {
			token, err = c.gateway.ClientToken().GenerateWithCustomer(ctx, customerID)
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("generate client token: %w", err)
	}
	return token, nil
}

func (c *Client) CreateCustomer(ctx context.Context) (string, error) {
	var customer *bt.Customer
	err := c.call(ctx, "create_customer", func(ctx context.Context) (err error) {
		customer, err = c.gateway.Customer().Create(ctx, &bt.CustomerRequest{})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return customer.Id, nil
}

// call runs fn through the breaker with the per-call timeout and classifies
// whatever the SDK returned.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		var status int
		err := classify(fn(withStatusRecorder(callCtx, &status)), status)
		if err != nil {
			c.logger.Debug("Braintree request failed",
				zap.String("operation", op),
				zap.Int("status", status),
				zap.Error(err))
		}
		return nil, err
	})
	return unavailable(err)
}

type statusKey struct{}

func withStatusRecorder(ctx context.Context, status *int) context.Context {
	return context.WithValue(ctx, statusKey{}, status)
}

// statusTransport records the response status for classify; the SDK's
// error values do not carry it for every failure.
type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err == nil {
		if status, ok := req.Context().Value(statusKey{}).(*int); ok {
			*status = resp.StatusCode
		}
	}
	return resp, err
}
