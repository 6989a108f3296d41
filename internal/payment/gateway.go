package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GatewayConfig configures the hosted-page card gateway client.
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	// WebhookSecret signs confirmation callbacks (HMAC-SHA256 over the body).
	WebhookSecret string
}

// Gateway is a card payment provider backed by an external HTTP gateway.
// Orders paid through it start pending and are confirmed by webhook.
type Gateway struct {
	cfg    GatewayConfig
	client *http.Client
}

// NewGateway creates a Gateway client.
func NewGateway(cfg GatewayConfig) *Gateway {
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *Gateway) Method() Method { return MethodCard }

type gatewayIntentRequest struct {
	Reference string `json:"reference"`
	OrderID   string `json:"order_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

type gatewayIntentResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// Initiate registers a payment intent with the gateway and returns the
// hosted-page redirect. The reference is generated client-side so the
// order row can be written before the gateway acknowledges.
func (g *Gateway) Initiate(ctx context.Context, orderID string, amount decimal.Decimal) (*Intent, error) {
	ref := uuid.New().String()

	body, err := json.Marshal(gatewayIntentRequest{
		Reference: ref,
		OrderID:   orderID,
		Amount:    amount.StringFixed(2),
		Currency:  "USD",
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal intent")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/intents", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create intent request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "post intent")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var out gatewayIntentResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode intent response")
	}

	return &Intent{
		Reference:   ref,
		RedirectURL: out.RedirectURL,
		Status:      StatusPending,
	}, nil
}

// VerifyWebhook checks the gateway's HMAC-SHA256 signature over the raw
// webhook body. The signature header carries the hex digest.
func (g *Gateway) VerifyWebhook(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
