// Package provider is the gateway to the backend services holding customer
// state: the identity/account-linking service, the card processor, and the
// operation-support service (mobile entitlement and payment rails).
package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/alovak/accountflow/accountmgr/models"
)

// Provider tags used by the account-linking listing.
const (
	ProviderPaymentRail   = "PAYMENT_RAIL"
	ProviderCardProcessor = "CARD_PROCESSOR"
)

// lockCallTimeout is the deadline the operation-support service contracts
// for on lock-mobile-access and rail-deactivation calls.
const lockCallTimeout = 15 * time.Second

// Config holds connection settings for the backend services. Username and
// Password come from the environment via the application config; they are
// never compiled in.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// LinkedAccount is one entry of the identity service's account-linking
// listing.
type LinkedAccount struct {
	ProviderID string `json:"providerId"`
	InternalID string `json:"internalId"`
}

// Client issues authenticated requests against the backend services. The
// credential is established once at construction and reused for every call.
type Client struct {
	base string
	cfg  Config
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("provider base URL is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("provider credentials are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// LinkedAccounts fetches the account-linking listing for a user.
func (c *Client) LinkedAccounts(ctx context.Context, userID string) ([]LinkedAccount, error) {
	var payload struct {
		Accounts []LinkedAccount `json:"accounts"`
	}
	err := c.getJSON(ctx, "/accounts/internal/v3/users/"+url.PathEscape(userID), nil, &payload)
	if err != nil {
		return nil, fmt.Errorf("linked accounts for %s: %w", userID, err)
	}
	return payload.Accounts, nil
}

// Cards fetches the card listing for a card-processor account id. Entries
// with a status or type outside the closed enums fail the whole call.
func (c *Client) Cards(ctx context.Context, accountID string) ([]*models.Card, error) {
	var payload []struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		CardType string `json:"cardType"`
	}
	query := url.Values{"accountId": {accountID}}
	if err := c.getJSON(ctx, "/card-processor/cs/cards", query, &payload); err != nil {
		return nil, fmt.Errorf("cards for account %s: %w", accountID, err)
	}

	cards := make([]*models.Card, 0, len(payload))
	for _, entry := range payload {
		status, err := models.ParseStatus(entry.Status)
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", entry.ID, err)
		}
		cardType, err := models.ParseCardType(entry.CardType)
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", entry.ID, err)
		}
		cards = append(cards, &models.Card{ID: entry.ID, Status: status, Type: cardType})
	}
	return cards, nil
}

// UpdateCardStatus asks the card processor to move a card to the target
// status. The target-status payload is idempotent; re-issuing it is safe.
func (c *Client) UpdateCardStatus(ctx context.Context, cardID string, target models.Status) error {
	body := struct {
		TargetStatus models.Status `json:"targetStatus"`
	}{TargetStatus: target}

	err := c.send(ctx, http.MethodPost, "/card-processor/cs/cards/"+url.PathEscape(cardID)+"/status", body)
	if err != nil {
		return fmt.Errorf("update card %s to %s: %w", cardID, target, err)
	}
	return nil
}

// DeleteCard removes a virtual card at the card processor.
func (c *Client) DeleteCard(ctx context.Context, cardID string) error {
	err := c.send(ctx, http.MethodDelete, "/card-processor/cs/cards/"+url.PathEscape(cardID), nil)
	if err != nil {
		return fmt.Errorf("delete card %s: %w", cardID, err)
	}
	return nil
}

// MobileAccess resolves the mobile-entitlement flag for one batch of user
// ids in a single call.
func (c *Client) MobileAccess(ctx context.Context, userIDs []string) (map[string]bool, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/operation-support/api/customer/isEnabled", userIDs)
	if err != nil {
		return nil, err
	}

	var payload []struct {
		CustomerID string `json:"customerId"`
		Active     bool   `json:"active"`
	}
	if err := c.do(req, &payload); err != nil {
		return nil, fmt.Errorf("mobile access for %d users: %w", len(userIDs), err)
	}

	flags := make(map[string]bool, len(payload))
	for _, entry := range payload {
		flags[entry.CustomerID] = entry.Active
	}
	return flags, nil
}

// LockMobileAccess disables the customer's mobile application session.
func (c *Client) LockMobileAccess(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, lockCallTimeout)
	defer cancel()

	body := struct {
		Enabled bool `json:"enabled"`
	}{Enabled: false}

	err := c.send(ctx, http.MethodPost, "/operation-support/api/customer/"+url.PathEscape(userID)+"/lock-mobile-access", body)
	if err != nil {
		return fmt.Errorf("lock mobile access for %s: %w", userID, err)
	}
	return nil
}

// DeactivateRail disables one payment-rail registration for fraud.
func (c *Client) DeactivateRail(ctx context.Context, userID, railID string) error {
	ctx, cancel := context.WithTimeout(ctx, lockCallTimeout)
	defer cancel()

	path := "/operation-support/api/customer/" + url.PathEscape(userID) +
		"/payment-rails/" + url.PathEscape(railID) + "/deactivate?deactivationReason=FRAUD"
	if err := c.send(ctx, http.MethodPost, path, nil); err != nil {
		return fmt.Errorf("deactivate rail %s for %s: %w", railID, userID, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		b, err := jsoniter.ConfigFastest.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) send(ctx context.Context, method, path string, body any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if out == nil {
		return nil
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := jsoniter.ConfigFastest.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
