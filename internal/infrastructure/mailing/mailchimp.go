package mailing

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avwx/portal/internal/infrastructure/config"
	"go.uber.org/zap"
)

// MailchimpClient subscribes newly registered accounts to the
// announcement mailing list via the Mailchimp members API.
type MailchimpClient struct {
	apiKey     string
	listID     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewMailchimpClient creates a new Mailchimp client. The datacenter is
// parsed from the API key suffix (e.g. "xxx-us21").
func NewMailchimpClient(cfg config.MailingConfig, logger *zap.Logger) (*MailchimpClient, error) {
	parts := strings.Split(cfg.APIKey, "-")
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("mailchimp: API key has no datacenter suffix")
	}

	return &MailchimpClient{
		apiKey:  cfg.APIKey,
		listID:  cfg.ListID,
		baseURL: fmt.Sprintf("https://%s.api.mailchimp.com/3.0", parts[1]),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// Subscribe upserts the email as a subscribed list member. Addresses
// already on the list are not an error.
func (c *MailchimpClient) Subscribe(ctx context.Context, email string) error {
	body, err := json.Marshal(map[string]any{
		"email_address": email,
		"status_if_new": "subscribed",
		"status":        "subscribed",
	})
	if err != nil {
		return err
	}

	// Members are addressed by the MD5 of the lowercased email so the
	// call is an idempotent upsert
	hash := md5.Sum([]byte(strings.ToLower(email)))
	url := fmt.Sprintf("%s/lists/%s/members/%s", c.baseURL, c.listID, hex.EncodeToString(hash[:]))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth("anystring", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailchimp: subscribe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("mailchimp: subscribe returned status %d", resp.StatusCode)
	}

	c.logger.Debug("Subscribed email to mailing list", zap.String("email", email))

	return nil
}

// Unsubscribe archives the list member for the email. A member that was
// never on the list is not an error.
func (c *MailchimpClient) Unsubscribe(ctx context.Context, email string) error {
	hash := md5.Sum([]byte(strings.ToLower(email)))
	url := fmt.Sprintf("%s/lists/%s/members/%s", c.baseURL, c.listID, hex.EncodeToString(hash[:]))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth("anystring", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailchimp: unsubscribe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("mailchimp: unsubscribe returned status %d", resp.StatusCode)
	}

	c.logger.Debug("Archived mailing list member", zap.String("email", email))

	return nil
}

// NopMailingList is used when the mailing integration is disabled
type NopMailingList struct{}

// Subscribe does nothing
func (NopMailingList) Subscribe(ctx context.Context, email string) error {
	return nil
}

// Unsubscribe does nothing
func (NopMailingList) Unsubscribe(ctx context.Context, email string) error {
	return nil
}
