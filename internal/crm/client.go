// Package crm is the minimal CRM surface the pipeline consumes: the account
// directory used for fuzzy matching and the single free-text intelligence
// field read-modify-written during approval sync.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/leadsignal/intel-bot/internal/config"
	"github.com/leadsignal/intel-bot/internal/core/domain"
	"github.com/leadsignal/intel-bot/internal/core/errors"
)

const requestTimeout = 15 * time.Second

// Client talks to the CRM's HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zerolog.Logger
}

func New(cfg *config.Config, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.CRMBaseURL, "/"),
		token:      cfg.CRMAPIToken,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// ListAccounts returns the account directory.
func (c *Client) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var resp struct {
		Accounts []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"accounts"`
	}

	if err := c.do(ctx, http.MethodGet, "/accounts", nil, &resp); err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, len(resp.Accounts))
	for i, a := range resp.Accounts {
		accounts[i] = domain.Account{ID: a.ID, Name: a.Name}
	}

	return accounts, nil
}

// ReadIntelligence reads the account's free-text intelligence field.
func (c *Client) ReadIntelligence(ctx context.Context, accountID string) (string, error) {
	var resp struct {
		Value string `json:"value"`
	}

	if err := c.do(ctx, http.MethodGet, "/accounts/"+accountID+"/intelligence", nil, &resp); err != nil {
		return "", err
	}

	return resp.Value, nil
}

// WriteIntelligence replaces the account's intelligence field value.
func (c *Client) WriteIntelligence(ctx context.Context, accountID, value string) error {
	body := struct {
		Value string `json:"value"`
	}{Value: value}

	return c.do(ctx, http.MethodPut, "/accounts/"+accountID+"/intelligence", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body *bytes.Reader

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal crm request: %w", err)
		}

		body = bytes.NewReader(payload)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build crm request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm %s %s: %w", method, path, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.ErrAccountNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("crm %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode crm response: %w", err)
	}

	return nil
}
