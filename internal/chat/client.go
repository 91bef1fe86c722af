// Package chat is a thin client for the Slack-compatible Web API surface the
// pipeline consumes: message history, thread lookups, user display names and
// posting. Everything else about the chat platform stays outside the core.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/leadsignal/intel-bot/internal/config"
	"github.com/leadsignal/intel-bot/internal/core/domain"
)

const requestTimeout = 30 * time.Second

// Client implements the chat platform ports used by the poller, registry and
// digest generator.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zerolog.Logger
}

func New(cfg *config.Config, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.ChatAPIBaseURL, "/"),
		token:      cfg.ChatBotToken,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type apiMessage struct {
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
	User     string `json:"user"`
	BotID    string `json:"bot_id"`
	Subtype  string `json:"subtype"`
	Text     string `json:"text"`
}

func (m apiMessage) toDomain(channelID string) domain.Message {
	return domain.Message{
		ChannelID: channelID,
		Timestamp: m.TS,
		ThreadTS:  m.ThreadTS,
		AuthorID:  m.User,
		Text:      m.Text,
		IsBot:     m.BotID != "",
		Subtype:   m.Subtype,
	}
}

// FetchHistory returns up to limit messages posted after oldest, oldest first.
func (c *Client) FetchHistory(ctx context.Context, channelID string, oldest time.Time, limit int) ([]domain.Message, error) {
	var resp struct {
		apiEnvelope
		Messages []apiMessage `json:"messages"`
	}

	params := url.Values{
		"channel": {channelID},
		"oldest":  {strconv.FormatInt(oldest.Unix(), 10)},
		"limit":   {strconv.Itoa(limit)},
	}

	if err := c.call(ctx, "conversations.history", params, &resp); err != nil {
		return nil, err
	}

	// The API returns newest first; the pipeline wants chronological order.
	messages := make([]domain.Message, 0, len(resp.Messages))
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		messages = append(messages, resp.Messages[i].toDomain(channelID))
	}

	return messages, nil
}

// FetchThreadParent returns the root message of a thread.
func (c *Client) FetchThreadParent(ctx context.Context, channelID, threadTS string) (*domain.Message, error) {
	var resp struct {
		apiEnvelope
		Messages []apiMessage `json:"messages"`
	}

	params := url.Values{
		"channel": {channelID},
		"ts":      {threadTS},
		"limit":   {"1"},
	}

	if err := c.call(ctx, "conversations.replies", params, &resp); err != nil {
		return nil, err
	}

	if len(resp.Messages) == 0 {
		return nil, nil //nolint:nilnil // missing parent is not an error
	}

	parent := resp.Messages[0].toDomain(channelID)

	return &parent, nil
}

// ResolveUserName resolves a user id to a display name.
func (c *Client) ResolveUserName(ctx context.Context, userID string) (string, error) {
	var resp struct {
		apiEnvelope
		User struct {
			RealName string `json:"real_name"`
			Name     string `json:"name"`
		} `json:"user"`
	}

	if err := c.call(ctx, "users.info", url.Values{"user": {userID}}, &resp); err != nil {
		return "", err
	}

	if resp.User.RealName != "" {
		return resp.User.RealName, nil
	}

	return resp.User.Name, nil
}

// PostMessage posts text into a channel.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	var resp apiEnvelope

	params := url.Values{
		"channel": {channelID},
		"text":    {text},
	}

	return c.call(ctx, "chat.postMessage", params, &resp)
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method,
		strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	if env, ok := out.(interface{ apiError() error }); ok {
		return env.apiError()
	}

	return nil
}

func (e *apiEnvelope) apiError() error {
	if e.OK {
		return nil
	}

	return fmt.Errorf("chat api error: %s", e.Error)
}
