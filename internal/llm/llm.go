// Package llm is the boundary to the external language model. It exposes two
// structured calls: relevance classification of a single message and topic
// clustering of an account's pending signals. Both calls fail closed: a call
// error or an off-contract reply surfaces as an error, never as a partially
// trusted result.
package llm

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/leadsignal/intel-bot/internal/config"
	"github.com/leadsignal/intel-bot/internal/core/domain"
)

// Signal is one pending item sent to the clustering call.
type Signal struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Summary  string `json:"summary"`
	Text     string `json:"text"`
	Author   string `json:"author"`
	Channel  string `json:"channel"`
}

// ClusterTopic is one topic returned by the clustering call. Only the signal
// ids are trusted; the caller re-resolves every signal against stored items.
type ClusterTopic struct {
	TopicName string   `json:"topic_name"`
	Headline  string   `json:"headline"`
	SignalIDs []string `json:"-"`
}

// ClusterResult is the parsed reply of a clustering call.
type ClusterResult struct {
	Topics      []ClusterTopic
	SignalCount int
}

// Client is the classification and clustering boundary.
type Client interface {
	ClassifyMessage(ctx context.Context, authorID, text string) (domain.Verdict, error)
	ClusterSignals(ctx context.Context, signals []Signal) (ClusterResult, error)
}

const llmAPIKeyMock = "mock"

// New returns the OpenAI-backed client, or a deterministic mock when no API
// key is configured.
func New(cfg *config.Config, logger *zerolog.Logger) Client {
	if cfg.LLMAPIKey == "" || cfg.LLMAPIKey == llmAPIKeyMock {
		return &mockClient{}
	}

	return newOpenAI(cfg, logger)
}

type mockClient struct{}

func (c *mockClient) ClassifyMessage(_ context.Context, _, text string) (domain.Verdict, error) {
	// Deterministic heuristic so local runs produce items without an API key.
	lower := strings.ToLower(text)

	verdict := domain.Verdict{
		Relevant:   true,
		Confidence: 0.9,
		Category:   domain.CategoryGeneral,
		Summary:    truncate(text, 120),
		Urgency:    domain.UrgencyNormal,
	}

	switch {
	case strings.Contains(lower, "signed") || strings.Contains(lower, "closed") || strings.Contains(lower, "renewal"):
		verdict.Category = domain.CategoryDealUpdate
	case strings.Contains(lower, "churn") || strings.Contains(lower, "risk") || strings.Contains(lower, "escalat"):
		verdict.Category = domain.CategoryRisk
		verdict.Urgency = domain.UrgencyHigh
	case strings.Contains(lower, "cto") || strings.Contains(lower, "vp ") || strings.Contains(lower, "left the company"):
		verdict.Category = domain.CategoryStakeholder
	case strings.Contains(lower, "next step") || strings.Contains(lower, "follow up"):
		verdict.Category = domain.CategoryNextSteps
	default:
		verdict.Relevant = false
		verdict.Confidence = 0.2
	}

	return verdict, nil
}

func (c *mockClient) ClusterSignals(_ context.Context, signals []Signal) (ClusterResult, error) {
	ids := make([]string, len(signals))
	for i, s := range signals {
		ids[i] = s.ID
	}

	result := ClusterResult{SignalCount: len(signals)}
	if len(signals) > 0 {
		result.Topics = []ClusterTopic{{
			TopicName: "Account Activity",
			Headline:  truncate(signals[0].Summary, 120),
			SignalIDs: ids,
		}}
	}

	return result, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max]) + "..."
}
