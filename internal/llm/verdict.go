package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/leadsignal/intel-bot/internal/core/domain"
	"github.com/leadsignal/intel-bot/internal/core/errors"
)

// parseVerdict validates a classifier reply against the verdict contract.
// Anything off-contract returns ErrUnparseableVerdict so the caller skips the
// message instead of storing a half-trusted result.
func parseVerdict(content string) (domain.Verdict, error) {
	content = extractJSON(content)
	if strings.TrimSpace(content) == "" {
		return domain.Verdict{}, errors.ErrEmptyResponse
	}

	var raw struct {
		Relevant   *bool    `json:"relevant"`
		Confidence *float32 `json:"confidence"`
		Category   string   `json:"category"`
		Summary    *string  `json:"summary"`
		Urgency    string   `json:"urgency"`
	}

	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %v", errors.ErrUnparseableVerdict, err)
	}

	if raw.Relevant == nil || raw.Confidence == nil {
		return domain.Verdict{}, fmt.Errorf("%w: missing relevant or confidence", errors.ErrUnparseableVerdict)
	}

	if *raw.Confidence < 0 || *raw.Confidence > 1 {
		return domain.Verdict{}, fmt.Errorf("%w: confidence %v out of range", errors.ErrUnparseableVerdict, *raw.Confidence)
	}

	verdict := domain.Verdict{
		Relevant:   *raw.Relevant,
		Confidence: *raw.Confidence,
		Category:   domain.Category(raw.Category),
		Urgency:    domain.Urgency(raw.Urgency),
	}

	if raw.Summary != nil {
		verdict.Summary = *raw.Summary
	}

	if verdict.Relevant && !verdict.Category.Valid() {
		return domain.Verdict{}, fmt.Errorf("%w: unknown category %q", errors.ErrUnparseableVerdict, raw.Category)
	}

	if !verdict.Category.Valid() {
		verdict.Category = domain.CategoryGeneral
	}

	if !verdict.Urgency.Valid() {
		verdict.Urgency = domain.UrgencyNormal
	}

	return verdict, nil
}

// parseClusters validates a clustering reply. The parsed topics carry only
// signal ids; full signal fields are re-attached by the caller from storage.
func parseClusters(content string) (ClusterResult, error) {
	content = extractJSON(content)
	if strings.TrimSpace(content) == "" {
		return ClusterResult{}, errors.ErrEmptyResponse
	}

	var raw struct {
		Topics []struct {
			TopicName string `json:"topic_name"`
			Headline  string `json:"headline"`
			Signals   []struct {
				ID string `json:"id"`
			} `json:"signals"`
		} `json:"topics"`
		SignalCount int `json:"signal_count"`
	}

	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return ClusterResult{}, fmt.Errorf("%w: %v", errors.ErrUnparseableClusters, err)
	}

	if len(raw.Topics) == 0 {
		return ClusterResult{}, fmt.Errorf("%w: no topics", errors.ErrUnparseableClusters)
	}

	result := ClusterResult{SignalCount: raw.SignalCount}

	for _, t := range raw.Topics {
		if strings.TrimSpace(t.TopicName) == "" || len(t.Signals) == 0 {
			continue
		}

		topic := ClusterTopic{TopicName: t.TopicName, Headline: t.Headline}
		for _, s := range t.Signals {
			if s.ID != "" {
				topic.SignalIDs = append(topic.SignalIDs, s.ID)
			}
		}

		if len(topic.SignalIDs) > 0 {
			result.Topics = append(result.Topics, topic)
		}
	}

	if len(result.Topics) == 0 {
		return ClusterResult{}, fmt.Errorf("%w: no usable topics", errors.ErrUnparseableClusters)
	}

	return result, nil
}

// extractJSON tries to extract JSON from a response that might have extra text.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")

	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}

	start = strings.Index(text, "[")
	end = strings.LastIndex(text, "]")

	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}

	return text
}
