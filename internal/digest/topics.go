package digest

import (
	"context"
	"sort"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leadsignal/intel-bot/internal/core/domain"
	"github.com/leadsignal/intel-bot/internal/llm"
	"github.com/leadsignal/intel-bot/internal/observability"
	db "github.com/leadsignal/intel-bot/internal/storage"
)

// clusteringMinItems is the group size above which the clustering boundary is
// consulted. At or below it the call is skipped entirely and items group by
// category.
const clusteringMinItems = 3

const headlineMaxChars = 120

// buildTopics clusters one account's pending items. The clustering reply is
// trusted only for grouping: every signal is re-resolved by id against the
// stored items, unknown ids are dropped, and any call or parse failure falls
// back to deterministic category grouping. Topics beyond the per-account cap
// are returned separately so the remainder stays counted and actionable.
func (g *Generator) buildTopics(ctx context.Context, group db.AccountGroup) (shown, hidden []domain.Topic) {
	if len(group.Items) <= clusteringMinItems {
		return capTopics(topicsByCategory(group.Items), g.cfg.MaxTopicsPerAccount)
	}

	signals := lo.Map(group.Items, func(item domain.Item, _ int) llm.Signal {
		return llm.Signal{
			ID:       item.ID,
			Category: string(item.Category),
			Summary:  item.Summary,
			Text:     item.Text,
			Author:   item.AuthorName,
			Channel:  item.ChannelID,
		}
	})

	result, err := g.clusterer.ClusterSignals(ctx, signals)
	if err != nil {
		observability.ClusteringCalls.WithLabelValues(observability.StatusError).Inc()
		g.logger.Warn().Err(err).Str("account", group.AccountName).Msg("clustering failed, falling back to category grouping")

		return capTopics(topicsByCategory(group.Items), g.cfg.MaxTopicsPerAccount)
	}

	observability.ClusteringCalls.WithLabelValues(observability.StatusOK).Inc()

	byID := lo.KeyBy(group.Items, func(item domain.Item) string { return item.ID })

	topics := make([]domain.Topic, 0, len(result.Topics))

	for _, t := range result.Topics {
		topic := domain.Topic{Name: t.TopicName, Headline: t.Headline}

		for _, id := range t.SignalIDs {
			if item, ok := byID[id]; ok {
				topic.Signals = append(topic.Signals, item)
			}
		}

		if len(topic.Signals) == 0 {
			continue
		}

		if strings.TrimSpace(topic.Headline) == "" {
			topic.Headline = headlineFor(topic.Signals[0])
		}

		topics = append(topics, topic)
	}

	if len(topics) == 0 {
		return capTopics(topicsByCategory(group.Items), g.cfg.MaxTopicsPerAccount)
	}

	return capTopics(topics, g.cfg.MaxTopicsPerAccount)
}

// topicsByCategory is the deterministic fallback: one topic per distinct
// category present, named after the category, with a headline taken from the
// first item in that category.
func topicsByCategory(items []domain.Item) []domain.Topic {
	grouped := lo.GroupBy(items, func(item domain.Item) domain.Category { return item.Category })

	titler := cases.Title(language.English)

	topics := make([]domain.Topic, 0, len(grouped))
	for category, signals := range grouped {
		topics = append(topics, domain.Topic{
			Name:     titler.String(strings.ReplaceAll(string(category), "_", " ")),
			Headline: headlineFor(signals[0]),
			Signals:  signals,
		})
	}

	// Map iteration order is random; keep the digest stable.
	sort.Slice(topics, func(i, j int) bool {
		if len(topics[i].Signals) != len(topics[j].Signals) {
			return len(topics[i].Signals) > len(topics[j].Signals)
		}

		return topics[i].Name < topics[j].Name
	})

	return topics
}

func headlineFor(item domain.Item) string {
	if item.Summary != "" {
		return truncate(item.Summary, headlineMaxChars)
	}

	return truncate(item.Text, headlineMaxChars)
}

// capTopics splits the list at the per-account cap. The tail is kept, not
// discarded: its signals still count toward the digest and its ids still
// belong in the bulk action row.
func capTopics(topics []domain.Topic, max int) (shown, hidden []domain.Topic) {
	if max <= 0 || len(topics) <= max {
		return topics, nil
	}

	return topics[:max], topics[max:]
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max]) + "..."
}
