package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/leadsignal/intel-bot/internal/core/domain"
)

const (
	maxHeadlines = 3
	quoteMax     = 200
)

// accountSection is one account's slice of the digest. Total counts all of
// the account's pending signals, including those hidden by the topic caps.
// Hidden holds the topics beyond the per-account cap; their signals are
// rendered only as a remainder count but remain in the bulk action row.
type accountSection struct {
	AccountName string
	Topics      []domain.Topic
	Hidden      []domain.Topic
	Total       int
}

func emptyDigestText(now time.Time) string {
	return fmt.Sprintf("*Daily Account Intelligence — %s*\nNothing to review today.", now.Format("Mon, Jan 2 2006"))
}

// render produces the two-layer digest: a header with aggregate counts, then
// per account a headlines section and a detail-by-topic section with per-item
// controls, and finally one bulk action row covering every pending item shown.
func render(now time.Time, sections []accountSection, maxSignalsPerTopic int) string {
	var sb strings.Builder

	totalSignals := 0
	for _, s := range sections {
		totalSignals += s.Total
	}

	sb.WriteString(fmt.Sprintf("*Daily Account Intelligence — %s*\n", now.Format("Mon, Jan 2 2006")))
	sb.WriteString(fmt.Sprintf("%d accounts, %d signals pending review\n", len(sections), totalSignals))

	var allIDs []string

	for _, section := range sections {
		sb.WriteString(fmt.Sprintf("\n*%s* — %d signals\n", accountLabel(section.AccountName), section.Total))

		renderHeadlines(&sb, section.Topics)
		allIDs = append(allIDs, renderDetails(&sb, section.Topics, section.Hidden, maxSignalsPerTopic)...)
	}

	sb.WriteString(fmt.Sprintf("\nBulk actions: [approve_all:%s] [reject_all:%s]\n",
		strings.Join(allIDs, ","), strings.Join(allIDs, ",")))

	return sb.String()
}

func renderHeadlines(sb *strings.Builder, topics []domain.Topic) {
	sb.WriteString("Headlines:\n")

	shown := len(topics)
	if shown > maxHeadlines {
		shown = maxHeadlines
	}

	for i := 0; i < shown; i++ {
		sb.WriteString(fmt.Sprintf("  %d. %s — %s\n", i+1, topics[i].Name, topics[i].Headline))
	}

	if rest := len(topics) - shown; rest > 0 {
		sb.WriteString(fmt.Sprintf("  (+%d more topics below)\n", rest))
	}
}

// renderDetails writes the per-topic detail blocks and returns the ids of
// every signal rendered or counted, for the bulk action row. Hidden topics
// contribute a remainder line and their signal ids.
func renderDetails(sb *strings.Builder, topics, hidden []domain.Topic, maxSignals int) []string {
	sb.WriteString("Details:\n")

	var ids []string

	for _, topic := range topics {
		sb.WriteString(fmt.Sprintf("  *%s*\n", topic.Name))

		shown := len(topic.Signals)
		if maxSignals > 0 && shown > maxSignals {
			shown = maxSignals
		}

		for _, signal := range topic.Signals[:shown] {
			sb.WriteString(fmt.Sprintf("  > %s\n", truncate(signal.Text, quoteMax)))
			sb.WriteString(fmt.Sprintf("  — %s in #%s  [approve:%s] [reject:%s] [view:%s]\n",
				signal.AuthorName, signal.ChannelID, signal.ID, signal.ID, signal.ID))
		}

		if rest := len(topic.Signals) - shown; rest > 0 {
			sb.WriteString(fmt.Sprintf("  (+%d more signals in this topic)\n", rest))
		}

		for _, signal := range topic.Signals {
			ids = append(ids, signal.ID)
		}
	}

	if len(hidden) > 0 {
		hiddenSignals := 0

		for _, topic := range hidden {
			hiddenSignals += len(topic.Signals)

			for _, signal := range topic.Signals {
				ids = append(ids, signal.ID)
			}
		}

		sb.WriteString(fmt.Sprintf("  (+%d more topics, %d more signals)\n", len(hidden), hiddenSignals))
	}

	return ids
}

func accountLabel(name string) string {
	if name == "" {
		return "Unmapped channels"
	}

	return name
}
