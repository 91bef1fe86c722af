package poller

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/leadsignal/intel-bot/internal/config"
	"github.com/leadsignal/intel-bot/internal/core/domain"
	"github.com/leadsignal/intel-bot/internal/core/errors"
	"github.com/leadsignal/intel-bot/internal/llm"
	"github.com/leadsignal/intel-bot/internal/observability"
)

type fakeStore struct {
	channels    []domain.MonitoredChannel
	items       map[string]*domain.Item
	counts      map[string]int
	lastPolled  map[string]time.Time
	createFails bool
}

func newFakeStore(channels ...domain.MonitoredChannel) *fakeStore {
	return &fakeStore{
		channels:   channels,
		items:      map[string]*domain.Item{},
		counts:     map[string]int{},
		lastPolled: map[string]time.Time{},
	}
}

func itemKey(channelID, messageTS string) string {
	return channelID + "/" + messageTS
}

func countKey(channelID string, day time.Time) string {
	return channelID + "/" + day.Format("2006-01-02")
}

func (s *fakeStore) ListChannels(_ context.Context) ([]domain.MonitoredChannel, error) {
	return s.channels, nil
}

func (s *fakeStore) GetChannel(_ context.Context, channelID string) (*domain.MonitoredChannel, error) {
	for i := range s.channels {
		if s.channels[i].ChannelID == channelID {
			return &s.channels[i], nil
		}
	}

	return nil, errors.ErrChannelNotFound
}

func (s *fakeStore) UpdateLastPolled(_ context.Context, channelID string, polledAt time.Time) error {
	s.lastPolled[channelID] = polledAt

	return nil
}

func (s *fakeStore) HasItem(_ context.Context, channelID, messageTS string) (bool, error) {
	_, ok := s.items[itemKey(channelID, messageTS)]

	return ok, nil
}

func (s *fakeStore) CreateItem(_ context.Context, item *domain.Item) (bool, error) {
	if s.createFails {
		return false, stderrors.New("insert failed")
	}

	key := itemKey(item.ChannelID, item.MessageTS)
	if _, ok := s.items[key]; ok {
		return false, nil
	}

	clone := *item
	s.items[key] = &clone

	return true, nil
}

func (s *fakeStore) GetDailyCount(_ context.Context, channelID string, day time.Time) (int, error) {
	return s.counts[countKey(channelID, day)], nil
}

func (s *fakeStore) IncrementDailyCount(_ context.Context, channelID string, day time.Time) (int, error) {
	s.counts[countKey(channelID, day)]++

	return s.counts[countKey(channelID, day)], nil
}

type fakePlatform struct {
	messages   map[string][]domain.Message
	parents    map[string]*domain.Message
	names      map[string]string
	historyErr error
	parentErr  error
	nameErr    error
}

func (p *fakePlatform) FetchHistory(_ context.Context, channelID string, _ time.Time, _ int) ([]domain.Message, error) {
	if p.historyErr != nil {
		return nil, p.historyErr
	}

	return p.messages[channelID], nil
}

func (p *fakePlatform) FetchThreadParent(_ context.Context, channelID, threadTS string) (*domain.Message, error) {
	if p.parentErr != nil {
		return nil, p.parentErr
	}

	return p.parents[itemKey(channelID, threadTS)], nil
}

func (p *fakePlatform) ResolveUserName(_ context.Context, userID string) (string, error) {
	if p.nameErr != nil {
		return "", p.nameErr
	}

	if name, ok := p.names[userID]; ok {
		return name, nil
	}

	return userID, nil
}

type fakeClassifier struct {
	verdicts map[string]domain.Verdict
	err      error
	calls    []string
}

func (c *fakeClassifier) ClassifyMessage(_ context.Context, _, text string) (domain.Verdict, error) {
	c.calls = append(c.calls, text)

	if c.err != nil {
		return domain.Verdict{}, c.err
	}

	if verdict, ok := c.verdicts[text]; ok {
		return verdict, nil
	}

	return domain.Verdict{Relevant: false, Confidence: 0.1, Category: domain.CategoryGeneral}, nil
}

func (c *fakeClassifier) ClusterSignals(_ context.Context, _ []llm.Signal) (llm.ClusterResult, error) {
	return llm.ClusterResult{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		MonitoringEnabled:    true,
		ConfidenceThreshold:  0.7,
		MinMessageLength:     10,
		FetchLimit:           100,
		DailyItemCap:         20,
		ThreadContextMax:     200,
		InitialLookbackHours: 24,
	}
}

func newTestPoller(cfg *config.Config, store *fakeStore, platform ChatPlatform, classifier *fakeClassifier) *Poller {
	logger := zerolog.Nop()
	p := New(cfg, store, platform, classifier, time.UTC, &logger)
	p.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }

	return p
}

func relevantVerdict(category domain.Category, confidence float32) domain.Verdict {
	return domain.Verdict{
		Relevant:   true,
		Confidence: confidence,
		Category:   category,
		Summary:    "summary",
		Urgency:    domain.UrgencyNormal,
	}
}

func monitoredChannel() domain.MonitoredChannel {
	return domain.MonitoredChannel{
		ChannelID:   "C1",
		ChannelName: "customer-acme",
		AccountID:   "acc-1",
		AccountName: "Acme Corp",
	}
}

func TestRunOnceCreatesPendingItem(t *testing.T) {
	store := newFakeStore(monitoredChannel())
	text := "🎉 CLOSED! $250k ACV signed"
	platform := &fakePlatform{
		messages: map[string][]domain.Message{
			"C1": {{ChannelID: "C1", Timestamp: "100.1", AuthorID: "U1", Text: text}},
		},
		names: map[string]string{"U1": "Jordan Reyes"},
	}
	classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
		text: relevantVerdict(domain.CategoryDealUpdate, 0.95),
	}}

	p := newTestPoller(testConfig(), store, platform, classifier)

	stats, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, stats.ChannelsPolled)
	require.Equal(t, 0, stats.ChannelsFailed)
	require.Equal(t, 1, stats.ItemsCreated)

	item := store.items[itemKey("C1", "100.1")]
	require.NotNil(t, item)
	require.Equal(t, domain.StatusPending, item.Status)
	require.Equal(t, domain.CategoryDealUpdate, item.Category)
	require.Equal(t, "acc-1", item.AccountID)
	require.Equal(t, "Jordan Reyes", item.AuthorName)
	require.Equal(t, text, item.Text)

	// Counter bumped and checkpoint advanced.
	require.Equal(t, 1, store.counts[countKey("C1", p.now())])
	require.False(t, store.lastPolled["C1"].IsZero())
}

func TestRunOnceDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MonitoringEnabled = false

	p := newTestPoller(cfg, newFakeStore(), &fakePlatform{}, &fakeClassifier{})

	_, err := p.RunOnce(context.Background())
	require.ErrorIs(t, err, errors.ErrMonitoringDisabled)
}

func TestRunOnceFiltersMessages(t *testing.T) {
	store := newFakeStore(monitoredChannel())
	platform := &fakePlatform{
		messages: map[string][]domain.Message{
			"C1": {
				{ChannelID: "C1", Timestamp: "1.0", AuthorID: "B1", Text: "bot says something long enough", IsBot: true},
				{ChannelID: "C1", Timestamp: "2.0", AuthorID: "U1", Text: "user joined the channel today", Subtype: "channel_join"},
				{ChannelID: "C1", Timestamp: "3.0", AuthorID: "U1", Text: "ok thanks"},
			},
		},
	}
	classifier := &fakeClassifier{}

	p := newTestPoller(testConfig(), store, platform, classifier)

	stats, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, stats.MessagesSeen)
	require.Equal(t, 0, stats.ItemsCreated)
	require.Empty(t, classifier.calls)
}

func TestRunOnceSkipsBelowConfidenceThreshold(t *testing.T) {
	store := newFakeStore(monitoredChannel())
	platform := &fakePlatform{
		messages: map[string][]domain.Message{
			"C1": {
				{ChannelID: "C1", Timestamp: "1.0", AuthorID: "U1", Text: "maybe something about pricing"},
				{ChannelID: "C1", Timestamp: "2.0", AuthorID: "U1", Text: "not relevant at all really"},
			},
		},
	}
	classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
		"maybe something about pricing": relevantVerdict(domain.CategoryDealUpdate, 0.5),
		"not relevant at all really":    {Relevant: false, Confidence: 0.95},
	}}

	p := newTestPoller(testConfig(), store, platform, classifier)

	stats, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, stats.ItemsCreated)
	require.Empty(t, store.items)
	require.Zero(t, store.counts[countKey("C1", p.now())])
}

func TestRunOnceConfidenceThresholdBoundary(t *testing.T) {
	// An item is created only when the verdict is relevant AND its
	// confidence clears the threshold, inclusive at the boundary.
	confidences := []float32{0, 0.1, 0.35, 0.5, 0.65, 0.69, 0.699, 0.7, 0.701, 0.71, 0.85, 0.95, 1}

	for _, relevant := range []bool{true, false} {
		for _, confidence := range confidences {
			name := fmt.Sprintf("relevant=%v/confidence=%v", relevant, confidence)

			t.Run(name, func(t *testing.T) {
				store := newFakeStore(monitoredChannel())
				platform := &fakePlatform{
					messages: map[string][]domain.Message{
						"C1": {{ChannelID: "C1", Timestamp: "1.0", AuthorID: "U1", Text: "renewal pricing discussion"}},
					},
				}

				verdict := relevantVerdict(domain.CategoryDealUpdate, confidence)
				verdict.Relevant = relevant

				classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
					"renewal pricing discussion": verdict,
				}}

				p := newTestPoller(testConfig(), store, platform, classifier)

				stats, err := p.RunOnce(context.Background())
				require.NoError(t, err)

				wantCreated := 0
				if relevant && confidence >= 0.7 {
					wantCreated = 1
				}

				require.Equal(t, wantCreated, stats.ItemsCreated)
				require.Len(t, store.items, wantCreated)
			})
		}
	}
}

func TestRunOnceDedupSkipsExistingItems(t *testing.T) {
	store := newFakeStore(monitoredChannel())
	store.items[itemKey("C1", "1.0")] = &domain.Item{ID: "existing"}

	platform := &fakePlatform{
		messages: map[string][]domain.Message{
			"C1": {{ChannelID: "C1", Timestamp: "1.0", AuthorID: "U1", Text: "renewal confirmed for next year"}},
		},
	}
	classifier := &fakeClassifier{}

	p := newTestPoller(testConfig(), store, platform, classifier)

	stats, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, stats.ItemsCreated)
	require.Empty(t, classifier.calls)
	require.Equal(t, "existing", store.items[itemKey("C1", "1.0")].ID)
}

func TestRunOnceRepeatedCycleIsIdempotent(t *testing.T) {
	store := newFakeStore(monitoredChannel())
	text := "renewal confirmed for next year"
	platform := &fakePlatform{
		messages: map[string][]domain.Message{
			"C1": {{ChannelID: "C1", Timestamp: "1.0", AuthorID: "U1", Text: text}},
		},
	}
	classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
		text: relevantVerdict(domain.CategoryDealUpdate, 0.9),
	}}

	p := newTestPoller(testConfig(), store, platform, classifier)

	// LastPolledAt in the fake store is per map, overlapping windows refetch
	// the same message; only one item may result.
	for i := 0; i < 3; i++ {
		_, err := p.RunOnce(context.Background())
		require.NoError(t, err)
	}

	require.Len(t, store.items, 1)
	require.Equal(t, 1, store.counts[countKey("C1", p.now())])
}

func TestRunOnceDailyCapStopsChannel(t *testing.T) {
	cfg := testConfig()
	cfg.DailyItemCap = 2

	store := newFakeStore(monitoredChannel())

	var messages []domain.Message
	verdicts := map[string]domain.Verdict{}

	for i := 0; i < 5; i++ {
		text := fmt.Sprintf("deal update number %d from the account team", i)
		messages = append(messages, domain.Message{ChannelID: "C1", Timestamp: fmt.Sprintf("%d.0", i), AuthorID: "U1", Text: text})
		verdicts[text] = relevantVerdict(domain.CategoryDealUpdate, 0.9)
	}

	platform := &fakePlatform{messages: map[string][]domain.Message{"C1": messages}}
	classifier := &fakeClassifier{verdicts: verdicts}

	p := newTestPoller(cfg, store, platform, classifier)

	stats, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, stats.ItemsCreated)
	require.Len(t, store.items, 2)
	// The cap check stops the channel before the third classification.
	require.Len(t, classifier.calls, 2)
	// The channel still completed its cycle, the checkpoint advances.
	require.False(t, store.lastPolled["C1"].IsZero())
}

func TestDailyCapResetsOnNewDay(t *testing.T) {
	cfg := testConfig()
	cfg.DailyItemCap = 1

	store := newFakeStore(monitoredChannel())
	text := "deal momentum building with the champion"
	platform := &fakePlatform{
		messages: map[string][]domain.Message{
			"C1": {{ChannelID: "C1", Timestamp: "1.0", AuthorID: "U1", Text: text}},
		},
	}
	classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
		text: relevantVerdict(domain.CategoryDealUpdate, 0.9),
	}}

	p := newTestPoller(cfg, store, platform, classifier)

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, store.items, 1)

	// Next day, new message, counter starts fresh.
	p.now = func() time.Time { return time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC) }
	platform.messages["C1"] = []domain.Message{
		{ChannelID: "C1", Timestamp: "2.0", AuthorID: "U1", Text: text},
	}

	stats, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, stats.ItemsCreated)
	require.Len(t, store.items, 2)
}

func TestRunOnceClassifierFailureSkipsMessage(t *testing.T) {
	store := newFakeStore(monitoredChannel())
	platform := &fakePlatform{
		messages: map[string][]domain.Message{
			"C1": {{ChannelID: "C1", Timestamp: "1.0", AuthorID: "U1", Text: "renewal talk worth classifying"}},
		},
	}
	classifier := &fakeClassifier{err: stderrors.New("model timeout")}

	p := newTestPoller(testConfig(), store, platform, classifier)

	stats, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, stats.ChannelsFailed)
	require.Equal(t, 0, stats.ItemsCreated)
	// One attempt, no retry within the cycle.
	require.Len(t, classifier.calls, 1)
	// The cycle completed, the message will not be revisited.
	require.False(t, store.lastPolled["C1"].IsZero())
}

func TestRunOnceFetchFailureSkipsChannelAndKeepsCheckpoint(t *testing.T) {
	failing := monitoredChannel()
	healthy := domain.MonitoredChannel{ChannelID: "C2", ChannelName: "customer-globex", AccountID: "acc-2", AccountName: "Globex"}

	store := newFakeStore(failing, healthy)
	text := "globex renewal discussion ongoing"
	platform := &fakePlatform{
		messages: map[string][]domain.Message{
			"C2": {{ChannelID: "C2", Timestamp: "9.0", AuthorID: "U2", Text: text}},
		},
	}
	classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
		text: relevantVerdict(domain.CategoryDealUpdate, 0.9),
	}}

	// First channel fails at fetch, second proceeds.
	failingPlatform := &selectivePlatform{inner: platform, failChannel: "C1"}

	p := newTestPoller(testConfig(), store, failingPlatform, classifier)

	stats, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, stats.ChannelsPolled)
	require.Equal(t, 1, stats.ChannelsFailed)
	require.Equal(t, 1, stats.ItemsCreated)

	// The failed channel keeps its checkpoint so the window is retried.
	_, touched := store.lastPolled["C1"]
	require.False(t, touched)
	require.False(t, store.lastPolled["C2"].IsZero())
}

type selectivePlatform struct {
	inner       *fakePlatform
	failChannel string
}

func (p *selectivePlatform) FetchHistory(ctx context.Context, channelID string, oldest time.Time, limit int) ([]domain.Message, error) {
	if channelID == p.failChannel {
		return nil, stderrors.New("platform unavailable")
	}

	return p.inner.FetchHistory(ctx, channelID, oldest, limit)
}

func (p *selectivePlatform) FetchThreadParent(ctx context.Context, channelID, threadTS string) (*domain.Message, error) {
	return p.inner.FetchThreadParent(ctx, channelID, threadTS)
}

func (p *selectivePlatform) ResolveUserName(ctx context.Context, userID string) (string, error) {
	return p.inner.ResolveUserName(ctx, userID)
}

func TestRunOnceThreadContextPrepended(t *testing.T) {
	store := newFakeStore(monitoredChannel())
	reply := "agreed, let's push the renewal to legal"
	platform := &fakePlatform{
		messages: map[string][]domain.Message{
			"C1": {{ChannelID: "C1", Timestamp: "5.1", ThreadTS: "5.0", AuthorID: "U1", Text: reply}},
		},
		parents: map[string]*domain.Message{
			itemKey("C1", "5.0"): {ChannelID: "C1", Timestamp: "5.0", AuthorID: "U2", Text: "Renewal contract draft attached"},
		},
	}

	classifier := &fakeClassifier{}

	p := newTestPoller(testConfig(), store, platform, classifier)

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, classifier.calls, 1)
	require.Contains(t, classifier.calls[0], `In reply to: "Renewal contract draft attached"`)
	require.Contains(t, classifier.calls[0], reply)
}

func TestRunOnceThreadLookupFailureSkipsChannel(t *testing.T) {
	store := newFakeStore(monitoredChannel())
	platform := &fakePlatform{
		messages: map[string][]domain.Message{
			"C1": {{ChannelID: "C1", Timestamp: "5.1", ThreadTS: "5.0", AuthorID: "U1", Text: "threaded reply long enough"}},
		},
		parentErr: stderrors.New("thread fetch failed"),
	}

	p := newTestPoller(testConfig(), store, platform, &fakeClassifier{})

	stats, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, stats.ChannelsFailed)

	_, touched := store.lastPolled["C1"]
	require.False(t, touched)
}

func TestRunOnceStoresRawTextNotThreadContext(t *testing.T) {
	store := newFakeStore(monitoredChannel())
	reply := "yes, the CTO approved the renewal budget"
	contextText := fmt.Sprintf("In reply to: %q\n%s", "Budget thread", reply)

	platform := &fakePlatform{
		messages: map[string][]domain.Message{
			"C1": {{ChannelID: "C1", Timestamp: "7.1", ThreadTS: "7.0", AuthorID: "U1", Text: reply}},
		},
		parents: map[string]*domain.Message{
			itemKey("C1", "7.0"): {ChannelID: "C1", Timestamp: "7.0", Text: "Budget thread"},
		},
	}
	classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
		contextText: relevantVerdict(domain.CategoryDealUpdate, 0.9),
	}}

	p := newTestPoller(testConfig(), store, platform, classifier)

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	item := store.items[itemKey("C1", "7.1")]
	require.NotNil(t, item)
	// The thread context feeds the classifier only, never the stored item.
	require.Equal(t, reply, item.Text)
}

func TestProcessRealtimeCreatesItem(t *testing.T) {
	store := newFakeStore(monitoredChannel())
	platform := &fakePlatform{names: map[string]string{"U1": "Jordan Reyes"}}
	text := "🎉 CLOSED! $250k ACV signed"
	classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
		text: relevantVerdict(domain.CategoryDealUpdate, 0.95),
	}}

	p := newTestPoller(testConfig(), store, platform, classifier)

	created, err := p.ProcessRealtime(context.Background(), "C1", "50.0", text, "U1")
	require.NoError(t, err)
	require.True(t, created)

	item := store.items[itemKey("C1", "50.0")]
	require.NotNil(t, item)
	require.Equal(t, domain.StatusPending, item.Status)
	require.Equal(t, domain.CategoryDealUpdate, item.Category)
}

func TestProcessRealtimeDedup(t *testing.T) {
	store := newFakeStore(monitoredChannel())
	store.items[itemKey("C1", "50.0")] = &domain.Item{ID: "existing"}

	classifier := &fakeClassifier{}
	p := newTestPoller(testConfig(), store, &fakePlatform{}, classifier)

	created, err := p.ProcessRealtime(context.Background(), "C1", "50.0", "renewal signed this morning", "U1")
	require.NoError(t, err)
	require.False(t, created)
	require.Empty(t, classifier.calls)
}

func TestProcessRealtimeDailyCap(t *testing.T) {
	cfg := testConfig()
	cfg.DailyItemCap = 1

	store := newFakeStore(monitoredChannel())
	p := newTestPoller(cfg, store, &fakePlatform{}, &fakeClassifier{})

	store.counts[countKey("C1", p.now())] = 1

	denied := observability.RealtimeEvents.WithLabelValues(observability.StatusDenied)
	before := testutil.ToFloat64(denied)

	_, err := p.ProcessRealtime(context.Background(), "C1", "51.0", "another renewal update arriving", "U1")
	require.ErrorIs(t, err, errors.ErrDailyCapReached)

	require.Equal(t, before+1, testutil.ToFloat64(denied))
}

func TestProcessRealtimeUnknownChannel(t *testing.T) {
	p := newTestPoller(testConfig(), newFakeStore(), &fakePlatform{}, &fakeClassifier{})

	_, err := p.ProcessRealtime(context.Background(), "C404", "1.0", "some message text here", "U1")
	require.ErrorIs(t, err, errors.ErrChannelNotFound)
}

func TestProcessRealtimeAuthorLookupDegrades(t *testing.T) {
	store := newFakeStore(monitoredChannel())
	platform := &fakePlatform{nameErr: stderrors.New("users.info failed")}
	text := "renewal contract countersigned today"
	classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
		text: relevantVerdict(domain.CategoryDealUpdate, 0.9),
	}}

	p := newTestPoller(testConfig(), store, platform, classifier)

	created, err := p.ProcessRealtime(context.Background(), "C1", "60.0", text, "U1")
	require.NoError(t, err)
	require.True(t, created)

	item := store.items[itemKey("C1", "60.0")]
	require.Equal(t, "U1", item.AuthorName)
}
