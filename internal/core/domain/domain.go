package domain

import "time"

// MonitoredChannel is a chat channel under monitoring and its best-known
// account linkage. AccountID is empty until a CRM account has been matched
// or set manually.
type MonitoredChannel struct {
	ChannelID    string
	ChannelName  string
	AccountID    string
	AccountName  string
	LastPolledAt time.Time
	CreatedAt    time.Time
}

// Linked reports whether the channel is mapped to a CRM account.
func (c MonitoredChannel) Linked() bool {
	return c.AccountID != ""
}

// Message is a single chat message as fetched from the platform.
type Message struct {
	ChannelID string
	Timestamp string
	ThreadTS  string
	AuthorID  string
	Text      string
	IsBot     bool
	Subtype   string
}

// IsReply reports whether the message is a threaded reply rather than a
// thread root.
func (m Message) IsReply() bool {
	return m.ThreadTS != "" && m.ThreadTS != m.Timestamp
}

// Item is a single unit of extracted intelligence from one source message.
// (ChannelID, MessageTS) is the dedup key: at most one item may exist per
// distinct source message in a channel.
type Item struct {
	ID          string
	ChannelID   string
	AccountID   string
	AccountName string
	MessageTS   string
	AuthorID    string
	AuthorName  string
	Text        string
	Category    Category
	Summary     string
	Confidence  float32
	Status      Status
	ReviewedBy  string
	ReviewedAt  time.Time
	CreatedAt   time.Time
}

// Verdict is the classifier's structured judgment about one message.
type Verdict struct {
	Relevant   bool     `json:"relevant"`
	Confidence float32  `json:"confidence"`
	Category   Category `json:"category"`
	Summary    string   `json:"summary"`
	Urgency    Urgency  `json:"urgency"`
}

// Account is a CRM account directory entry.
type Account struct {
	ID   string
	Name string
}

// AccountMatch is a fuzzy-match result against the CRM account directory.
type AccountMatch struct {
	AccountID   string
	AccountName string
	Confidence  float64
}

// Topic is a digest-time grouping of pending items. It is built transiently
// per account per digest run and never persisted.
type Topic struct {
	Name     string
	Headline string
	Signals  []Item
}
