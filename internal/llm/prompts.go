package llm

const classifyPrompt = `You review messages from a sales team's customer channels and decide whether each message carries actionable account intelligence (deal status, stakeholder changes, risk signals, committed next steps, competitor mentions).

Return ONLY a JSON object with exactly these keys:
- relevant (boolean): true only if the message contains account intelligence a CRM record should capture
- confidence (number 0-1): how certain you are about the judgment
- category (string): one of "deal_update", "stakeholder", "risk", "next_steps", "competitor", "general"
- summary (string or null): one self-contained sentence stating the key fact; null if not relevant
- urgency (string): one of "low", "normal", "high"

Rules:
- Social chatter, scheduling logistics, and internal jokes are NOT relevant.
- A relevant message states a fact about the customer relationship: "they signed", "their CTO left", "they are evaluating a competitor", "we owe them a security review".
- Do not invent facts: the summary must restate only what the message says.

Message author: %s
Message:
%s`

const clusterPrompt = `You group account-intelligence signals into topics for a daily review digest.

Input: a JSON array of signals, each with id, category, summary, text, author, channel.

Return ONLY a JSON object of the shape:
{"topics": [{"topic_name": "...", "headline": "...", "signals": [{"id": "..."}]}], "signal_count": N}

Rules:
- Every input signal id must appear in exactly one topic.
- topic_name is 2-4 words naming the theme (e.g. "Renewal Progress", "Champion Departure").
- headline is one sentence a reader can act on; it must only restate facts present in the underlying signals, never add new ones.
- Prefer 2-4 topics; never more than 5.
- signal_count is the total number of input signals.

Signals:
%s`
