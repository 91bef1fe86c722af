package domain

// Category classifies what kind of account signal an item carries.
type Category string

const (
	CategoryDealUpdate  Category = "deal_update"
	CategoryStakeholder Category = "stakeholder"
	CategoryRisk        Category = "risk"
	CategoryNextSteps   Category = "next_steps"
	CategoryCompetitor  Category = "competitor"
	CategoryGeneral     Category = "general"
)

// Categories is the fixed set of legal item categories.
var Categories = []Category{
	CategoryDealUpdate,
	CategoryStakeholder,
	CategoryRisk,
	CategoryNextSteps,
	CategoryCompetitor,
	CategoryGeneral,
}

var categoryLabels = map[Category]string{
	CategoryDealUpdate:  "Deal Update",
	CategoryStakeholder: "Stakeholder",
	CategoryRisk:        "Risk",
	CategoryNextSteps:   "Next Steps",
	CategoryCompetitor:  "Competitor",
	CategoryGeneral:     "General",
}

// Valid reports whether the category belongs to the fixed enumerated set.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]

	return ok
}

// Label returns the human-readable form of the category.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}

	return categoryLabels[CategoryGeneral]
}

// Status is the review state of an item. Transitions are monotonic:
// pending -> approved (triggers sync) or pending -> rejected. Both end
// states are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether the status is a known state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Urgency is the classifier's time-sensitivity estimate for a message.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// Valid reports whether the urgency is a known level.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh:
		return true
	default:
		return false
	}
}
