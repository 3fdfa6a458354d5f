package domain

// RiskLevel is the coarse severity attached to a message or conversation
type RiskLevel string

// Risk levels. WARNING is part of the surface but no rule produces it yet.
const (
	RiskSafe          RiskLevel = "SAFE"
	RiskWarning       RiskLevel = "WARNING"
	RiskCritical      RiskLevel = "CRITICAL"
	RiskHallucination RiskLevel = "HALLUCINATION"
)

// Rank orders risk levels for display; lower is more severe.
// Unknown values sort after SAFE.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskHallucination:
		return 0
	case RiskCritical:
		return 1
	case RiskWarning:
		return 2
	case RiskSafe:
		return 3
	default:
		return 4
	}
}

// MoreSevere reports whether r outranks other
func (r RiskLevel) MoreSevere(other RiskLevel) bool {
	return r.Rank() < other.Rank()
}

// RequiresIntervention reports whether a live evaluation at this level
// must raise an intervention signal
func (r RiskLevel) RequiresIntervention() bool {
	return r == RiskCritical || r == RiskHallucination
}

// Valid reports whether r is one of the declared levels
func (r RiskLevel) Valid() bool {
	return r.Rank() < 4
}

// MaxRisk returns the most severe of the given levels, SAFE when empty
func MaxRisk(levels ...RiskLevel) RiskLevel {
	max := RiskSafe
	for _, l := range levels {
		if l.MoreSevere(max) {
			max = l
		}
	}
	return max
}

// Sentiment of a user query
type Sentiment string

// Sentiments. Positive is declared but never produced by the current rules.
const (
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
)

// Fixed reason strings
const (
	ReasonNoIssues    = "No issues detected"
	ReasonFrustration = "User shows signs of frustration"
	ReasonIncorrect   = "Bot response contains incorrect information"
)

// EvaluationResult is the verdict for one (query, response) pair
type EvaluationResult struct {
	Sentiment     Sentiment `json:"sentiment"`
	Hallucination bool      `json:"hallucination"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Reason        string    `json:"reason"`
}

// Flags returns the subset of the result stored on a bot message
func (e EvaluationResult) Flags() *RiskFlags {
	return &RiskFlags{
		Sentiment:     e.Sentiment,
		Hallucination: e.Hallucination,
		Reason:        e.Reason,
	}
}

// EvaluateRequest is the request to score a single pair without a conversation
type EvaluateRequest struct {
	UserQuery   string `json:"user_query"`
	BotResponse string `json:"bot_response"`
}

// BatchEvaluateRequest scores several pairs at once
type BatchEvaluateRequest struct {
	Items []EvaluateRequest `json:"items" binding:"required"`
}

// BatchEvaluateResponse holds results in request order
type BatchEvaluateResponse struct {
	Results []EvaluationResult `json:"results"`
}
