// Package supervisor scores bot responses for user frustration and for
// hallucinated policy or product claims, and folds those scores into a
// conversation-level risk.
package supervisor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
)

var negativeKeywords = []string{
	"stupid", "wrong", "useless", "terrible", "horrible", "awful",
	"worst", "hate", "frustrated", "angry", "disappointed", "broken",
	"pathetic", "ridiculous",
}

// NegativeKeywords returns the words that mark a query as frustrated
func NegativeKeywords() []string {
	out := make([]string, len(negativeKeywords))
	copy(out, negativeKeywords)
	return out
}

// \s in RE2 is ASCII only; \p{Zs} adds no-break and other Unicode spaces.
var (
	refundDaysPattern   = regexp.MustCompile(`(\d+)[-\s\p{Zs}]day refund`)
	returnDaysPattern   = regexp.MustCompile(`return.*within (\d+) days`)
	freeShippingPattern = regexp.MustCompile(`free shipping.*\$(\d+)`)
	ordersOverPattern   = regexp.MustCompile(`orders over \$(\d+)`)
)

var (
	unavailablePhrases = []string{"out of stock", "not available", "unavailable"}
	availablePhrases   = []string{"in stock", "available"}
	negatedPhrases     = []string{"not available", "unavailable"}
)

// Engine evaluates responses against a fixed knowledge base
type Engine struct {
	kb *domain.KnowledgeBase
}

// NewEngine creates an engine bound to kb
func NewEngine(kb *domain.KnowledgeBase) *Engine {
	return &Engine{kb: kb}
}

// KnowledgeBase returns the ground truth the engine checks against
func (e *Engine) KnowledgeBase() *domain.KnowledgeBase {
	return e.kb
}

// Evaluate scores one (query, response) pair
func (e *Engine) Evaluate(userQuery, botResponse string) domain.EvaluationResult {
	return Evaluate(userQuery, botResponse, e.kb)
}

// Evaluate scores a bot response and the query that prompted it.
// It never fails: input that triggers no rule is SAFE.
func Evaluate(userQuery, botResponse string, kb *domain.KnowledgeBase) domain.EvaluationResult {
	sentiment := detectSentiment(userQuery)
	hallucination, reason := checkGrounding(strings.ToLower(botResponse), kb)

	result := domain.EvaluationResult{
		Sentiment:     sentiment,
		Hallucination: hallucination,
		RiskLevel:     domain.RiskSafe,
		Reason:        domain.ReasonNoIssues,
	}

	switch {
	case hallucination:
		result.RiskLevel = domain.RiskHallucination
		result.Reason = reason
		if result.Reason == "" {
			result.Reason = domain.ReasonIncorrect
		}
	case sentiment == domain.SentimentNegative:
		result.RiskLevel = domain.RiskCritical
		result.Reason = domain.ReasonFrustration
	}

	return result
}

// detectSentiment uses substring containment, not word boundaries:
// "angrybird" counts as "angry".
func detectSentiment(userQuery string) domain.Sentiment {
	q := strings.ToLower(userQuery)
	for _, kw := range negativeKeywords {
		if strings.Contains(q, kw) {
			return domain.SentimentNegative
		}
	}
	return domain.SentimentNeutral
}

// checkGrounding runs the grounding rules in order and stops at the first
// contradiction. response must already be lower-cased.
func checkGrounding(response string, kb *domain.KnowledgeBase) (bool, string) {
	if kb == nil || response == "" {
		return false, ""
	}

	refundDays := kb.Policies.Refund.Days
	threshold := kb.Policies.Shipping.FreeThreshold

	if days, ok := contradicts(refundDaysPattern, response, refundDays); ok {
		return true, fmt.Sprintf("Incorrect refund policy: Bot stated %s days, but policy is %d days", days, refundDays)
	}

	// Returns are checked against the refund window, not policies.return.days.
	if days, ok := contradicts(returnDaysPattern, response, refundDays); ok {
		return true, fmt.Sprintf("Incorrect return policy: Bot stated %s days, but policy is %d days", days, refundDays)
	}

	if amount, ok := contradicts(freeShippingPattern, response, threshold); ok {
		return true, fmt.Sprintf("Incorrect shipping threshold: Bot stated $%s, but threshold is $%d", amount, threshold)
	}

	if amount, ok := contradicts(ordersOverPattern, response, threshold); ok {
		return true, fmt.Sprintf("Incorrect shipping threshold: Bot stated $%s, but threshold is $%d", amount, threshold)
	}

	for _, p := range kb.Products {
		name := strings.ToLower(p.Name)
		if name == "" || !strings.Contains(response, name) {
			continue
		}
		if p.Available && containsAny(response, unavailablePhrases) {
			return true, fmt.Sprintf("Incorrect availability: Bot stated %s is unavailable, but it is in stock", p.Name)
		}
		if !p.Available && containsAny(response, availablePhrases) && !containsAny(response, negatedPhrases) {
			return true, fmt.Sprintf("Incorrect availability: Bot stated %s is available, but it is out of stock", p.Name)
		}
	}

	return false, ""
}

// contradicts reports whether the first match of re in s states a number
// other than want, and returns that number as stated. A number too large for
// an int can never equal want, so it always contradicts.
func contradicts(re *regexp.Regexp, s string, want int) (string, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return strings.TrimLeft(m[1], "0"), true
	}
	if n == want {
		return "", false
	}
	return strconv.Itoa(n), true
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
