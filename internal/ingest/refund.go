package ingest

import "strings"

var DefaultRefundKeywords = []string{"credited", "refund", "refunded", "amount"}

// RefundMatcher flags complaints whose category text mentions a refund.
// It is a plain keyword match with no statistical grounding; treat the flag as
// a triage hint, not a fraud signal.
type RefundMatcher struct {
	keywords []string
}

func NewRefundMatcher(keywords []string) RefundMatcher {
	cleaned := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			cleaned = append(cleaned, k)
		}
	}
	return RefundMatcher{keywords: cleaned}
}

func (m RefundMatcher) Match(category string) bool {
	text := strings.ToLower(category)
	for _, k := range m.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
