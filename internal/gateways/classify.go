package gateway

import "strings"

// ErrorCategory buckets vendor error text for dashboards. Substring
// matching is a best-effort heuristic, not a strict taxonomy.
type ErrorCategory string

const (
	ErrorInvalidNumber ErrorCategory = "invalid_number"
	ErrorUnreachable   ErrorCategory = "unreachable"
	ErrorRateLimited   ErrorCategory = "rate_limited"
	ErrorTimeout       ErrorCategory = "timeout"
	ErrorBlocked       ErrorCategory = "blocked"
	ErrorTemplate      ErrorCategory = "template_error"
	ErrorOther         ErrorCategory = "other"
)

var errorPatterns = []struct {
	category ErrorCategory
	needles  []string
}{
	{ErrorInvalidNumber, []string{"invalid number", "not a valid phone", "invalid 'to'", "unverified number"}},
	{ErrorUnreachable, []string{"unreachable", "not a whatsapp user", "no route", "undeliverable", "absent subscriber"}},
	{ErrorRateLimited, []string{"rate limit", "too many requests", "quota exceeded", "throttl"}},
	{ErrorTimeout, []string{"timeout", "timed out", "deadline exceeded", "context deadline"}},
	{ErrorBlocked, []string{"blocked", "blacklist", "opted out", "stop message", "spam"}},
	{ErrorTemplate, []string{"template", "content sid", "variable mismatch"}},
}

// ClassifyError maps a vendor error message to a monitoring category.
func ClassifyError(errText string) ErrorCategory {
	lower := strings.ToLower(errText)
	for _, p := range errorPatterns {
		for _, needle := range p.needles {
			if strings.Contains(lower, needle) {
				return p.category
			}
		}
	}
	return ErrorOther
}
