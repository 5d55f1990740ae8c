package marketdata

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// RateLimitInfo is the classifier's verdict for one upstream response.
// Ephemeral, computed per response, never persisted.
type RateLimitInfo struct {
	IsRateLimited     bool
	RetryAfterSeconds int
	Message           string
}

// Body fields that upstream providers use to carry error or informational
// markers. AlphaVantage reports quota exhaustion as a 200 with a "Note" or
// "Information" field; Finnhub uses a plain "error" field.
var rateLimitFields = []string{"Error Message", "Note", "Information", "error"}

// Substring vocabulary indicating quota/frequency/call-limit exhaustion,
// matched case-insensitively.
var rateLimitVocabulary = []string{
	"api call frequency",
	"rate limit",
	"premium",
	"quota",
	"exceeded",
	"api limit",
	"thank you for using alpha vantage",
}

// ClassifyResponse decides whether an upstream call was throttled,
// independent of which provider produced it. It is a pure function, total
// over its inputs: malformed or missing fields default to "not rate-limited".
// Decision order: HTTP 429 first, then the body's known error fields.
func ClassifyResponse(statusCode int, header http.Header, body []byte) RateLimitInfo {
	if statusCode == http.StatusTooManyRequests {
		info := RateLimitInfo{IsRateLimited: true, Message: "Rate limit exceeded"}
		if header != nil {
			if retryAfter := header.Get("Retry-After"); retryAfter != "" {
				if secs, err := strconv.Atoi(retryAfter); err == nil {
					info.RetryAfterSeconds = secs
				}
			}
		}
		return info
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return RateLimitInfo{}
	}
	return classifyBody(parsed)
}

func classifyBody(body map[string]any) RateLimitInfo {
	for _, field := range rateLimitFields {
		message, okStr := body[field].(string)
		if !okStr || message == "" {
			continue
		}
		lower := strings.ToLower(message)
		for _, marker := range rateLimitVocabulary {
			if strings.Contains(lower, marker) {
				return RateLimitInfo{IsRateLimited: true, Message: message}
			}
		}
	}
	return RateLimitInfo{}
}
