package validator

import "regexp"

// Pattern tables are ordered: scanning stops at the first match within a
// category. They are a best-effort heuristic layer, not a substitute for
// parameterized queries or output escaping at the data-access layer.
var (
	// xssPatterns flag script injection attempts in the serialized payload.
	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script\b[^>]*>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)\bon\w+\s*=`),
		regexp.MustCompile(`(?i)<iframe\b`),
		regexp.MustCompile(`(?i)\beval\s*\(`),
		regexp.MustCompile(`(?i)document\.cookie`),
	}

	// sqlPatterns flag SQL injection signals: DDL/DML keywords, clause
	// keywords, comment tokens, and boolean injection.
	sqlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(select|insert|update|delete|drop|create|alter|truncate)\b`),
		regexp.MustCompile(`(?i)\b(union|where|order\s+by|group\s+by)\b`),
		regexp.MustCompile(`--|#|/\*|\*/`),
		regexp.MustCompile(`(?i)\b(or|and)\b\s+['"]?\w+['"]?\s*=\s*['"]?\w+`),
	}

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// phoneSeparators are stripped before matching phonePattern (E.164 shape,
	// 7 to 15 digits, no leading zero).
	phoneSeparators = regexp.MustCompile(`[\s\-()]`)
	phonePattern    = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

	// shortenerDomains is a small denylist of URL-shortener hosts; shortened
	// avatar or website URLs hide their real destination.
	shortenerDomains = []string{
		"bit.ly",
		"tinyurl.com",
		"t.co",
		"goo.gl",
		"is.gd",
		"ow.ly",
		"buff.ly",
		"tiny.cc",
	}
)

// Risk score increments per rule.
const (
	scoreInvalidFormat  = 30
	scoreXSS            = 50
	scoreSQLInjection   = 70
	scoreBadEmail       = 10
	scoreBadPhone       = 10
	scoreInvalidURL     = 15
	scoreShortenerURL   = 20
	scoreOversizeAvatar = 25
	scoreSystemError    = 100

	// blockThreshold: at or above this score the payload is rejected
	// outright and counted as suspicious activity.
	blockThreshold = 50
)
