// Package sanitize provides input cleanup and job-config validation guards.
// Every string handed to the LLM transport or stored in checkpoints and events
// passes through here first.
package sanitize

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxConfigStringLength caps sanitized string values inside job configs.
const MaxConfigStringLength = 10000

// ErrInvalidConfig indicates a job config that failed validation.
var ErrInvalidConfig = errors.New("invalid job config")

var (
	configKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	controlChars     = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")
	wildcardStars    = regexp.MustCompile(`\*{4,}`)
	wildcardMarks    = regexp.MustCompile(`\?{4,}`)
)

// Markers that suggest code injection attempts in config string values.
var injectionMarkers = []string{"eval(", "exec(", "__import__", "compile("}

// Text sanitizes free-form text: trims whitespace, strips control characters
// (keeping newline, carriage return and tab), truncates to maxLength and
// escapes HTML entities.
func Text(raw string, maxLength int) string {
	s := strings.TrimSpace(raw)
	s = controlChars.ReplaceAllString(s, "")
	if maxLength > 0 {
		s = cutAtRune(s, maxLength)
	}
	return html.EscapeString(s)
}

// cutAtRune truncates s to at most max bytes without splitting a rune.
func cutAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// SearchQuery sanitizes a keyword-search query: strips characters with query
// syntax meaning, limits wildcard runs and caps length at 500.
func SearchQuery(query string) string {
	s := strings.TrimSpace(query)
	s = strings.ReplaceAll(s, ";", "")
	s = strings.ReplaceAll(s, "-", "")
	s = wildcardStars.ReplaceAllString(s, "***")
	s = wildcardMarks.ReplaceAllString(s, "???")
	return cutAtRune(s, 500)
}

// JobConfig validates and sanitizes a job configuration map. Keys must be
// identifier-like; string values are scanned for code-injection markers and
// sanitized; numeric guardrail overrides must stay within the system ceilings.
// Returns the sanitized copy or an error wrapping ErrInvalidConfig.
func JobConfig(cfg map[string]any, maxRuntimeMinutes, maxCostUSD float64) (map[string]any, error) {
	sanitized := make(map[string]any, len(cfg))

	for key, value := range cfg {
		if !configKeyPattern.MatchString(key) {
			return nil, fmt.Errorf("%w: invalid key %q", ErrInvalidConfig, key)
		}

		switch v := value.(type) {
		case string:
			lower := strings.ToLower(v)
			for _, marker := range injectionMarkers {
				if strings.Contains(lower, marker) {
					return nil, fmt.Errorf("%w: value for %q contains dangerous code pattern", ErrInvalidConfig, key)
				}
			}
			sanitized[key] = Text(v, MaxConfigStringLength)
		case int, int32, int64, float32, float64, bool, nil:
			sanitized[key] = v
		case []any, []string, map[string]any:
			sanitized[key] = v
		default:
			return nil, fmt.Errorf("%w: unsupported value type %T for key %q", ErrInvalidConfig, value, key)
		}
	}

	if raw, ok := sanitized["max_runtime_minutes"]; ok {
		runtime, ok := asFloat(raw)
		if !ok || runtime < 0 || runtime > maxRuntimeMinutes {
			return nil, fmt.Errorf("%w: max_runtime_minutes must be between 0 and %g", ErrInvalidConfig, maxRuntimeMinutes)
		}
	}

	if raw, ok := sanitized["max_cost_usd"]; ok {
		cost, ok := asFloat(raw)
		if !ok || cost < 0 || cost > maxCostUSD {
			return nil, fmt.Errorf("%w: max_cost_usd must be between 0 and %g", ErrInvalidConfig, maxCostUSD)
		}
	}

	return sanitized, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
