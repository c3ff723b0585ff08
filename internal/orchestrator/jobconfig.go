package orchestrator

import (
	"time"

	"github.com/knowledgetools/agentkb/internal/config"
)

// jobConfig is the typed view of a job's opaque config map, with system
// defaults applied. Config validation and ceiling clamping happen at the
// submission boundary; this parser only interprets.
type jobConfig struct {
	// DocumentIDs restricts summarization to an explicit document set.
	DocumentIDs []string

	// Query drives search and deep_search jobs.
	Query string

	// MaxDocuments caps refresh batch size.
	MaxDocuments int

	// Effective guardrail ceilings for this execution.
	MaxRuntime time.Duration
	MaxCostUSD float64
}

func parseJobConfig(raw map[string]any, cfg config.Config) jobConfig {
	jc := jobConfig{
		MaxDocuments: 20,
		MaxRuntime:   time.Duration(cfg.MaxJobRuntimeMinutes * float64(time.Minute)),
		MaxCostUSD:   cfg.MaxJobCostUSD,
	}
	if raw == nil {
		return jc
	}

	if v, ok := raw["document_ids"]; ok {
		jc.DocumentIDs = asStringSlice(v)
	}
	if v, ok := raw["query"].(string); ok {
		jc.Query = v
	}
	if v, ok := asFloat(raw["max_documents"]); ok && v > 0 {
		jc.MaxDocuments = int(v)
	}
	if v, ok := asFloat(raw["max_runtime_minutes"]); ok && v > 0 {
		jc.MaxRuntime = time.Duration(v * float64(time.Minute))
	}
	if v, ok := asFloat(raw["max_cost_usd"]); ok && v > 0 {
		jc.MaxCostUSD = v
	}
	return jc
}

// asStringSlice handles both []string and the []any form that map-typed
// configs decode into.
func asStringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// asFloat handles the numeric types a decoded config map may carry.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
