package cache

import "time"

// TTLClass groups data types into expiry tiers. Every data type maps to
// exactly one class; the mapping is part of the platform's behavioral
// contract and must not drift between services.
type TTLClass string

const (
	TTLShort     TTLClass = "short"     // volatile data: metrics, editor configs
	TTLStandard  TTLClass = "standard"  // agent configs, collections
	TTLExtended  TTLClass = "extended"  // embeddings, conversation memory
	TTLPermanent TTLClass = "permanent" // static reference data, no expiry
)

// Duration returns the numeric TTL for the class. Zero means no expiry.
func (c TTLClass) Duration() time.Duration {
	switch c {
	case TTLShort:
		return 300 * time.Second
	case TTLExtended:
		return 86400 * time.Second
	case TTLPermanent:
		return 0
	default:
		return 3600 * time.Second
	}
}

// dataTypeTTL is the static data-type to tier table.
var dataTypeTTL = map[string]TTLClass{
	"metrics":             TTLShort,
	"editor_config":       TTLShort,
	"job_status":          TTLShort,
	"agent_config":        TTLStandard,
	"collection":          TTLStandard,
	"conversation":        TTLStandard,
	"document":            TTLStandard,
	"query_result":        TTLStandard,
	"embedding":           TTLExtended,
	"conversation_memory": TTLExtended,
	"workflow_state":      TTLExtended,
	"system":              TTLPermanent,
}

// ResolveTTL returns the TTL class for a data type. Unknown types
// resolve to STANDARD on purpose: a new data type must never crash the
// system, it only gets conservative caching until it is registered.
func ResolveTTL(dataType string) TTLClass {
	if class, ok := dataTypeTTL[dataType]; ok {
		return class
	}
	return TTLStandard
}
