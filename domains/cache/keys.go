package cache

import (
	"strings"

	pkgError "github.com/vectorhub/ragcache/pkg/error"
)

// Hierarchy carries the optional key components. When present they are
// appended in a fixed canonical order so prefix-based invalidation can
// group related entries.
type Hierarchy struct {
	AgentID        string
	ConversationID string
	CollectionID   string
	DocumentID     string
	ChunkID        string
}

// tenantAgnosticTypes may build keys without a tenant segment.
var tenantAgnosticTypes = map[string]bool{
	"system": true,
}

// BuildKey maps (dataType, resourceID, tenantID, hierarchy) onto the
// canonical cache key "{tenant}:{type}:{id}[:{field}={value}]*".
// Identical inputs always produce the identical string.
func BuildKey(dataType, resourceID, tenantID string, h Hierarchy) (string, error) {
	if dataType == "" || resourceID == "" {
		return "", pkgError.ConfigurationError("cache key requires data_type and resource_id")
	}
	if tenantID == "" && !tenantAgnosticTypes[dataType] {
		return "", pkgError.ConfigurationError("tenant_id is required for data_type " + dataType)
	}

	var b strings.Builder
	if tenantID != "" {
		b.WriteString(tenantID)
	} else {
		b.WriteString("global")
	}
	b.WriteString(":")
	b.WriteString(dataType)
	b.WriteString(":")
	b.WriteString(resourceID)

	// Canonical hierarchy order: agent, conversation, collection,
	// document, chunk.
	appendField(&b, "agent_id", h.AgentID)
	appendField(&b, "conversation_id", h.ConversationID)
	appendField(&b, "collection_id", h.CollectionID)
	appendField(&b, "document_id", h.DocumentID)
	appendField(&b, "chunk_id", h.ChunkID)

	return b.String(), nil
}

func appendField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString(":")
	b.WriteString(name)
	b.WriteString("=")
	b.WriteString(value)
}

// TenantTypePrefix returns the invalidation prefix covering every key
// of one data type inside one tenant. The tenant segment always leads,
// so wildcard invalidation can never cross tenants.
func TenantTypePrefix(tenantID, dataType string) string {
	return tenantID + ":" + dataType + ":"
}
