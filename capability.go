package trustcall

// BackendCapability states how an inference endpoint supports structured
// output. It is an explicit, statically configured property of an endpoint
// identity, resolved once per request and immutable for the process lifetime.
type BackendCapability string

const (
	// CapabilityNativeStructured marks backends that accept a constrained
	// generation directive (a JSON Schema in the request body) and return
	// schema-conforming JSON as message content. vLLM behaves this way.
	CapabilityNativeStructured BackendCapability = "native-structured-output"
	// CapabilityToolCalling marks backends that only support structured
	// output through tool invocation, the stock OpenAI-compatible behavior.
	CapabilityToolCalling BackendCapability = "tool-calling-only"
)

// CapabilityTable maps endpoint identities to their capability. The table is
// built once at configuration time and read-only afterwards, so concurrent
// calls share it without locking. Runtime URL sniffing is deliberately not
// supported: capability is an input, not inferred state.
type CapabilityTable struct {
	entries  map[string]BackendCapability
	fallback BackendCapability
}

// NewCapabilityTable builds a table from explicit endpoint → capability
// entries. fallback is returned for endpoints not present in entries;
// CapabilityToolCalling is the safe fallback since it leaves requests
// untranslated.
func NewCapabilityTable(fallback BackendCapability, entries map[string]BackendCapability) *CapabilityTable {
	copied := make(map[string]BackendCapability, len(entries))
	for endpoint, capability := range entries {
		copied[endpoint] = capability
	}
	if fallback == "" {
		fallback = CapabilityToolCalling
	}
	return &CapabilityTable{entries: copied, fallback: fallback}
}

// Resolve returns the capability configured for the endpoint, or the table's
// fallback when the endpoint is unknown.
func (t *CapabilityTable) Resolve(endpoint string) BackendCapability {
	if t == nil {
		return CapabilityToolCalling
	}
	if capability, ok := t.entries[endpoint]; ok {
		return capability
	}
	return t.fallback
}
