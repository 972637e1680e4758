package metadata

// Metadata carries the envelope-level attributes delivered alongside a
// message, such as the correlation id. Maps are never mutated in place;
// derivation helpers always return a copy.
type Metadata map[string]string

// Well-known metadata keys.
const (
	KeyCorrelationID = "correlation_id"
	KeyMessageName   = "message_name"
	KeyMessageKind   = "message_kind"
)

// New builds a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	cloned := make(Metadata, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// With returns a clone containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := make(Metadata, len(m)+1)
	for k, v := range m {
		cloned[k] = v
	}
	cloned[key] = value
	return cloned
}

// CorrelationID returns the correlation id attribute, if present.
func (m Metadata) CorrelationID() string {
	return m[KeyCorrelationID]
}
