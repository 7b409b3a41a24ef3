package types

// Event represents a typed event emitted during state transitions. Attribute
// values are strings so payloads serialise identically over RPC and logs.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
