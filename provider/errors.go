package provider

import "fmt"

// ConfigError reports missing credentials or an unknown provider key.
// Fatal before any turn starts.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %s", e.Detail) }

// NetworkError reports a connection failure or timeout talking to a
// backend. It aborts the current turn and is not retried automatically.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError reports a response that does not match the expected shape
// for the selected adapter, or a tool-call argument document that fails to
// parse once complete.
type ProtocolError struct {
	Provider string
	Detail   string
	Err      error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: protocol error: %s: %v", e.Provider, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: protocol error: %s", e.Provider, e.Detail)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// CapabilityError reports a request for a feature the backend protocol
// cannot express, such as structured tool calling over the Ollama NDJSON
// protocol.
type CapabilityError struct {
	Provider   string
	Capability string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: capability unsupported: %s", e.Provider, e.Capability)
}
