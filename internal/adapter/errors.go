package adapter

import (
	"errors"
	"fmt"
)

// ErrDuplicateAdapter is returned by Registry.Register when an adapter
// with the same name is already present.
var ErrDuplicateAdapter = errors.New("adapter name already registered")

// ErrInvalidAdapterName is returned by Registry.Register when the name
// would make qualified or provider-mangled tool names ambiguous.
var ErrInvalidAdapterName = errors.New("invalid adapter name")

// ConnectionError means the transport-level session to one provider could
// not be established. Fatal to that adapter only.
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DiscoveryError means capability listing failed; the adapter is excluded
// from the aggregated capability set.
type DiscoveryError struct {
	Server string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %s: %v", e.Server, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ExecutionError means a remote tool call failed at the transport or
// protocol level. Business-level failures are ToolResult{IsError:true}
// instead.
type ExecutionError struct {
	Server string
	Tool   string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s on %s: %v", e.Tool, e.Server, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// RoutingError means a requested tool could not be matched against the
// capability set. Rejected before any remote dispatch.
type RoutingError struct {
	Tool   string
	Reason string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing %s: %s", e.Tool, e.Reason)
}
