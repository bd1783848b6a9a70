package sevnup

import "fmt"

// TransientStoreError wraps a failure from the persistence backend. It is
// always logged and swallowed by the reconciler and the lookup interceptor;
// the failing operation is retried on the next opportunity (the next
// lookup, or the next ring-change reconciliation).
type TransientStoreError struct {
	VNode int
	Key   []byte
	Err   error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("sevnup: transient store error on vnode %d: %s", e.VNode, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// HostCallbackError wraps a failure returned by a host-supplied recover or
// release callback. Also always logged and swallowed.
type HostCallbackError struct {
	Op    string // "recover" or "release"
	VNode int
	Key   []byte
	Err   error
}

func (e *HostCallbackError) Error() string {
	return fmt.Sprintf("sevnup: host %s callback error on vnode %d: %s", e.Op, e.VNode, e.Err)
}

func (e *HostCallbackError) Unwrap() error { return e.Err }

// ConfigurationError indicates invalid construction arguments. Returned from
// New, never from any runtime path.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("sevnup: invalid configuration for %s: %s", e.Field, e.Reason)
}
