package types

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Propagation headers carrying the request context triple.
const (
	HeaderTraceID   = "x-trace-id"
	HeaderRunID     = "x-run-id"
	HeaderPolicySet = "x-policy-set"
)

// DefaultPolicySet is assumed when the caller does not name one.
const DefaultPolicySet = "default"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID   contextKey = "trace_id"
	keyRunID     contextKey = "run_id"
	keyPolicySet contextKey = "policy_set_id"
)

// RequestContext is the identifier triple propagated with every request:
// trace ID, run ID, and policy set ID.
type RequestContext struct {
	TraceID     string `json:"trace_id"`
	RunID       string `json:"run_id"`
	PolicySetID string `json:"policy_set_id"`
}

// ContextFromHeaders reads the triple from inbound headers. Missing
// fields stay empty; call Ensure to fill them.
func ContextFromHeaders(h http.Header) RequestContext {
	return RequestContext{
		TraceID:     h.Get(HeaderTraceID),
		RunID:       h.Get(HeaderRunID),
		PolicySetID: h.Get(HeaderPolicySet),
	}
}

// Ensure fills missing fields: fresh UUIDs for trace and run IDs, the
// default policy set name otherwise. The result is always complete.
func (rc RequestContext) Ensure() RequestContext {
	if rc.TraceID == "" {
		rc.TraceID = uuid.NewString()
	}
	if rc.RunID == "" {
		rc.RunID = uuid.NewString()
	}
	if rc.PolicySetID == "" {
		rc.PolicySetID = DefaultPolicySet
	}
	return rc
}

// ApplyHeaders writes the triple onto a header set. Empty fields are
// skipped.
func (rc RequestContext) ApplyHeaders(h http.Header) {
	if rc.TraceID != "" {
		h.Set(HeaderTraceID, rc.TraceID)
	}
	if rc.RunID != "" {
		h.Set(HeaderRunID, rc.RunID)
	}
	if rc.PolicySetID != "" {
		h.Set(HeaderPolicySet, rc.PolicySetID)
	}
}

// WithRequestContext stores the full triple in the context.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	ctx = WithTraceID(ctx, rc.TraceID)
	ctx = WithRunID(ctx, rc.RunID)
	return WithPolicySet(ctx, rc.PolicySetID)
}

// RequestContextFrom rebuilds the triple from the context. Fields that
// were never stored come back empty.
func RequestContextFrom(ctx context.Context) RequestContext {
	rc := RequestContext{}
	rc.TraceID, _ = TraceID(ctx)
	rc.RunID, _ = RunID(ctx)
	rc.PolicySetID, _ = PolicySet(ctx)
	return rc
}

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithRunID adds run ID to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, keyRunID, runID)
}

// RunID extracts run ID from context.
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRunID).(string)
	return v, ok && v != ""
}

// WithPolicySet adds policy set ID to context.
func WithPolicySet(ctx context.Context, policySet string) context.Context {
	return context.WithValue(ctx, keyPolicySet, policySet)
}

// PolicySet extracts policy set ID from context.
func PolicySet(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyPolicySet).(string)
	return v, ok && v != ""
}
