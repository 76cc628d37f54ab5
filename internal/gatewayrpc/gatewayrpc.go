// Package gatewayrpc implements the gateway RPC surface (spec component
// C10): the two methods a running gateway exposes so command-line tools can
// hydrate secret refs from the live, already-resolved snapshot instead of
// re-running their own resolution — secrets.reload and secrets.resolve —
// plus the CLI-side helper that calls secrets.resolve and splices the
// result into a command's own local config.
package gatewayrpc

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"aureuma/secrets-gateway/internal/configtree"
)

const (
	MethodReload  = "secrets.reload"
	MethodResolve = "secrets.resolve"
)

// Error codes returned by the gateway RPC surface.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnavailable    = "UNAVAILABLE"
	CodeInternal       = "INTERNAL"
)

// Request is one JSON-over-WebSocket RPC call. Params is left as raw JSON
// until the method is known, since the two methods have unrelated shapes.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the envelope returned for every Request, keyed back to it by
// ID. Exactly one of Result/Error is set.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is both the wire error shape and, via Error(), the Go error a
// client-side Caller returns when a call fails server-side.
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("gatewayrpc: %s: %s", e.Code, e.Message)
}

// ReloadParams is secrets.reload's (empty) request body.
type ReloadParams struct{}

// ReloadResult is secrets.reload's successful response body.
type ReloadResult struct {
	OK           bool `json:"ok"`
	WarningCount int  `json:"warningCount"`
}

// ResolveParams is secrets.resolve's request body.
type ResolveParams struct {
	CommandName string   `json:"commandName"`
	TargetIDs   []string `json:"targetIds"`
}

// Assignment is one resolved value in a secrets.resolve response, mirroring
// snapshot.ResolvedAssignment's shape on the wire.
type Assignment struct {
	Path         string          `json:"path"`
	PathSegments []string        `json:"pathSegments"`
	Value        configtree.Node `json:"value"`
}

// ResolveResult is secrets.resolve's successful response body.
type ResolveResult struct {
	OK          bool         `json:"ok"`
	Assignments []Assignment `json:"assignments"`
	Diagnostics []string     `json:"diagnostics"`
}

// inactiveSurfaceSentinel is the exact substring secretref.RefIgnoredInactiveSurface
// builds its message from. A diagnostic containing it marks its path as
// expected-inactive rather than a hard resolution failure.
const inactiveSurfaceSentinel = ": secret ref is configured on an inactive surface;"

var (
	reloadSchema  = mustResolvedSchema[ReloadParams]()
	resolveSchema = mustResolvedSchema[ResolveParams]()
)

// mustResolvedSchema builds and resolves the JSON Schema for T once at
// package init. T is always one of this package's own request-body types,
// so a failure here is a programmer error, not a runtime condition to
// recover from.
func mustResolvedSchema[T any]() *jsonschema.Resolved {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("gatewayrpc: building schema for %T: %v", *new(T), err))
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("gatewayrpc: resolving schema for %T: %v", *new(T), err))
	}
	return resolved
}

// decodeAndValidate validates raw against resolved before decoding it into a
// T, so a malformed or schema-violating request never reaches handler logic.
// Untrusted bytes from a network peer are the one input this module
// validates with jsonschema-go.
func decodeAndValidate[T any](resolved *jsonschema.Resolved, raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return out, fmt.Errorf("params: invalid json: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return out, fmt.Errorf("params: schema validation: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("params: decode: %w", err)
	}
	return out, nil
}

func errorResponse(id, code, message string) Response {
	return Response{ID: id, Error: &RPCError{Code: code, Message: message}}
}

func resultResponse(id string, v any) Response {
	raw, err := json.Marshal(v)
	if err != nil {
		return errorResponse(id, CodeInternal, fmt.Sprintf("marshal result: %v", err))
	}
	return Response{ID: id, Result: raw}
}
