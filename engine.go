package trusty

import (
	"context"
	"fmt"
)

// AccessControlEngine reduces a decision request to a single allow/deny. It
// is stateless: every call is an independent computation over the current
// store snapshot, so arbitrarily many decisions may run concurrently.
type AccessControlEngine struct {
	store       DirectoryStore
	resolver    *RoleResolver
	cache       *DecisionCache
	logger      Logger
	traceIDFunc TraceIDFunc
}

// EngineOption configures an AccessControlEngine during construction.
type EngineOption func(*AccessControlEngine) error

// WithDecisionCache installs an optional decision cache. Whoever mutates
// roles or memberships must clear it; Directory does so synchronously.
func WithDecisionCache(c *DecisionCache) EngineOption {
	return func(e *AccessControlEngine) error {
		e.cache = c
		return nil
	}
}

func NewAccessControlEngine(store DirectoryStore, opts ...EngineOption) (*AccessControlEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("directory store is required")
	}
	e := &AccessControlEngine{
		store:       store,
		resolver:    NewRoleResolver(store),
		logger:      NewNullLogger(),
		traceIDFunc: defaultTraceID,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// IsAllowed answers whether any role assigned to the actor, scoped to the
// request's namespace, grants the requested action on the resource.
// Malformed input is rejected before any store access; store failures
// propagate as ErrStoreUnavailable rather than a deny.
func (e *AccessControlEngine) IsAllowed(ctx context.Context, req *IsAllowedRequest) (IsAllowedResult, error) {
	if err := validateRequest(req); err != nil {
		return IsAllowedResult{}, err
	}

	traceID := e.traceIDFunc()

	if e.cache != nil {
		if allowed, ok := e.cache.Get(req); ok {
			e.logger.Debug("decision served from cache",
				"trace_id", traceID,
				"external_user_id", req.ExternalUserID,
				"namespace", req.Namespace,
				"allowed", allowed)
			return IsAllowedResult{Result: allowed}, nil
		}
	}

	roleIDs, err := e.resolver.Resolve(ctx, req.ExternalUserID)
	if err != nil {
		e.logger.Error("role resolution failed", "trace_id", traceID, "external_user_id", req.ExternalUserID, "error", err.Error())
		return IsAllowedResult{}, err
	}

	result := IsAllowedResult{}
	if len(roleIDs) > 0 {
		matched, err := e.store.GetRolesMatchingRequest(ctx, roleIDs, req)
		if err != nil {
			e.logger.Error("role matching failed", "trace_id", traceID, "external_user_id", req.ExternalUserID, "error", err.Error())
			return IsAllowedResult{}, storeFailure("get roles matching request", err)
		}
		result.Result = len(matched) > 0
	}

	if e.cache != nil {
		e.cache.Set(req, result.Result)
	}

	e.logger.Debug("decision",
		"trace_id", traceID,
		"external_user_id", req.ExternalUserID,
		"namespace", req.Namespace,
		"action", req.Action,
		"resource", req.Resource,
		"roles", len(roleIDs),
		"allowed", result.Result)
	return result, nil
}

func validateRequest(req *IsAllowedRequest) error {
	if req == nil {
		return fmt.Errorf("%w: missing body", ErrInvalidRequest)
	}
	switch {
	case req.ExternalUserID == "":
		return fmt.Errorf("%w: external_user_id is required", ErrInvalidRequest)
	case req.Namespace == "":
		return fmt.Errorf("%w: namespace is required", ErrInvalidRequest)
	case req.Action == "":
		return fmt.Errorf("%w: action is required", ErrInvalidRequest)
	case req.Resource == "":
		return fmt.Errorf("%w: resource is required", ErrInvalidRequest)
	}
	return nil
}
