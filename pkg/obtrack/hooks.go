package obtrack

import "context"

// Hooks defines event callbacks for instrumented calls and resource lookups.
// Hooks run synchronously on the calling goroutine.
type Hooks struct {
	// OnCall is called after an instrumented call's counter was incremented
	OnCall []OnCallHook

	// OnCallError is called when an instrumented call returns an error
	OnCallError []OnCallErrorHook

	// OnHit is called when resource content was served from the store
	OnHit []OnHitHook

	// OnMiss is called when resource content had to be fetched
	OnMiss []OnMissHook

	// OnFetchError is called when the underlying fetch failed
	OnFetchError []OnFetchErrorHook
}

// Hook function type definitions
type (
	// OnCallHook receives the operation identifier and its counter after the increment
	OnCallHook func(ctx context.Context, id string, count int64)

	// OnCallErrorHook receives the operation identifier and the error the call returned
	OnCallErrorHook func(ctx context.Context, id string, err error)

	// OnHitHook receives the resource and its access count
	OnHitHook func(ctx context.Context, resource string, accesses int64)

	// OnMissHook receives the resource and its access count
	OnMissHook func(ctx context.Context, resource string, accesses int64)

	// OnFetchErrorHook receives the resource and the fetch error
	OnFetchErrorHook func(ctx context.Context, resource string, err error)
)

// AddOnCall adds an OnCall hook
func (h *Hooks) AddOnCall(hook OnCallHook) {
	h.OnCall = append(h.OnCall, hook)
}

// AddOnCallError adds an OnCallError hook
func (h *Hooks) AddOnCallError(hook OnCallErrorHook) {
	h.OnCallError = append(h.OnCallError, hook)
}

// AddOnHit adds an OnHit hook
func (h *Hooks) AddOnHit(hook OnHitHook) {
	h.OnHit = append(h.OnHit, hook)
}

// AddOnMiss adds an OnMiss hook
func (h *Hooks) AddOnMiss(hook OnMissHook) {
	h.OnMiss = append(h.OnMiss, hook)
}

// AddOnFetchError adds an OnFetchError hook
func (h *Hooks) AddOnFetchError(hook OnFetchErrorHook) {
	h.OnFetchError = append(h.OnFetchError, hook)
}

// Merge appends all hooks of other to h
func (h *Hooks) Merge(other *Hooks) *Hooks {
	if other == nil {
		return h
	}
	h.OnCall = append(h.OnCall, other.OnCall...)
	h.OnCallError = append(h.OnCallError, other.OnCallError...)
	h.OnHit = append(h.OnHit, other.OnHit...)
	h.OnMiss = append(h.OnMiss, other.OnMiss...)
	h.OnFetchError = append(h.OnFetchError, other.OnFetchError...)
	return h
}

func (h *Hooks) invokeOnCall(ctx context.Context, id string, count int64) {
	if h == nil {
		return
	}
	for _, hook := range h.OnCall {
		if hook != nil {
			hook(ctx, id, count)
		}
	}
}

func (h *Hooks) invokeOnCallError(ctx context.Context, id string, err error) {
	if h == nil {
		return
	}
	for _, hook := range h.OnCallError {
		if hook != nil {
			hook(ctx, id, err)
		}
	}
}

func (h *Hooks) invokeOnHit(ctx context.Context, resource string, accesses int64) {
	if h == nil {
		return
	}
	for _, hook := range h.OnHit {
		if hook != nil {
			hook(ctx, resource, accesses)
		}
	}
}

func (h *Hooks) invokeOnMiss(ctx context.Context, resource string, accesses int64) {
	if h == nil {
		return
	}
	for _, hook := range h.OnMiss {
		if hook != nil {
			hook(ctx, resource, accesses)
		}
	}
}

func (h *Hooks) invokeOnFetchError(ctx context.Context, resource string, err error) {
	if h == nil {
		return
	}
	for _, hook := range h.OnFetchError {
		if hook != nil {
			hook(ctx, resource, err)
		}
	}
}
