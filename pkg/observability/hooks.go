// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers can register
// hooks at startup to receive events about flow execution, external tool
// invocations, and cache operations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetFlowHooks(&myFlowHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Flow().OnStepStart(ctx, design, step)
//	// ... run the step ...
//	observability.Flow().OnStepComplete(ctx, design, step, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Flow Hooks
// =============================================================================

// FlowHooks receives events from flow execution.
type FlowHooks interface {
	// OnRunStart fires when a flow run begins.
	OnRunStart(ctx context.Context, runID, design string, steps []string)

	// OnRunComplete fires when a flow run finishes, successfully or not.
	OnRunComplete(ctx context.Context, runID, design string, duration time.Duration, err error)

	// OnStepStart fires before a step executes (including cached steps).
	OnStepStart(ctx context.Context, design, step string)

	// OnStepComplete fires after a step finishes. cached reports whether
	// the result was replayed from the step cache.
	OnStepComplete(ctx context.Context, design, step string, cached bool, duration time.Duration, err error)
}

// noopFlowHooks is the default no-op implementation.
type noopFlowHooks struct{}

func (noopFlowHooks) OnRunStart(context.Context, string, string, []string) {}
func (noopFlowHooks) OnRunComplete(context.Context, string, string, time.Duration, error) {
}
func (noopFlowHooks) OnStepStart(context.Context, string, string) {}
func (noopFlowHooks) OnStepComplete(context.Context, string, string, bool, time.Duration, error) {
}

// =============================================================================
// Tool Hooks
// =============================================================================

// ToolHooks receives events about external tool invocations.
type ToolHooks interface {
	// OnToolExec fires just before the external tool process starts.
	OnToolExec(ctx context.Context, tool, step string, args []string)

	// OnToolExit fires when the process exits.
	OnToolExit(ctx context.Context, tool, step string, exitCode int, duration time.Duration)
}

// noopToolHooks is the default no-op implementation.
type noopToolHooks struct{}

func (noopToolHooks) OnToolExec(context.Context, string, string, []string)          {}
func (noopToolHooks) OnToolExit(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events about step-cache operations.
type CacheHooks interface {
	// OnCacheHit fires when a step result is replayed from cache.
	OnCacheHit(ctx context.Context, key string)

	// OnCacheMiss fires when a lookup misses.
	OnCacheMiss(ctx context.Context, key string)

	// OnCacheWrite fires after a step result is stored.
	OnCacheWrite(ctx context.Context, key string, size int)
}

// noopCacheHooks is the default no-op implementation.
type noopCacheHooks struct{}

func (noopCacheHooks) OnCacheHit(context.Context, string)        {}
func (noopCacheHooks) OnCacheMiss(context.Context, string)       {}
func (noopCacheHooks) OnCacheWrite(context.Context, string, int) {}

// =============================================================================
// Registry
// =============================================================================

var (
	mu         sync.RWMutex
	flowHooks  FlowHooks  = noopFlowHooks{}
	toolHooks  ToolHooks  = noopToolHooks{}
	cacheHooks CacheHooks = noopCacheHooks{}
)

// SetFlowHooks registers flow execution hooks.
// Pass nil to restore the no-op implementation.
func SetFlowHooks(h FlowHooks) {
	mu.Lock()
	defer mu.Unlock()
	if h == nil {
		flowHooks = noopFlowHooks{}
		return
	}
	flowHooks = h
}

// SetToolHooks registers tool invocation hooks.
// Pass nil to restore the no-op implementation.
func SetToolHooks(h ToolHooks) {
	mu.Lock()
	defer mu.Unlock()
	if h == nil {
		toolHooks = noopToolHooks{}
		return
	}
	toolHooks = h
}

// SetCacheHooks registers cache operation hooks.
// Pass nil to restore the no-op implementation.
func SetCacheHooks(h CacheHooks) {
	mu.Lock()
	defer mu.Unlock()
	if h == nil {
		cacheHooks = noopCacheHooks{}
		return
	}
	cacheHooks = h
}

// Flow returns the registered flow hooks.
func Flow() FlowHooks {
	mu.RLock()
	defer mu.RUnlock()
	return flowHooks
}

// Tool returns the registered tool hooks.
func Tool() ToolHooks {
	mu.RLock()
	defer mu.RUnlock()
	return toolHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	mu.RLock()
	defer mu.RUnlock()
	return cacheHooks
}
