// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers can register
// hooks at startup to receive events about forest builds, vault scanning,
// and API calls.
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
//	    observability.SetBuildHooks(&myBuildHooks{})
//	    observability.SetVaultHooks(&myVaultHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Build().OnBuildStart(ctx, buildID, nodeCount)
//	// ... derive forest ...
//	observability.Build().OnBuildComplete(ctx, buildID, attached, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Build Hooks
// =============================================================================

// BuildHooks receives events from the forest derivation processor.
type BuildHooks interface {
	// OnBuildStart records the start of a forest build.
	OnBuildStart(ctx context.Context, buildID string, nodeCount int)

	// OnNodeAttached records a successful structural attachment.
	OnNodeAttached(ctx context.Context, buildID, nodeID, parentID string)

	// OnPlaceholderCreated records the creation of a placeholder node.
	OnPlaceholderCreated(ctx context.Context, buildID, placeholderID string)

	// OnNodeSkipped records a per-node recoverable failure.
	OnNodeSkipped(ctx context.Context, buildID, nodeID string, err error)

	// OnBuildComplete records the end of a build, successful or not.
	OnBuildComplete(ctx context.Context, buildID string, attached int, duration time.Duration, err error)
}

// =============================================================================
// Vault Hooks
// =============================================================================

// VaultHooks receives events from vault scanning and watching.
type VaultHooks interface {
	// OnScanStart records the start of a vault scan.
	OnScanStart(ctx context.Context, dir string)

	// OnScanComplete records the end of a vault scan.
	OnScanComplete(ctx context.Context, dir string, noteCount int, duration time.Duration, err error)

	// OnNoteChanged records a change notification for a single note.
	OnNoteChanged(ctx context.Context, noteID string)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the API server.
type HTTPHooks interface {
	// OnRequest records an incoming HTTP request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopBuildHooks is a no-op implementation of BuildHooks.
type NoopBuildHooks struct{}

func (NoopBuildHooks) OnBuildStart(context.Context, string, int)                         {}
func (NoopBuildHooks) OnNodeAttached(context.Context, string, string, string)            {}
func (NoopBuildHooks) OnPlaceholderCreated(context.Context, string, string)              {}
func (NoopBuildHooks) OnNodeSkipped(context.Context, string, string, error)              {}
func (NoopBuildHooks) OnBuildComplete(context.Context, string, int, time.Duration, error) {
}

// NoopVaultHooks is a no-op implementation of VaultHooks.
type NoopVaultHooks struct{}

func (NoopVaultHooks) OnScanStart(context.Context, string)                              {}
func (NoopVaultHooks) OnScanComplete(context.Context, string, int, time.Duration, error) {
}
func (NoopVaultHooks) OnNoteChanged(context.Context, string) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                            {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration)       {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	buildHooks BuildHooks = NoopBuildHooks{}
	vaultHooks VaultHooks = NoopVaultHooks{}
	httpHooks  HTTPHooks  = NoopHTTPHooks{}
	hooksMu    sync.RWMutex
)

// SetBuildHooks registers custom build hooks.
// This should be called once at application startup before any builds run.
func SetBuildHooks(h BuildHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		buildHooks = h
	}
}

// SetVaultHooks registers custom vault hooks.
// This should be called once at application startup before any vault operations.
func SetVaultHooks(h VaultHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		vaultHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before the server starts.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Build returns the registered build hooks.
func Build() BuildHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return buildHooks
}

// Vault returns the registered vault hooks.
func Vault() VaultHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return vaultHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	buildHooks = NoopBuildHooks{}
	vaultHooks = NoopVaultHooks{}
	httpHooks = NoopHTTPHooks{}
}
