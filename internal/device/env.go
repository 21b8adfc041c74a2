// File: internal/device/env.go
// Description: The abstract device environment boundary. A live device session
// is represented by an opaque handle, possibly composed as a finite, acyclic
// chain of capability wrappers. All chain traversal helpers live here.

package device

// Capability identifies an ability a wrapper layer adds to the bare handle.
type Capability string

const (
	// CapabilityAccessibility marks a wrapper able to stream hierarchical
	// accessibility snapshots off the device.
	CapabilityAccessibility Capability = "accessibility"
)

// EnvironmentHandle is an opaque reference to a live device session. Handles
// form a finite chain: each link may wrap another, terminating at a root
// handle with no further wrapping reference.
//
// Callers guarantee the chain is acyclic; traversal performs no cycle
// detection of its own.
type EnvironmentHandle interface {
	// Wrapped returns the next handle in the wrapping chain, or nil when
	// this handle is the root.
	Wrapped() EnvironmentHandle
	// Exposes reports whether this link itself provides the capability.
	// It must not consult the rest of the chain.
	Exposes(c Capability) bool
}

// AccessibilityProvider is implemented by the capability wrapper that exposes
// CapabilityAccessibility. Snapshots arrive asynchronously from the device and
// are buffered until drained.
type AccessibilityProvider interface {
	EnvironmentHandle
	// AccumulateSnapshots drains all snapshots buffered since the last call,
	// keyed by category ("accessibility_tree" for UI forests), ordered oldest
	// to newest within each category.
	AccumulateSnapshots() map[string][]*Forest
	// AttemptEnableNetworking re-enables outbound networking on the device.
	// Used as remediation when airplane mode silently breaks the snapshot
	// transport.
	AttemptEnableNetworking() error
}

// ShellExecutor runs a shell command on the device and returns its combined
// output.
type ShellExecutor interface {
	Shell(args ...string) (string, error)
}

// FileTransfer moves files between host and device.
type FileTransfer interface {
	// Push copies a local file to the given remote path.
	Push(localPath, remotePath string) error
	// Pull copies a remote file or directory into the given local directory.
	Pull(remotePath, localDir string) error
}

// HasCapability reports whether the capability is exposed anywhere in the
// wrapping chain of h. The chain is inspected link by link, starting at h.
func HasCapability(h EnvironmentHandle, c Capability) bool {
	return findCapability(h, c) != nil
}

// findCapability returns the first link in the chain exposing c, or nil.
func findCapability(h EnvironmentHandle, c Capability) EnvironmentHandle {
	for link := h; link != nil; link = link.Wrapped() {
		if link.Exposes(c) {
			return link
		}
	}
	return nil
}

// accessibilityProvider locates the accessibility wrapper in the chain and
// asserts its full provider interface.
func accessibilityProvider(h EnvironmentHandle) (AccessibilityProvider, bool) {
	link := findCapability(h, CapabilityAccessibility)
	if link == nil {
		return nil, false
	}
	provider, ok := link.(AccessibilityProvider)
	return provider, ok
}

// AsShell walks the chain and returns the first link that can execute shell
// commands. Wrappers typically delegate to the root, so in practice this finds
// the ADB-backed root handle.
func AsShell(h EnvironmentHandle) (ShellExecutor, bool) {
	for link := h; link != nil; link = link.Wrapped() {
		if sh, ok := link.(ShellExecutor); ok {
			return sh, true
		}
	}
	return nil, false
}

// AsFileTransfer walks the chain and returns the first link that can push and
// pull files.
func AsFileTransfer(h EnvironmentHandle) (FileTransfer, bool) {
	for link := h; link != nil; link = link.Wrapped() {
		if ft, ok := link.(FileTransfer); ok {
			return ft, true
		}
	}
	return nil, false
}
