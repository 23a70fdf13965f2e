package shared

import "sync"

// lastError is the process-wide "last error" slot required by callers that
// cross a library boundary and only see a process exit code: it is
// write-once per failure and read-once by the caller, then cleared. See
// SPEC_FULL.md §7/§9.
var lastError struct {
	mu  sync.Mutex
	err error
	set bool
}

// SetLastError records err as the slot's contents. Only the first call
// after a Clear takes effect, matching the write-once contract.
func SetLastError(err error) {
	lastError.mu.Lock()
	defer lastError.mu.Unlock()
	if lastError.set {
		return
	}
	lastError.err = err
	lastError.set = true
}

// TakeLastError returns the slot's contents and clears it.
func TakeLastError() error {
	lastError.mu.Lock()
	defer lastError.mu.Unlock()
	err := lastError.err
	lastError.err = nil
	lastError.set = false
	return err
}

// ClearLastError resets the slot; called at each entry point.
func ClearLastError() {
	lastError.mu.Lock()
	defer lastError.mu.Unlock()
	lastError.err = nil
	lastError.set = false
}
