package pipeline

import (
	"os"

	"github.com/zkp2p/tlsn-attest/shared"
)

// scopeLock is the advisory single-writer lock of §5: "concurrent provers
// against the same scope are disallowed and enforced by acquiring an
// advisory lock on the scope path for the duration of writing." No flock
// binding is available, so this is built directly on O_CREATE|O_EXCL: the
// file's mere existence is the lock, atomically established by the
// exclusive create, with no flock/fcntl dependency. Grounded in
// attestation/codec.go's own atomicWrite, which leans on a related
// filesystem primitive (create-temp-then-rename) for its different
// guarantee.
type scopeLock struct {
	path string
}

// acquireScopeLock creates path exclusively, failing with ScopeLocked if
// another run already holds it.
func acquireScopeLock(path string) (*scopeLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, shared.NewScopeLockedError(path)
		}
		return nil, shared.NewIOError("failed to acquire scope lock", err)
	}
	f.Close()
	return &scopeLock{path: path}, nil
}

// release removes the lock file. Best-effort: a failed unlock is not
// itself a pipeline error, and the callers defer it without checking the
// returned error.
func (l *scopeLock) release() error {
	return os.Remove(l.path)
}
