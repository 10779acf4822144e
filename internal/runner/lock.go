package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// LockError reports that another run holds the global lock. The driver maps
// it to exit code 2.
type LockError struct {
	Path   string
	Holder string
}

func (e *LockError) Error() string {
	if e.Holder == "" {
		return fmt.Sprintf("another ingestion run holds the lock at %s", e.Path)
	}
	return fmt.Sprintf("another ingestion run holds the lock at %s (%s)", e.Path, e.Holder)
}

// Lock is the host-wide advisory lock excluding concurrent runs. The OS
// releases the underlying flock on process death; the lock file itself is
// removed on the normal exit path.
type Lock struct {
	flock *flock.Flock
	path  string
}

// AcquireLock takes the exclusive lock or returns a LockError describing the
// current holder.
func AcquireLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, &LockError{Path: path, Holder: readHolder(path)}
	}

	contents := fmt.Sprintf("pid=%d\nstarted=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &Lock{flock: fl, path: path}, nil
}

// Release unlocks and removes the lock file.
func (l *Lock) Release() {
	_ = l.flock.Unlock()
	_ = os.Remove(l.path)
}

// readHolder parses the pid/started contents left by the holding process.
func readHolder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(string(data)), " ")
}
