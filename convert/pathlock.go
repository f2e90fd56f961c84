package convert

import (
	"path/filepath"
	"sync"

	"github.com/crisslavik/xStage/types"
)

// PathLocker grants one job at a time exclusive rights to an output path.
// A second job targeting a locked path fails fast with OutputPathLocked
// instead of interleaving writes.
type PathLocker struct {
	mu   sync.Mutex
	held map[string]string // cleaned absolute path -> holder job ID
}

// NewPathLocker creates an empty locker.
func NewPathLocker() *PathLocker {
	return &PathLocker{held: make(map[string]string)}
}

func lockKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return filepath.Clean(abs)
}

// Acquire locks the target path for jobID for the job's duration.
func (l *PathLocker) Acquire(path, jobID string) error {
	key := lockKey(path)
	l.mu.Lock()
	defer l.mu.Unlock()
	if holder, ok := l.held[key]; ok {
		return types.NewError(types.ErrOutputPathLocked,
			"target path is locked by job "+holder)
	}
	l.held[key] = jobID
	return nil
}

// Release unlocks the target path. Releasing an unheld path is a no-op.
func (l *PathLocker) Release(path string) {
	key := lockKey(path)
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
