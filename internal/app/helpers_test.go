package app

import (
	"errors"
	"sync"

	"github.com/dkeye/Telehealth/internal/core"
)

var errStale = errors.New("stale")

// fakeConn records frames. With fail set every send errors.
type fakeConn struct {
	mu     sync.Mutex
	frames []string
	fail   bool
	closed int
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStale
	}
	f.frames = append(f.frames, string(fr))
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func (f *fakeConn) Frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames...)
}

func (f *fakeConn) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
