package application

import (
	"strings"
	"sync"
)

// InFlight tracks controls with a pending write. A control is disabled from
// Begin until the returned release runs; callers defer release so the
// control is re-enabled on every exit path.
type InFlight struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{busy: map[string]struct{}{}}
}

// ControlKey builds the identifier of a control from its parts, for example
// owner, action and customer.
func ControlKey(parts ...string) string {
	return strings.Join(parts, "|")
}

// Begin disables the control. It fails with ErrWriteInFlight when the control
// is already disabled.
func (f *InFlight) Begin(control string) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.busy[control]; ok {
		return func() {}, ErrWriteInFlight
	}
	f.busy[control] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.busy, control)
			f.mu.Unlock()
		})
	}, nil
}

// Busy reports whether the control is disabled.
func (f *InFlight) Busy(control string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.busy[control]
	return ok
}
