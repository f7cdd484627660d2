package memstore

import (
	"sync"
)

// Faults injects errors into store methods and counts calls per method.
// Methods are named after the interface methods they guard ("SaveOwnership",
// "RecordActivity", ...).
type Faults struct {
	mu    sync.Mutex
	rules map[string]*rule
	calls map[string]int
}

type rule struct {
	err       error
	remaining int // < 0 means forever
}

// Fail makes every call to method return err until Clear is called.
func (f *Faults) Fail(method string, err error) {
	f.FailN(method, -1, err)
}

// FailN makes the next n calls to method return err. A negative n fails forever.
func (f *Faults) FailN(method string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rules == nil {
		f.rules = make(map[string]*rule)
	}
	f.rules[method] = &rule{err: err, remaining: n}
}

// Clear removes the fault on method.
func (f *Faults) Clear(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rules, method)
}

// Calls returns how many times method was invoked, failed calls included.
func (f *Faults) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of invocations across every method.
func (f *Faults) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// hit records a call and returns the injected error, if any.
func (f *Faults) hit(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++

	r, ok := f.rules[method]
	if !ok || r.remaining == 0 {
		return nil
	}
	if r.remaining > 0 {
		r.remaining--
	}
	return r.err
}
