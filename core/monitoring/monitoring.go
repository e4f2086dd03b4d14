// Package monitoring holds the process-wide error reporter. Components call
// the package functions; the reporter is swapped in once at startup.
package monitoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/greenplace/core/model"
)

// Monitor receives errors an operator should look at.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Flush(timeout time.Duration) bool
}

// NopMonitor discards everything.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Flush(time.Duration) bool                  { return true }

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor. A nil monitor is ignored.
func Init(m Monitor) {
	if m == nil {
		return
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records err with the given tags.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// Reportable reports whether a failure of this kind is unexpected. Denials
// caused by the request itself (policy, validation, no feasible window) are
// normal outcomes.
func Reportable(err error) bool {
	switch model.Kind(err) {
	case "provider", "rpc", "internal":
		return true
	default:
		return false
	}
}

// Capture reports err for component when it is Reportable. The component and
// the error kind are added to extra as tags. It returns whether err was sent.
func Capture(component string, err error, extra map[string]string) bool {
	if !Reportable(err) {
		return false
	}
	tags := make(map[string]string, len(extra)+2)
	for k, v := range extra {
		tags[k] = v
	}
	tags["component"] = component
	tags["error_kind"] = model.Kind(err)
	get().CaptureException(err, tags)
	return true
}

// Flush waits up to d for buffered reports to be delivered.
func Flush(d time.Duration) bool {
	return get().Flush(d)
}

// Go runs fn in a goroutine whose panics are reported before they crash the
// process.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				get().CaptureException(fmt.Errorf("panic: %v", r), map[string]string{"panic": "true"})
				Flush(2 * time.Second)
				panic(r)
			}
		}()
		fn()
	}()
}
