package cache

// Metrics receives cache lifecycle events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	// Hit is called when Get returns a fresh value.
	Hit()
	// Miss is called when Get finds nothing usable for the key.
	Miss()
	// Expire is called with the number of stale entries removed, either
	// lazily by Get or by Sweep.
	Expire(n int)
	// Fail is called when a memoized producer returns an error.
	Fail()
}

// NoopMetrics ignores every event.
type NoopMetrics struct{}

func (NoopMetrics) Hit()       {}
func (NoopMetrics) Miss()      {}
func (NoopMetrics) Expire(int) {}
func (NoopMetrics) Fail()      {}
