// Package search debounces live query input and matches festival records
// against the resulting query.
package search

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// DefaultQuietPeriod is how long input must stay unchanged before a query is emitted.
	DefaultQuietPeriod = 300 * time.Millisecond
	// DefaultMinLength is the shortest non-empty query worth searching for.
	DefaultMinLength = 2
)

// Timer is the subset of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// Scheduler starts a timer that runs f after d.
type Scheduler func(d time.Duration, f func()) Timer

func realScheduler(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithQuietPeriod overrides the 300ms quiet period.
func WithQuietPeriod(d time.Duration) Option {
	return func(db *Debouncer) {
		if d > 0 {
			db.quiet = d
		}
	}
}

// WithMinLength overrides the minimum significant query length.
func WithMinLength(n int) Option {
	return func(db *Debouncer) {
		if n >= 0 {
			db.minLen = n
		}
	}
}

// WithScheduler swaps the timer source, mainly for tests.
func WithScheduler(s Scheduler) Option {
	return func(db *Debouncer) {
		if s != nil {
			db.schedule = s
		}
	}
}

// Debouncer delays emitting a query until input has been stable for the quiet
// period. It emits trimmed queries that are empty or at least minLen runes
// long, and never emits the same query twice in a row.
type Debouncer struct {
	emit     func(string)
	quiet    time.Duration
	minLen   int
	schedule Scheduler

	mu      sync.Mutex
	timer   Timer
	gen     uint64
	last    string
	stopped bool
}

// New returns a Debouncer that calls emit with qualifying queries.
func New(emit func(string), opts ...Option) *Debouncer {
	d := &Debouncer{
		emit:     emit,
		quiet:    DefaultQuietPeriod,
		minLen:   DefaultMinLength,
		schedule: realScheduler,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Input records a keystroke. Any pending timer is cancelled and restarted.
func (d *Debouncer) Input(raw string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.schedule(d.quiet, func() { d.fire(gen, raw) })
}

func (d *Debouncer) fire(gen uint64, raw string) {
	query := strings.TrimSpace(raw)

	d.mu.Lock()
	// A newer keystroke superseded this timer even if Stop lost the race.
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	if query == d.last || !Qualifies(query, d.minLen) {
		d.mu.Unlock()
		return
	}
	d.last = query
	d.mu.Unlock()

	if d.emit != nil {
		d.emit(query)
	}
}

// Pending reports whether a quiet-period timer is running.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Last returns the most recently emitted query.
func (d *Debouncer) Last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Stop cancels any pending emission. Input after Stop is ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Qualifies reports whether a trimmed query should reach the search callback:
// empty clears the filter, otherwise it needs at least minLen runes.
func Qualifies(query string, minLen int) bool {
	n := utf8.RuneCountInString(query)
	return n == 0 || n >= minLen
}

// BelowMinimum reports whether the raw input is non-empty but still too short,
// which is when pages show the "type at least N characters" hint.
func BelowMinimum(raw string, minLen int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(raw))
	return n > 0 && n < minLen
}

// Effective returns the query a synchronous caller should filter with: the
// trimmed input when it qualifies, otherwise "" (no filtering).
func Effective(raw string, minLen int) string {
	q := strings.TrimSpace(raw)
	if !Qualifies(q, minLen) {
		return ""
	}
	return q
}
