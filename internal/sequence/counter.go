// Package sequence generates human-readable booking references.
package sequence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

var ErrNotInitialized = errors.New("sequence counter is not initialized")

// Counter issues strictly increasing reference numbers. It must be seeded
// with Init from the highest number already stored before the first Next.
type Counter struct {
	prefix      string
	width       int
	last        atomic.Int64
	initialized atomic.Bool
}

func New(prefix string, width int) *Counter {
	if prefix == "" {
		prefix = "BK"
	}
	if width <= 0 {
		width = 5
	}
	return &Counter{prefix: prefix, width: width}
}

func (c *Counter) Init(last int64) {
	c.last.Store(last)
	c.initialized.Store(true)
}

// Advance raises the counter to at least last. It never moves it back.
func (c *Counter) Advance(last int64) {
	for {
		cur := c.last.Load()
		if last <= cur || c.last.CompareAndSwap(cur, last) {
			return
		}
	}
}

// Next returns the next number and its formatted reference, e.g. BK/00042.
func (c *Counter) Next() (int64, string, error) {
	if !c.initialized.Load() {
		return 0, "", ErrNotInitialized
	}
	n := c.last.Add(1)
	return n, c.Format(n), nil
}

func (c *Counter) Format(n int64) string {
	return fmt.Sprintf("%s/%0*d", c.prefix, c.width, n)
}

// Parse extracts the number from a reference produced by this counter.
func (c *Counter) Parse(reference string) (int64, error) {
	rest, ok := strings.CutPrefix(reference, c.prefix+"/")
	if !ok {
		return 0, fmt.Errorf("reference %q does not start with %s/", reference, c.prefix)
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse reference %q: %w", reference, err)
	}
	return n, nil
}
