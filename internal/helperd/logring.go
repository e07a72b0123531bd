package helperd

import (
	"bytes"
	"sync"
)

// lineRing is a bounded buffer of the most recent output lines from
// the engine child. It is attached to the child's stdout and stderr,
// so Write must tolerate arbitrary chunking.
type lineRing struct {
	mu    sync.Mutex
	max   int
	lines []string
	carry []byte // partial line awaiting its newline
}

func newLineRing(max int) *lineRing {
	if max <= 0 {
		max = 200
	}
	return &lineRing{max: max}
}

func (r *lineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.carry = append(r.carry, p...)
	for {
		idx := bytes.IndexByte(r.carry, '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimRight(r.carry[:idx], "\r"))
		r.carry = r.carry[idx+1:]
		r.push(line)
	}
	// Guard against a child that never emits newlines.
	if len(r.carry) > 8192 {
		r.push(string(r.carry))
		r.carry = nil
	}
	return len(p), nil
}

func (r *lineRing) push(line string) {
	r.lines = append(r.lines, line)
	if len(r.lines) > r.max {
		r.lines = r.lines[len(r.lines)-r.max:]
	}
}

// Tail returns up to n recent lines, oldest first. n <= 0 returns all
// buffered lines.
func (r *lineRing) Tail(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := r.lines
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

// Reset discards all buffered output. Called on each engine start.
func (r *lineRing) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
	r.carry = nil
}
