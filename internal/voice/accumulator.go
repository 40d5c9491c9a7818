package voice

import (
	"strings"
	"sync"
)

// Accumulator collects interim transcript chunks for one utterance and
// produces a single cleaned final string. A new utterance clears whatever
// the previous one left behind, and a final identical to the last one
// emitted is suppressed.
type Accumulator struct {
	mu        sync.Mutex
	chunks    []string
	lastFinal string
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Begin starts a new utterance, discarding any pending chunks.
func (a *Accumulator) Begin() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = a.chunks[:0]
}

// Add appends an interim chunk and returns the running partial text.
func (a *Accumulator) Add(text string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t := strings.TrimSpace(text); t != "" {
		a.chunks = append(a.chunks, t)
	}
	return strings.Join(a.chunks, " ")
}

// Pending returns the partial text accumulated so far.
func (a *Accumulator) Pending() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.chunks, " ")
}

// Finalize closes the utterance. When the recognizer supplies a final
// text it wins over the accumulated chunks. Returns ok=false when the
// result is empty or repeats the previous final.
func (a *Accumulator) Finalize(finalText string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(finalText)
	if text == "" {
		text = strings.Join(a.chunks, " ")
	}
	a.chunks = a.chunks[:0]

	return a.emit(text)
}

// Flush finalizes from pending chunks alone. Used when the stream ends
// without a final transcript event.
func (a *Accumulator) Flush() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.Join(a.chunks, " ")
	a.chunks = a.chunks[:0]

	return a.emit(text)
}

func (a *Accumulator) emit(text string) (string, bool) {
	text = CleanTranscript(text)
	if text == "" || text == a.lastFinal {
		return "", false
	}
	a.lastFinal = text
	return text, true
}

// CleanTranscript normalizes recognizer output: whitespace is collapsed
// and stuttered repetitions are removed. Interim chunks often overlap, so
// "hello there hello there" and "no no no" both collapse to one copy.
func CleanTranscript(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}

	for {
		collapsed, changed := collapseRepeats(words)
		if !changed {
			break
		}
		words = collapsed
	}
	return strings.Join(words, " ")
}

// collapseRepeats removes the first adjacent repeated run it finds,
// longest runs first so "a b a b" collapses before "a a" could.
func collapseRepeats(words []string) ([]string, bool) {
	n := len(words)
	for runLen := n / 2; runLen >= 1; runLen-- {
		for i := 0; i+2*runLen <= n; i++ {
			if equalFold(words[i:i+runLen], words[i+runLen:i+2*runLen]) {
				out := make([]string, 0, n-runLen)
				out = append(out, words[:i+runLen]...)
				out = append(out, words[i+2*runLen:]...)
				return out, true
			}
		}
	}
	return words, false
}

func equalFold(a, b []string) bool {
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
