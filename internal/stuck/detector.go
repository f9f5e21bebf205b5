// Package stuck recognizes unproductive agent loops from the history of
// tool calls, assistant messages and context compactions.
//
// A Detector belongs to one worker run. It is not safe for concurrent use;
// the owner serializes all calls.
package stuck

import (
	"fmt"
	"strings"
)

const (
	DefaultWindow = 256

	sameObservationRun = 4
	sameErrorRun       = 3
	monologueRun       = 3
	alternatingRun     = 6
	compactionLoopRun  = 10
)

// Detector keeps a bounded history of observations and classifies it.
type Detector struct {
	window int
	seq    int

	calls []ToolCallRecord

	// seq of the last successful edit; calls at or before it are ignored by
	// the action-based patterns.
	lastEditSeq int

	lastMessage  string
	messageRun   int
	messageStart int

	compactions          int
	compactionStart      int
	editsSinceCompaction int
}

// Option configures a Detector.
type Option func(*Detector)

// WithWindow bounds the retained tool call history.
func WithWindow(n int) Option {
	return func(d *Detector) {
		if n >= alternatingRun {
			d.window = n
		}
	}
}

// New returns an empty Detector.
func New(opts ...Option) *Detector {
	d := &Detector{window: DefaultWindow, lastEditSeq: -1}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) next() int {
	s := d.seq
	d.seq++
	return s
}

// RecordToolCall appends one tool call. A successful edit resets the
// bookkeeping of every pattern.
func (d *Detector) RecordToolCall(tool string, input map[string]any, result string, isError, isEdit bool) ToolCallRecord {
	rec := ToolCallRecord{
		Seq:        d.next(),
		Tool:       tool,
		Signature:  Signature(tool, input),
		ResultHash: HashResult(result),
		IsError:    isError,
		IsEdit:     isEdit,
	}
	d.calls = append(d.calls, rec)
	if over := len(d.calls) - d.window; over > 0 {
		d.calls = append(d.calls[:0:0], d.calls[over:]...)
	}

	// Any tool call interrupts a monologue.
	d.lastMessage = ""
	d.messageRun = 0

	if isEdit && !isError {
		d.lastEditSeq = rec.Seq
		d.editsSinceCompaction++
		d.compactions = 0
	}
	return rec
}

// RecordAssistantMessage appends an assistant utterance. Blank messages are ignored.
func (d *Detector) RecordAssistantMessage(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	seq := d.next()
	if d.messageRun > 0 && text == d.lastMessage {
		d.messageRun++
		return
	}
	d.lastMessage = text
	d.messageRun = 1
	d.messageStart = seq
}

// RecordCompaction notes one context compaction. editsSinceLastCheck is the
// caller's count of successful edits since the previous compaction; it is
// combined with the edits this detector has seen itself.
func (d *Detector) RecordCompaction(editsSinceLastCheck int) {
	seq := d.next()
	if editsSinceLastCheck > 0 || d.editsSinceCompaction > 0 {
		d.compactions = 0
		d.editsSinceCompaction = 0
		return
	}
	if d.compactions == 0 {
		d.compactionStart = seq
	}
	d.compactions++
}

// Len returns the number of retained tool calls.
func (d *Detector) Len() int { return len(d.calls) }

// History returns a copy of the retained tool calls, oldest first.
func (d *Detector) History() []ToolCallRecord {
	out := make([]ToolCallRecord, len(d.calls))
	copy(out, d.calls)
	return out
}

// active returns the retained calls made after the last successful edit.
func (d *Detector) active() []ToolCallRecord {
	i := len(d.calls)
	for i > 0 && d.calls[i-1].Seq > d.lastEditSeq {
		i--
	}
	return d.calls[i:]
}

// Detect classifies the current history. Patterns are checked in a fixed
// order and the first match wins.
func (d *Detector) Detect() Detection {
	calls := d.active()

	if tail, ok := lastN(calls, sameObservationRun); ok && sameObservation(tail) {
		return Detection{
			Stuck:      true,
			Pattern:    PatternSameActionObservation,
			StartIndex: tail[0].Seq,
			Reason: fmt.Sprintf("%s repeated %d times with an unchanged result",
				tail[0].Signature, len(tail)),
		}
	}

	if tail, ok := lastN(calls, sameErrorRun); ok && sameError(tail) {
		return Detection{
			Stuck:      true,
			Pattern:    PatternSameActionError,
			StartIndex: tail[0].Seq,
			Reason:     fmt.Sprintf("%s failed %d times in a row", tail[0].Signature, len(tail)),
		}
	}

	if d.messageRun >= monologueRun {
		return Detection{
			Stuck:      true,
			Pattern:    PatternMonologue,
			StartIndex: d.messageStart,
			Reason:     fmt.Sprintf("the same assistant message was repeated %d times without acting", d.messageRun),
		}
	}

	if tail, ok := lastN(calls, alternatingRun); ok && alternating(tail) {
		return Detection{
			Stuck:      true,
			Pattern:    PatternAlternating,
			StartIndex: tail[0].Seq,
			Reason: fmt.Sprintf("alternating between %s and %s",
				tail[0].Signature, tail[1].Signature),
		}
	}

	if d.compactions >= compactionLoopRun {
		return Detection{
			Stuck:      true,
			Pattern:    PatternCompactionLoop,
			StartIndex: d.compactionStart,
			Reason:     fmt.Sprintf("%d context compactions without a successful edit", d.compactions),
		}
	}

	return Detection{StartIndex: -1}
}

func lastN(calls []ToolCallRecord, n int) ([]ToolCallRecord, bool) {
	if len(calls) < n {
		return nil, false
	}
	return calls[len(calls)-n:], true
}

func sameObservation(tail []ToolCallRecord) bool {
	for _, c := range tail {
		if c.IsError || !c.sameObservation(tail[0]) {
			return false
		}
	}
	return true
}

func sameError(tail []ToolCallRecord) bool {
	for _, c := range tail {
		if !c.IsError || !c.sameAction(tail[0]) {
			return false
		}
	}
	return true
}

func alternating(tail []ToolCallRecord) bool {
	a, b := tail[0], tail[1]
	if a.sameObservation(b) {
		return false
	}
	for i, c := range tail {
		want := a
		if i%2 == 1 {
			want = b
		}
		if !c.sameObservation(want) {
			return false
		}
	}
	return true
}
