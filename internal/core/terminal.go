package core

// TerminalState is the shared state machine deciding which chunk in a
// stream is the terminal one. It mirrors the driver-level "_is_final_chunk"
// decision and the completion stage's own bookkeeping so both sites use
// the exact same transition rules (a single source of truth, not per-
// handler duplication).
type TerminalState int

const (
	// StateNoFinish ("S0"): no chunk has carried a finish_reason yet.
	StateNoFinish TerminalState = iota
	// StateFinishSeen ("S1"): a chunk carried finish_reason but no usage
	// arrived yet.
	StateFinishSeen
	// StateTerminated ("S2"): the stream is done.
	StateTerminated
)

// TerminalDetector tracks TerminalState transitions across a sequence of
// chunks for the generic OpenAI-compatible/DeepSeek/Z.AI termination rule:
// terminal when a chunk carries both finish_reason and usage, or when a
// chunk carries usage after an earlier chunk carried finish_reason.
type TerminalDetector struct {
	state TerminalState
}

// Observe feeds one chunk's (hasFinish, hasUsage) pair through the state
// machine and reports whether this chunk is terminal.
func (d *TerminalDetector) Observe(hasFinish, hasUsage bool) bool {
	switch d.state {
	case StateNoFinish:
		switch {
		case hasFinish && hasUsage:
			d.state = StateTerminated
			return true
		case hasFinish:
			d.state = StateFinishSeen
			return false
		default:
			return false
		}
	case StateFinishSeen:
		if hasUsage {
			d.state = StateTerminated
			return true
		}
		return false
	default: // StateTerminated
		return false
	}
}

// State returns the current state, mostly useful for tests.
func (d *TerminalDetector) State() TerminalState { return d.state }

// FinishSeen reports whether a finish_reason chunk has already been
// observed without an accompanying terminal usage chunk (state S1). The
// Ollama synthetic-terminal-chunk path does not call it: it checks
// State() != StateTerminated, so it synthesizes in both S0 and S1.
func (d *TerminalDetector) FinishSeen() bool {
	return d.state == StateFinishSeen
}
