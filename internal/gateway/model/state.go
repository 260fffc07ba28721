package model

// State tracks a turn's position in the dispatch lifecycle. Transitions are
// strictly forward; Done and Failed are terminal.
type State string

const (
	StateReceived     State = "received"
	StateClassified   State = "classified"
	StateToolsPending State = "tools_pending"
	StateSynthesizing State = "synthesizing"
	StateStreaming    State = "streaming"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

func (s State) String() string {
	return string(s)
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
