package rag

// Message roles for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged message in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is a scored retrieval hit exposed to the caller for citation.
// Score is similarity (1 - distance); higher is better.
type Source struct {
	FilePath string  `json:"file_path"`
	Section  string  `json:"section"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// Answer is the result of one pipeline invocation. Sources are rank-ordered,
// best match first.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Event is one streaming pipeline event. Exactly one of the fields is
// populated: a single Sources event is delivered first, then Delta events
// carry text fragments in arrival order.
type Event struct {
	Sources []Source
	Delta   string
}

// StreamCallback receives streaming events. Returning an error aborts the
// underlying generation call.
type StreamCallback func(Event) error

// tail returns the last n turns of history. The same window is applied to
// rewriting and answer composition so both see an identical conversation.
func tail(history []Turn, n int) []Turn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
