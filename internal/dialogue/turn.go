package dialogue

// Turn is the structured form of one user input as produced by a
// [Recognizer].
type Turn struct {
	// IntentID names the recognised intent, e.g. "call", "yes" or "no".
	IntentID string `json:"intent"`

	// Slots holds the named values extracted from the input, e.g. "who".
	Slots map[string]string `json:"slots,omitempty"`

	// Input is the raw text the turn was recognised from.
	Input string `json:"input"`
}

// Slot returns the value of the named slot, or "" when it was not captured.
func (t Turn) Slot(name string) string {
	return t.Slots[name]
}

// Recognizer turns raw input into a [Turn]. It reports false when the input
// does not belong to any intent it knows.
//
// Implementations must be safe for concurrent use and free of side effects.
type Recognizer interface {
	Recognize(input string) (Turn, bool)
}

// RecognizerFunc adapts a plain function to [Recognizer].
type RecognizerFunc func(input string) (Turn, bool)

// Recognize calls f(input).
func (f RecognizerFunc) Recognize(input string) (Turn, bool) {
	return f(input)
}
