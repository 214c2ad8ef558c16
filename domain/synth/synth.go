// Package synth defines the synthesis request contract and the error
// taxonomy returned by the core to its callers.
package synth

// Request is a synthesis request as handed in by the validation layer.
// Text is already authenticated and syntactically validated; no markup
// sanitization happens in the core.
type Request struct {
	Text         string
	VoiceID      string
	LanguageCode string
	SpeakingRate float64
	Pitch        float64
	MarkupMode   bool // Text contains speech markup requiring stripping for byte billing
	ClientKey    string
	TraceID      string
}

// ProviderRequest is the shape sent to the speech provider.
type ProviderRequest struct {
	Text         string
	Markup       bool // Text field carries markup rather than plain text
	VoiceID      string
	LanguageCode string
	SpeakingRate float64
	Pitch        float64
}

// Result is a successful synthesis outcome.
type Result struct {
	Audio    []byte
	Tier     string
	Cost     int64
	Unit     string
	Attempts int
}
