package msggen

import "context"

// Generator produces passenger/driver message text. The engine treats it as
// an opaque capability: lifecycle correctness never depends on its latency
// or availability.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// FallbackText is used when a live generator fails or none is configured.
const FallbackText = "Welcome to our service! We hope you enjoy your ride."

// Static returns a fixed message. It is the deterministic stub for tests and
// the default for offline runs.
type Static struct {
	Text string
}

func NewStatic(text string) *Static {
	if text == "" {
		text = FallbackText
	}
	return &Static{Text: text}
}

func (s *Static) Generate(context.Context, string) (string, error) {
	return s.Text, nil
}
