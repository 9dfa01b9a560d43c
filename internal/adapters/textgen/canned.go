package textgen

import (
	"context"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

// Canned is the shipped text generator for the terminal stage. Real
// flavor-text generation sits behind the TextGenerator port; this
// implementation answers from a small fixed pool with light keyword
// routing.
type Canned struct {
	log zerolog.Logger
}

var _ ports.TextGenerator = (*Canned)(nil)

func New(baseLogger *zerolog.Logger) *Canned {
	return &Canned{log: baseLogger.With().Str("component", "textgen").Logger()}
}

var pool = []string{
	"The protocol hums. There is nothing left to prove.",
	"You are through. The terminal simply listens now.",
	"Transmission received. No gates remain.",
	"The machinery idles, content.",
}

var greetings = []string{
	"Hello again, operator.",
	"Still here. Still listening.",
}

// Reply returns a free-form response for a completed session.
func (c *Canned) Reply(ctx context.Context, userID, message string) (string, error) {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "hello") || strings.Contains(lower, "hi") {
		return greetings[rand.Intn(len(greetings))], nil
	}
	return pool[rand.Intn(len(pool))], nil
}
