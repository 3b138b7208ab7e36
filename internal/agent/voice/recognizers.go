package voice

import (
	"context"

	logx "github.com/aegis-safety/intake/pkg/logger"
)

// ReplayRecognizer replays results recognized elsewhere, typically by the
// client's speech engine, as one recognition session.
type ReplayRecognizer struct {
	Results []Result
}

func (r ReplayRecognizer) Start(_ context.Context) (<-chan Result, error) {
	ch := make(chan Result, len(r.Results))
	for _, res := range r.Results {
		ch <- res
	}
	close(ch)
	return ch, nil
}

// LogSynthesizer records utterances instead of producing audio. The server
// has no audio device; clients speak replies themselves with the returned
// prosody.
type LogSynthesizer struct{}

func (LogSynthesizer) Speak(_ context.Context, text string, p Prosody) error {
	logx.Debug().
		Int("text_len", len(text)).
		Float64("rate", p.Rate).
		Float64("pitch", p.Pitch).
		Str("lang", p.Lang).
		Msg("Playback requested")
	return nil
}
