// Package voice bridges speech recognition and synthesis to the dispatcher.
// Recognized speech is submitted exactly as if it had been typed.
package voice

import (
	"context"
	"errors"
	"fmt"

	errx "github.com/aegis-safety/intake/internal/core/error"
	logx "github.com/aegis-safety/intake/pkg/logger"
)

var errNoFinalResult = errors.New("recognition ended without a final result")

// Prosody is the fixed voice used for playback.
type Prosody struct {
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
	Lang  string  `json:"lang"`
}

var DefaultProsody = Prosody{Rate: 1.3, Pitch: 2.6, Lang: "en-US"}

// Result is one recognition event. Interim results have Final unset; a
// non-nil Err ends the session.
type Result struct {
	Transcript string `json:"transcript"`
	Final      bool   `json:"final"`
	Err        error  `json:"-"`
}

// Recognizer starts a recognition session. The returned channel is closed
// when the session ends.
type Recognizer interface {
	Start(ctx context.Context) (<-chan Result, error)
}

type Synthesizer interface {
	Speak(ctx context.Context, text string, prosody Prosody) error
}

// Dispatcher is the text path recognized speech is forwarded to.
type Dispatcher interface {
	Submit(ctx context.Context, sessionID, text string) (string, error)
}

type CaptureResult struct {
	Transcript string `json:"transcript"`
	Reply      string `json:"reply"`
}

type Adapter struct {
	dispatcher Dispatcher
	synth      Synthesizer
	prosody    Prosody
}

func NewAdapter(dispatcher Dispatcher, synth Synthesizer) *Adapter {
	return &Adapter{dispatcher: dispatcher, synth: synth, prosody: DefaultProsody}
}

func (a *Adapter) Prosody() Prosody {
	return a.prosody
}

// Capture runs one recognition session and dispatches its first final
// result. Recognition failures are not retried. Dispatch errors are returned
// as they are.
func (a *Adapter) Capture(ctx context.Context, sessionID string, rec Recognizer) (CaptureResult, error) {
	results, err := rec.Start(ctx)
	if err != nil {
		return CaptureResult{}, errx.Recognition(fmt.Errorf("start recognition: %w", err))
	}

	for {
		select {
		case <-ctx.Done():
			return CaptureResult{}, errx.Recognition(ctx.Err())
		case res, ok := <-results:
			if !ok {
				return CaptureResult{}, errx.Recognition(errNoFinalResult)
			}
			if res.Err != nil {
				logx.Warn().Err(res.Err).Str("session_id", sessionID).Msg("Speech recognition failed")
				return CaptureResult{}, errx.Recognition(res.Err)
			}
			if !res.Final {
				continue
			}

			reply, err := a.dispatcher.Submit(ctx, sessionID, res.Transcript)
			if err != nil {
				return CaptureResult{Transcript: res.Transcript}, err
			}
			return CaptureResult{Transcript: res.Transcript, Reply: reply}, nil
		}
	}
}

// Playback speaks text in the background. Completion is not reported and
// calls are not queued; a failure is only logged.
func (a *Adapter) Playback(ctx context.Context, text string) {
	if a.synth == nil || text == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := a.synth.Speak(ctx, text, a.prosody); err != nil {
			logx.Warn().Err(err).Msg("Speech playback failed")
		}
	}()
}
