package voice

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jamo/photoframe/internal/logging"
)

// ErrNotUnderstood is returned by a Recognizer that heard nothing usable.
var ErrNotUnderstood = errors.New("speech not understood")

// Utterance is one captured phrase. Engines that transcribe upstream fill
// Transcript; raw capture fills Audio.
type Utterance struct {
	Transcript string
	Audio      []byte
}

// Recognizer is the speech engine contract: an utterance becomes a
// best-effort transcript or ErrNotUnderstood.
type Recognizer interface {
	Recognize(ctx context.Context, u Utterance) (string, error)
}

// TranscriptRecognizer accepts utterances that were already transcribed,
// such as those produced by the browser's speech engine.
type TranscriptRecognizer struct{}

func (TranscriptRecognizer) Recognize(_ context.Context, u Utterance) (string, error) {
	text := strings.TrimSpace(u.Transcript)
	if text == "" {
		return "", ErrNotUnderstood
	}
	return text, nil
}

// Target is what voice commands act on.
type Target interface {
	// SuspendForVoice holds the advance timer and reports whether the
	// slideshow was playing.
	SuspendForVoice() bool
	// ResumeAfterVoice re-arms the timer if wasPlaying and nothing paused
	// the slideshow in the meantime.
	ResumeAfterVoice(wasPlaying bool)
	AcknowledgeVoice(cmd Command)
	ExecuteVoice(cmd Command)
}

// Service turns utterances into slideshow commands. A recognised command
// is acknowledged on screen at once and executed after the delay.
type Service struct {
	matcher    *Matcher
	recognizer Recognizer
	target     Target
	delay      time.Duration
	logger     *slog.Logger

	wg sync.WaitGroup
}

func NewService(matcher *Matcher, recognizer Recognizer, target Target, delay time.Duration, logger *slog.Logger) *Service {
	if recognizer == nil {
		recognizer = TranscriptRecognizer{}
	}
	return &Service{
		matcher:    matcher,
		recognizer: recognizer,
		target:     target,
		delay:      delay,
		logger:     logging.NewComponentLogger(logger, "voice"),
	}
}

// Run consumes utterances until ctx ends or the channel closes. Pending
// delayed commands are not waited for.
func (s *Service) Run(ctx context.Context, utterances <-chan Utterance) {
	s.logger.Info("voice command listening started", "commands", len(s.matcher.Commands()))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("voice command listening stopped")
			return
		case u, ok := <-utterances:
			if !ok {
				return
			}
			s.Handle(ctx, u)
		}
	}
}

// Handle processes one utterance. Recognition failures are dropped.
func (s *Service) Handle(ctx context.Context, u Utterance) (Match, bool) {
	text, err := s.recognizer.Recognize(ctx, u)
	if err != nil {
		s.logger.Debug("utterance dropped", logging.Error(err))
		return Match{}, false
	}

	match, ok := s.matcher.Find(text)
	if !ok {
		s.logger.Info("no matching voice command", "text", text)
		return Match{}, false
	}
	s.logger.Info("voice command recognized",
		"command", string(match.Command),
		"variant", match.Variant,
		"strategy", string(match.Strategy),
		"text", text)

	wasPlaying := s.target.SuspendForVoice()
	s.target.AcknowledgeVoice(match.Command)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		s.target.ExecuteVoice(match.Command)
		s.target.ResumeAfterVoice(wasPlaying)
	}()
	return match, true
}

// Wait blocks until delayed commands already scheduled have run.
func (s *Service) Wait() {
	s.wg.Wait()
}

// LineSource reads one utterance per line from r, for typing commands in
// place of a microphone. The channel closes at EOF or when ctx ends.
func LineSource(ctx context.Context, r io.Reader) <-chan Utterance {
	out := make(chan Utterance)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case out <- Utterance{Transcript: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
