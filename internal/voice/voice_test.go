package voice

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFindStrategies(t *testing.T) {
	m := DefaultMatcher()

	tests := []struct {
		text     string
		command  Command
		strategy Strategy
		variant  string
	}{
		{"go back now", CommandBack, StrategyExact, "back"},
		{"Next", CommandNext, StrategyExact, "next"},
		{"please STOP", CommandPause, StrategyExact, "stop"},
		{"play", CommandResume, StrategyExact, "play"},
		{"back!", CommandBack, StrategyWordBoundary, "back"},
		{"my neckline", CommandNext, StrategyFuzzy, "neck"},
		{"advanse", CommandNext, StrategyLevenshtein, "advance"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := m.Find(tt.text)
			if !ok {
				t.Fatalf("no match for %q", tt.text)
			}
			if got.Command != tt.command || got.Strategy != tt.strategy || got.Variant != tt.variant {
				t.Fatalf("Find(%q) = %+v, want %s/%s/%s", tt.text, got, tt.command, tt.strategy, tt.variant)
			}
		})
	}

	for _, text := range []string{"", "   ", "hello world", "xyz"} {
		if got, ok := m.Find(text); ok {
			t.Fatalf("Find(%q) unexpectedly matched %+v", text, got)
		}
	}
}

func TestLooseStrategiesOffByDefault(t *testing.T) {
	m := DefaultMatcher()
	if m.settings.EnablePhonetic || m.settings.EnablePartial {
		t.Fatalf("phonetic and partial matching should start disabled: %+v", m.settings)
	}
	for _, text := range []string{"good morning", "a while ago", "paws", "gone"} {
		if got, ok := m.Find(text); ok {
			t.Errorf("Find(%q) unexpectedly matched %+v", text, got)
		}
	}
}

func TestFindLooseStrategiesWhenEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "variants.toml")
	body := `
[matching]
enable_phonetic_matching = true
enable_partial_matching = true

[commands.pause]
exact = ["stop"]
phonetic = ["paws"]

[commands.resume]
exact = ["go"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := NewMatcher(path)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	tests := []struct {
		text     string
		command  Command
		strategy Strategy
		variant  string
	}{
		{"paws", CommandPause, StrategyPhonetic, "paws"},
		{"gone", CommandResume, StrategyPartialWord, "go"},
	}
	for _, tt := range tests {
		got, ok := m.Find(tt.text)
		if !ok {
			t.Fatalf("no match for %q", tt.text)
		}
		if got.Command != tt.command || got.Strategy != tt.strategy || got.Variant != tt.variant {
			t.Fatalf("Find(%q) = %+v, want %s/%s/%s", tt.text, got, tt.command, tt.strategy, tt.variant)
		}
	}
}

func TestExactBeatsLooserStrategiesAcrossCommands(t *testing.T) {
	m := DefaultMatcher()
	// "shop" is a fuzzy pause variant; "next" is exact and must win.
	got, ok := m.Find("shop next")
	if !ok || got.Command != CommandNext || got.Strategy != StrategyExact {
		t.Fatalf("unexpected match %+v", got)
	}
}

func TestAddCustomVariants(t *testing.T) {
	m := DefaultMatcher()
	if _, ok := m.Find("onward"); ok {
		t.Fatal("onward should not match before it is added")
	}
	if err := m.AddCustomVariants(map[string][]string{"next": {"onward"}}); err != nil {
		t.Fatalf("AddCustomVariants: %v", err)
	}
	got, ok := m.Find("onward please")
	if !ok || got.Command != CommandNext || got.Strategy != StrategyFuzzy {
		t.Fatalf("custom variant not used: %+v", got)
	}
	if err := m.AddVariant("jump", "hop"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestNewMatcherFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "variants.toml")
	body := `
[matching]
enable_fuzzy_matching = false

[commands.next]
exact = ["weiter"]
fuzzy = ["wei"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := NewMatcher(path)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	if got, ok := m.Find("Weiter"); !ok || got.Command != CommandNext {
		t.Fatalf("file variant not matched: %+v", got)
	}
	if _, ok := m.Find("weil"); ok {
		t.Fatal("fuzzy matching was disabled in the file")
	}
	if len(m.Commands()) != 1 {
		t.Fatalf("expected only the file's commands, got %v", m.Commands())
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(bad, []byte("[commands.dance]\nexact = [\"boogie\"]\n"), 0o644)
	if _, err := NewMatcher(bad); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

type recordingTarget struct {
	mu      sync.Mutex
	playing bool
	events  []string
}

func (r *recordingTarget) record(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingTarget) SuspendForVoice() bool {
	r.record("suspend")
	return r.playing
}

func (r *recordingTarget) ResumeAfterVoice(wasPlaying bool) {
	if wasPlaying {
		r.record("resume-timer")
	} else {
		r.record("stay")
	}
}

func (r *recordingTarget) AcknowledgeVoice(cmd Command) { r.record("ack:" + string(cmd)) }
func (r *recordingTarget) ExecuteVoice(cmd Command)     { r.record("exec:" + string(cmd)) }

func (r *recordingTarget) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestServiceDelaysExecution(t *testing.T) {
	target := &recordingTarget{playing: true}
	s := NewService(DefaultMatcher(), nil, target, 50*time.Millisecond, nil)

	if _, ok := s.Handle(context.Background(), Utterance{Transcript: "next please"}); !ok {
		t.Fatal("expected match")
	}
	if got := target.snapshot(); strings.Join(got, ",") != "suspend,ack:next" {
		t.Fatalf("before delay: %v", got)
	}
	s.Wait()
	want := "suspend,ack:next,exec:next,resume-timer"
	if got := strings.Join(target.snapshot(), ","); got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}
}

func TestServiceDropsUnrecognised(t *testing.T) {
	target := &recordingTarget{}
	s := NewService(DefaultMatcher(), nil, target, 0, nil)

	if _, ok := s.Handle(context.Background(), Utterance{}); ok {
		t.Fatal("empty transcript should be dropped")
	}
	if _, ok := s.Handle(context.Background(), Utterance{Transcript: "what a lovely photo"}); ok {
		t.Fatal("non-command should not match")
	}
	s.Wait()
	if len(target.snapshot()) != 0 {
		t.Fatalf("target touched: %v", target.snapshot())
	}
}

func TestServiceCancelledBeforeDelay(t *testing.T) {
	target := &recordingTarget{playing: true}
	s := NewService(DefaultMatcher(), nil, target, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())

	s.Handle(ctx, Utterance{Transcript: "back"})
	cancel()
	s.Wait()
	for _, e := range target.snapshot() {
		if strings.HasPrefix(e, "exec:") {
			t.Fatalf("command executed after cancellation: %v", target.snapshot())
		}
	}
}

func TestRunWithLineSource(t *testing.T) {
	target := &recordingTarget{}
	s := NewService(DefaultMatcher(), nil, target, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Run(ctx, LineSource(ctx, strings.NewReader("hello\npause\n")))
	s.Wait()
	want := "suspend,ack:pause,exec:pause,stay"
	if got := strings.Join(target.snapshot(), ","); got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}
}
