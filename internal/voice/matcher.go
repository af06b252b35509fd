package voice

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
)

//go:embed variants.toml
var defaultVariants []byte

// Command is one of the four slideshow actions voice can trigger.
type Command string

const (
	CommandBack   Command = "back"
	CommandNext   Command = "next"
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
)

// commandOrder breaks ties when several commands match at the same
// strategy.
var commandOrder = []Command{CommandBack, CommandNext, CommandPause, CommandResume}

// Strategy names how a transcript matched.
type Strategy string

const (
	StrategyExact        Strategy = "exact"
	StrategyWordBoundary Strategy = "word_boundary"
	StrategyFuzzy        Strategy = "fuzzy"
	StrategyPhonetic     Strategy = "phonetic"
	StrategyPartial      Strategy = "partial"
	StrategyPartialWord  Strategy = "partial_word"
	StrategyLevenshtein  Strategy = "levenshtein"
)

// Match is a recognised command.
type Match struct {
	Command  Command
	Variant  string
	Strategy Strategy
}

// Settings toggles matching strategies.
type Settings struct {
	EnableExact             bool `toml:"enable_exact_matching"`
	EnableFuzzy             bool `toml:"enable_fuzzy_matching"`
	EnablePhonetic          bool `toml:"enable_phonetic_matching"`
	EnablePartial           bool `toml:"enable_partial_matching"`
	MaxCharacterDifferences int  `toml:"max_character_differences"`
	MinWordLengthForPartial int  `toml:"min_word_length_for_partial"`
	CaseSensitive           bool `toml:"case_sensitive"`
}

// Variants lists the accepted forms of one command.
type Variants struct {
	Exact    []string `toml:"exact"`
	Fuzzy    []string `toml:"fuzzy"`
	Phonetic []string `toml:"phonetic"`
	Partial  []string `toml:"partial"`
}

type variantsFile struct {
	Matching Settings            `toml:"matching"`
	Commands map[string]Variants `toml:"commands"`
}

// Matcher maps transcripts onto commands.
type Matcher struct {
	settings Settings
	commands map[Command]*Variants
}

// NewMatcher loads variants from path, or the built-in table when path is
// empty.
func NewMatcher(path string) (*Matcher, error) {
	data := defaultVariants
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read voice variants: %w", err)
		}
	}
	return parseMatcher(data)
}

// DefaultMatcher returns a matcher over the built-in variants.
func DefaultMatcher() *Matcher {
	m, err := parseMatcher(defaultVariants)
	if err != nil {
		panic(fmt.Sprintf("built-in voice variants: %v", err))
	}
	return m
}

func parseMatcher(data []byte) (*Matcher, error) {
	file := variantsFile{
		Matching: Settings{
			EnableExact:             true,
			EnableFuzzy:             true,
			EnablePhonetic:          false,
			EnablePartial:           false,
			MaxCharacterDifferences: 1,
			MinWordLengthForPartial: 3,
		},
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse voice variants: %w", err)
	}

	m := &Matcher{settings: file.Matching, commands: make(map[Command]*Variants)}
	for name, v := range file.Commands {
		cmd := Command(strings.ToLower(strings.TrimSpace(name)))
		if !slices.Contains(commandOrder, cmd) {
			return nil, fmt.Errorf("parse voice variants: unknown command %q", name)
		}
		variants := v
		m.commands[cmd] = &variants
	}
	return m, nil
}

// AddVariant registers an extra fuzzy variant for a command.
func (m *Matcher) AddVariant(cmd Command, variant string) error {
	if !slices.Contains(commandOrder, cmd) {
		return fmt.Errorf("unknown voice command %q", cmd)
	}
	variant = strings.TrimSpace(variant)
	if variant == "" {
		return nil
	}
	v, ok := m.commands[cmd]
	if !ok {
		v = &Variants{}
		m.commands[cmd] = v
	}
	if !slices.Contains(v.Fuzzy, variant) {
		v.Fuzzy = append(v.Fuzzy, variant)
	}
	return nil
}

// AddCustomVariants registers variants keyed by command name, as found in
// the custom_voice_variants setting.
func (m *Matcher) AddCustomVariants(custom map[string][]string) error {
	names := make([]string, 0, len(custom))
	for name := range custom {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, variant := range custom[name] {
			if err := m.AddVariant(Command(strings.ToLower(name)), variant); err != nil {
				return err
			}
		}
	}
	return nil
}

// Commands returns the configured commands in match order.
func (m *Matcher) Commands() []Command {
	var out []Command
	for _, cmd := range commandOrder {
		if _, ok := m.commands[cmd]; ok {
			out = append(out, cmd)
		}
	}
	return out
}

// Variants returns the variants configured for cmd.
func (m *Matcher) Variants(cmd Command) Variants {
	if v, ok := m.commands[cmd]; ok {
		return *v
	}
	return Variants{}
}

type strategyFunc func(v *Variants, text string, words []string) (string, bool)

// Find returns the best match for text. Strategies are tried from the
// strictest to the loosest and every command is checked at one strategy
// before the next strategy is tried, so "go back now" is "back" by exact
// word rather than anything looser.
func (m *Matcher) Find(text string) (Match, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Match{}, false
	}
	if !m.settings.CaseSensitive {
		text = cases.Fold().String(text)
	}
	words := strings.Fields(text)

	type stage struct {
		name    Strategy
		enabled bool
		fn      strategyFunc
	}
	stages := []stage{
		{StrategyExact, m.settings.EnableExact, m.exactWord},
		{StrategyWordBoundary, m.settings.EnableExact, m.wordBoundary},
		{StrategyFuzzy, m.settings.EnableFuzzy, m.substring(func(v *Variants) []string { return v.Fuzzy })},
		{StrategyPhonetic, m.settings.EnablePhonetic, m.substring(func(v *Variants) []string { return v.Phonetic })},
		{StrategyPartial, m.settings.EnablePartial, m.substring(func(v *Variants) []string { return v.Partial })},
		{StrategyPartialWord, m.settings.EnablePartial, m.partialWord},
		{StrategyLevenshtein, m.settings.EnableFuzzy, m.editDistance},
	}

	for _, st := range stages {
		if !st.enabled {
			continue
		}
		for _, cmd := range m.Commands() {
			if variant, ok := st.fn(m.commands[cmd], text, words); ok {
				return Match{Command: cmd, Variant: variant, Strategy: st.name}, true
			}
		}
	}
	return Match{}, false
}

func (m *Matcher) norm(s string) string {
	s = strings.TrimSpace(s)
	if m.settings.CaseSensitive {
		return s
	}
	return cases.Fold().String(s)
}

func (m *Matcher) exactWord(v *Variants, _ string, words []string) (string, bool) {
	for _, word := range words {
		for _, exact := range v.Exact {
			if word == m.norm(exact) {
				return exact, true
			}
		}
	}
	return "", false
}

func (m *Matcher) wordBoundary(v *Variants, text string, _ []string) (string, bool) {
	for _, exact := range v.Exact {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(m.norm(exact)) + `\b`)
		if err != nil {
			continue
		}
		if re.MatchString(text) {
			return exact, true
		}
	}
	return "", false
}

func (m *Matcher) substring(list func(*Variants) []string) strategyFunc {
	return func(v *Variants, text string, _ []string) (string, bool) {
		for _, variant := range list(v) {
			if n := m.norm(variant); n != "" && strings.Contains(text, n) {
				return variant, true
			}
		}
		return "", false
	}
}

// partialWord accepts short exact forms at the start or end of a word.
func (m *Matcher) partialWord(v *Variants, _ string, words []string) (string, bool) {
	for _, exact := range v.Exact {
		n := m.norm(exact)
		if n == "" || len(n) > m.settings.MinWordLengthForPartial {
			continue
		}
		for _, word := range words {
			if strings.HasPrefix(word, n) || strings.HasSuffix(word, n) {
				return exact, true
			}
		}
	}
	return "", false
}

func (m *Matcher) editDistance(v *Variants, _ string, words []string) (string, bool) {
	maxDiff := m.settings.MaxCharacterDifferences
	for _, exact := range v.Exact {
		n := m.norm(exact)
		if len(n) < 3 {
			continue
		}
		for _, word := range words {
			if len(word) < 2 || abs(len(word)-len(n)) > maxDiff {
				continue
			}
			if levenshtein.ComputeDistance(word, n) <= maxDiff {
				return exact, true
			}
		}
	}
	return "", false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
