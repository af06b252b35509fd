package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"Album", "Photos"},
		[][]string{{"Family", "120"}, {"Trips"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	for _, want := range []string{"Album", "Photos", "Family", "120", "Trips"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ALBUM") {
		t.Errorf("headers were upper-cased:\n%s", out)
	}
	if got := renderTable(nil, nil, nil); got != "" {
		t.Errorf("empty headers rendered %q", got)
	}
}

func TestPrintCheckPlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	printCheck(&buf, "album", checkWarn, `"Family" not found`)

	got := buf.String()
	if !strings.Contains(got, "album:") || !strings.Contains(got, "[WARN]") {
		t.Errorf("unexpected line %q", got)
	}
	if strings.Contains(got, "\x1b[") {
		t.Errorf("colour codes written to a non-terminal: %q", got)
	}
}
