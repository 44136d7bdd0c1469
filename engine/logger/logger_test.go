package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	get().SetOutput(&buf)
	defer get().SetOutput(os.Stderr)
	fn()
	return buf.String()
}

func TestKeyValuePairsRenderAsFields(t *testing.T) {
	out := capture(t, func() {
		Warn("renderer: stale mesh handle; skipping instance", "mesh", "3@g1", "entity", 5)
	})

	if strings.Contains(out, "%!(") {
		t.Fatalf("key-value log rendered printf artifacts:\nhave %q", out)
	}
	for _, want := range []string{"mesh=3@g1", "entity=5"} {
		if !strings.Contains(out, want) {
			t.Errorf("structured field missing:\nhave %q\nwant substring %q", out, want)
		}
	}
}

func TestFormattedVariantsInterpolate(t *testing.T) {
	out := capture(t, func() {
		Warnf("graph: %s targets unknown entity %d (%d nodes)", "Translate", 9, 5)
	})

	want := "graph: Translate targets unknown entity 9 (5 nodes)"
	if !strings.Contains(out, want) {
		t.Fatalf("formatted message:\nhave %q\nwant substring %q", out, want)
	}
}
