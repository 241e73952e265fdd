package audit

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
)

func TestSanitiseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value, want string
	}{
		{"OPENAI_API_KEY", "sk-abc123", "set"},
		{"OPENAI_API_KEY", "", "unset"},
		{"PGVECTOR_URL", "postgres://u:p@h/db", "set"},
		{"STUDYMATE_API_KEY", "token", "set"},
		{"MODEL_PROVIDER", "azure", "azure"},
		{"MODEL_PROVIDER", "", "unset"},
	}
	for _, tt := range tests {
		if got := SanitiseKey(tt.key, tt.value); got != tt.want {
			t.Errorf("SanitiseKey(%s, %q): want %q, got %q", tt.key, tt.value, tt.want, got)
		}
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()

	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("want 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("want '/tmp/config.yaml', got %q", got)
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.studymate/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.studymate/config.yaml" {
			t.Errorf("want '~/.studymate/config.yaml', got %q", got)
		}
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-very-secret")
	t.Setenv("MODEL_PROVIDER", "openai")

	var buf bytes.Buffer
	LogCommandStart(context.Background(), logging.NewWithWriter(&buf, "info", "text"), "ask", "")

	out := buf.String()
	if strings.Contains(out, "sk-very-secret") {
		t.Fatalf("secret value leaked into audit log: %s", out)
	}
	for _, want := range []string{"command=ask", "OPENAI_API_KEY=set", "MODEL_PROVIDER=openai", "config_file=none"} {
		if !strings.Contains(out, want) {
			t.Errorf("want %q in audit log, got %s", want, out)
		}
	}
}

func TestLogLibraryChange(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	LogLibraryChange(context.Background(), logging.NewWithWriter(&buf, "info", "text"), "ingest", []string{"a.pdf", "b.md"}, 12)

	out := buf.String()
	for _, want := range []string{"action=ingest", "documents=2", "names=a.pdf,b.md", "total_passages=12"} {
		if !strings.Contains(out, want) {
			t.Errorf("want %q in audit log, got %s", want, out)
		}
	}
}
