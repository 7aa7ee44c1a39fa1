package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/go-aidetect/internal/config"
	"github.com/example/go-aidetect/internal/testutil"
)

// runCLI executes a fresh root command and returns combined output.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	root := NewRootCmd()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(bytes.NewBufferString(stdin))
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

// servingArgs points the CLI at a fake TensorFlow Serving endpoint that
// always answers with body, plus a small vocabulary.
func servingArgs(t *testing.T, body string) []string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"model_version_status":[{"version":"1","state":"AVAILABLE"}]}`))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return []string{
		"--backend", "tfserving",
		"--serving-url", srv.URL,
		"--paths-vocab-path", testutil.WriteVocab(t, "", nil),
		"--log-level", "error",
	}
}

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"serve", "classify", "bench", "model", "health", "doctor"}
	for _, name := range want {
		found := false

		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("expected subcommand %q not found in root", name)
		}
	}
}

func TestNewModelCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := newModelCmd()

	got := map[string]bool{}
	for _, sub := range cmd.Commands() {
		got[sub.Name()] = true
	}

	for _, name := range []string{"download", "bundle", "verify", "export"} {
		if !got[name] {
			t.Errorf("expected model subcommand %q", name)
		}
	}
}

func TestNewRootCmd_HasPersistentConfigFlag(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"config", "backend", "paths-vocab-path", "workers", "log-level"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected --%s persistent flag to be registered", name)
		}
	}
}

func TestSetupLogger_DoesNotPanic(_ *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		setupLogger(level)
	}
}

func TestSetupLogger_InvalidLevelFallsBackToInfo(_ *testing.T) {
	// Should not panic on invalid level.
	setupLogger("not-a-level")
}

func TestRequireConfig_FailsWhenNotInitialized(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{}

	_, err := requireConfig()
	if err == nil {
		t.Fatal("expected error when config is not loaded")
	}
}

func TestRequireConfig_SucceedsWhenLoaded(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.DefaultConfig()

	got, err := requireConfig()
	if err != nil {
		t.Fatalf("requireConfig returned unexpected error: %v", err)
	}

	if got.Classifier.MaxSeqLen != 450 {
		t.Errorf("unexpected MaxSeqLen: %d", got.Classifier.MaxSeqLen)
	}
}

func TestPersistentPreRun_LoadsFlags(t *testing.T) {
	args := append(servingArgs(t, `{"predictions":[[0.9]]}`), "--workers", "7", "classify", "--text", "hello")

	if _, err := runCLI(t, "", args...); err != nil {
		t.Fatalf("classify: %v", err)
	}

	if activeCfg.Server.Workers != 7 || activeCfg.Classifier.Backend != "tfserving" {
		t.Errorf("flags not applied: %+v", activeCfg)
	}
}

func TestPersistentPreRun_BadConfigFile(t *testing.T) {
	_, err := runCLI(t, "", "--config", "/nonexistent/aidetect.yaml", "classify", "--text", "x")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}
