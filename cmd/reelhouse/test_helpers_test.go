package main

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelhouse/internal/config"
	"reelhouse/internal/daemon"
	"reelhouse/internal/library"
	"reelhouse/internal/logging"
	"reelhouse/internal/queue"
	"reelhouse/internal/testsupport"
	"reelhouse/internal/workflow"
)

const cliTestToken = "cli-test-token"

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	server     *httptest.Server
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Paths.APIToken = cliTestToken
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenQueue(t, cfg)
	lib, err := library.NewService(cfg, testsupport.MustOpenLibrary(t, cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("library.NewService: %v", err)
	}
	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	d, err := daemon.New(cfg, store, lib, mgr, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	server := httptest.NewServer(d.Handler())
	t.Cleanup(func() {
		server.Close()
		_ = d.Close()
	})

	return &cliTestEnv{cfg: cfg, store: store, server: server, configPath: configPath}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--server", e.server.URL, "--token", cliTestToken, "--config", e.configPath}, args...))
}

func runCLI(t *testing.T, args []string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
library_dir = %q
triage_dir = %q
state_dir = %q
log_dir = %q
api_bind = %q
api_token = %q
public_url = %q

[library]
callback_secret = %q
`,
		cfg.Paths.LibraryDir, cfg.Paths.TriageDir, cfg.Paths.StateDir, cfg.Paths.LogDir,
		"127.0.0.1:7487", cfg.Paths.APIToken, cfg.Paths.PublicURL, cfg.Library.CallbackSecret)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, out)
	}
}
