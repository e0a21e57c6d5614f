package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// chdir is a stand-in for testing.T.Chdir, which requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}

func newCaptureCmd(t *testing.T) (*cobra.Command, *strings.Builder) {
	t.Helper()

	var buf strings.Builder
	cmd := newTestCmd(t)
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestConfigSetAndGetRoundTrip(t *testing.T) {
	resetFlags(t)
	isolateConfigEnv(t)
	out := captureConsole(t)

	project := t.TempDir()
	chdir(t, project)

	if err := configSetCmd.RunE(newTestCmd(t), []string{"runner.command", "hatch"}); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	written, err := os.ReadFile(filepath.Join(project, ".idev", "config.toml"))
	if err != nil {
		t.Fatalf("project config not written: %v", err)
	}
	if !strings.Contains(string(written), `command = "hatch"`) {
		t.Errorf("unexpected project config:\n%s", written)
	}
	if !strings.Contains(out.String(), "Set `runner.command = hatch`") {
		t.Errorf("expected confirmation, got %q", out.String())
	}

	cmd, buf := newCaptureCmd(t)
	if err := configGetCmd.RunE(cmd, []string{"runner.command"}); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if buf.String() != "hatch\n" {
		t.Errorf("expected written value back, got %q", buf.String())
	}
}

func TestConfigSetUserMasksSecrets(t *testing.T) {
	resetFlags(t)
	isolateConfigEnv(t)
	out := captureConsole(t)

	chdir(t, t.TempDir())
	flagConfigSetUser = true

	if err := configSetCmd.RunE(newTestCmd(t), []string{"orgs.default.api_key", "secret123"}); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	userConfig := filepath.Join(os.Getenv("HOME"), ".idev", "config.toml")
	written, err := os.ReadFile(userConfig)
	if err != nil {
		t.Fatalf("user config not written: %v", err)
	}
	if !strings.Contains(string(written), "secret123") {
		t.Errorf("expected the real key on disk, got:\n%s", written)
	}
	if strings.Contains(out.String(), "secret123") {
		t.Errorf("secret leaked into console output: %q", out.String())
	}
	if !strings.Contains(out.String(), strings.Repeat("*", len("secret123"))) {
		t.Errorf("expected masked confirmation, got %q", out.String())
	}
}

func TestConfigSetRejectsUnknownKeys(t *testing.T) {
	resetFlags(t)
	isolateConfigEnv(t)
	captureConsole(t)

	chdir(t, t.TempDir())

	if err := configSetCmd.RunE(newTestCmd(t), []string{"runner.password", "nope"}); err == nil {
		t.Fatal("expected unknown keys to be rejected")
	}
}

func TestConfigShowScrubsSecrets(t *testing.T) {
	resetFlags(t)
	isolateConfigEnv(t)
	captureConsole(t)

	chdir(t, t.TempDir())

	userDir := filepath.Join(os.Getenv("HOME"), ".idev")
	if err := os.MkdirAll(userDir, 0o700); err != nil {
		t.Fatal(err)
	}
	userConfig := "[orgs.default]\napi_key = \"secret123\"\n"
	if err := os.WriteFile(filepath.Join(userDir, "config.toml"), []byte(userConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd, buf := newCaptureCmd(t)
	if err := configShowCmd.RunE(cmd, nil); err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if strings.Contains(buf.String(), "secret123") {
		t.Errorf("expected secrets scrubbed, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), strings.Repeat("*", len("secret123"))) {
		t.Errorf("expected masked key, got:\n%s", buf.String())
	}

	flagConfigShowAll = true
	cmd, buf = newCaptureCmd(t)
	if err := configShowCmd.RunE(cmd, nil); err != nil {
		t.Fatalf("show --all failed: %v", err)
	}
	if !strings.Contains(buf.String(), "secret123") {
		t.Errorf("expected the real key with --all, got:\n%s", buf.String())
	}
}

func TestConfigFindShowsBothPaths(t *testing.T) {
	resetFlags(t)
	isolateConfigEnv(t)
	out := captureConsole(t)

	project := t.TempDir()
	chdir(t, project)

	if err := configFindCmd.RunE(newTestCmd(t), nil); err != nil {
		t.Fatalf("find failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "User config: ") || !strings.Contains(got, filepath.Join(".idev", "config.toml")) {
		t.Errorf("unexpected find output:\n%s", got)
	}
	if !strings.Contains(got, "Project config: ") {
		t.Errorf("expected project config line, got:\n%s", got)
	}
}

func TestFormatConfigValue(t *testing.T) {
	if got := formatConfigValue("master"); got != "master" {
		t.Errorf("unexpected string rendering: %q", got)
	}
	if got := formatConfigValue(90); got != "90" {
		t.Errorf("unexpected int rendering: %q", got)
	}
	if got := formatConfigValue(map[string]string{"core": "~/dd/integrations-core"}); !strings.Contains(got, "core = ") {
		t.Errorf("unexpected map rendering: %q", got)
	}
}
