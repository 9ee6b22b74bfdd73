package envfile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEnv(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key) //nolint:errcheck
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	err := Load("/nonexistent/.env")
	if err != nil {
		t.Fatalf("expected nil for nonexistent file, got %v", err)
	}
}

func TestLoad_SetsUnsetVars(t *testing.T) {
	path := writeEnv(t, t.TempDir(), ".env.local", "TEST_ENVFILE_A=hello\nTEST_ENVFILE_B=world\n")
	unset(t, "TEST_ENVFILE_A", "TEST_ENVFILE_B")

	if err := Load(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("TEST_ENVFILE_A"); got != "hello" {
		t.Errorf("TEST_ENVFILE_A = %q, want %q", got, "hello")
	}
	if got := os.Getenv("TEST_ENVFILE_B"); got != "world" {
		t.Errorf("TEST_ENVFILE_B = %q, want %q", got, "world")
	}
}

func TestLoad_DoesNotOverrideExisting(t *testing.T) {
	path := writeEnv(t, t.TempDir(), ".env", "TEST_ENVFILE_C=from_file\n")
	t.Setenv("TEST_ENVFILE_C", "from_env")

	if err := Load(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("TEST_ENVFILE_C"); got != "from_env" {
		t.Errorf("TEST_ENVFILE_C = %q, want %q (env should take precedence)", got, "from_env")
	}
}

func TestLoad_QuotingAndComments(t *testing.T) {
	content := "# comment\n\nexport TEST_ENVFILE_D=yes\nTEST_ENVFILE_E=\"quoted value\"\nTEST_ENVFILE_F='single'\n"
	path := writeEnv(t, t.TempDir(), ".env", content)
	unset(t, "TEST_ENVFILE_D", "TEST_ENVFILE_E", "TEST_ENVFILE_F")

	if err := Load(path); err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"TEST_ENVFILE_D": "yes",
		"TEST_ENVFILE_E": "quoted value",
		"TEST_ENVFILE_F": "single",
	}
	for key, val := range want {
		if got := os.Getenv(key); got != val {
			t.Errorf("%s = %q, want %q", key, got, val)
		}
	}
}

func TestLoadDefaults_ConfigDirFile(t *testing.T) {
	dir := t.TempDir()
	writeEnv(t, dir, "env", "TEST_ENVFILE_G=from_config\n")
	unset(t, "TEST_ENVFILE_G")

	LoadDefaults(dir)

	if got := os.Getenv("TEST_ENVFILE_G"); got != "from_config" {
		t.Errorf("TEST_ENVFILE_G = %q, want %q", got, "from_config")
	}
}
