package session

import (
	"os"
	"path/filepath"
	"testing"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestNewEnvFile_BlankTextReturnsNil(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		if f := NewEnvFile(t.TempDir(), text); f != nil {
			t.Errorf("NewEnvFile(%q) = %v, want nil", text, f)
		}
	}
}

func TestEnvFile_InjectAndRestoreWithoutExisting(t *testing.T) {
	dir := t.TempDir()
	f := NewEnvFile(dir, "PORT=3000")

	if err := f.Inject(); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if got := readFile(t, f.Path()); got != "PORT=3000\n" {
		t.Errorf(".env = %q, want %q", got, "PORT=3000\n")
	}
	if _, err := os.Stat(f.BackupPath()); !os.IsNotExist(err) {
		t.Errorf("backup should not exist, stat err = %v", err)
	}

	if err := f.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := os.Stat(f.Path()); !os.IsNotExist(err) {
		t.Errorf(".env should be removed after restore, stat err = %v", err)
	}
}

func TestEnvFile_BacksUpAndRestoresExisting(t *testing.T) {
	dir := t.TempDir()
	original := "SECRET=keep-me\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewEnvFile(dir, "PORT=4000\n")
	if err := f.Inject(); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if got := readFile(t, f.BackupPath()); got != original {
		t.Errorf("backup = %q, want %q", got, original)
	}
	if got := readFile(t, f.Path()); got != "PORT=4000\n" {
		t.Errorf(".env = %q", got)
	}

	if err := f.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := readFile(t, f.Path()); got != original {
		t.Errorf("restored .env = %q, want %q", got, original)
	}
	if _, err := os.Stat(f.BackupPath()); !os.IsNotExist(err) {
		t.Errorf("backup should be gone, stat err = %v", err)
	}

	// A second restore changes nothing.
	if err := f.Restore(); err != nil {
		t.Fatalf("second Restore: %v", err)
	}
	if got := readFile(t, f.Path()); got != original {
		t.Errorf(".env after second restore = %q", got)
	}
}

func TestEnvFile_LeftoverBackupIsNeverOverwritten(t *testing.T) {
	dir := t.TempDir()
	original := "USER_ORIGINAL=1\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"+BackupSuffix), []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}
	// Stale injected file from a session that crashed.
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("STALE=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewEnvFile(dir, "FRESH=1")
	if err := f.Inject(); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if got := readFile(t, f.BackupPath()); got != original {
		t.Errorf("backup = %q, want original %q", got, original)
	}

	if err := f.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := readFile(t, f.Path()); got != original {
		t.Errorf("restored .env = %q, want %q", got, original)
	}
}
