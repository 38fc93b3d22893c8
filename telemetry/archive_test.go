package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestArchiveRunRoundTrip(t *testing.T) {
	dir := t.TempDir()
	content := "tick,resource,final\n1,food,10\n2,steel,2500\n"
	if err := os.WriteFile(filepath.Join(dir, "prices.csv"), []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("market:\n"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	archived, err := ArchiveRun(dir)
	if err != nil {
		t.Fatalf("archiving: %v", err)
	}
	if len(archived) != 1 || !strings.HasSuffix(archived[0], "prices.csv.zst") {
		t.Fatalf("archived = %v, want one prices.csv.zst", archived)
	}

	if _, err := os.Stat(filepath.Join(dir, "prices.csv")); !os.IsNotExist(err) {
		t.Error("original CSV still present after archiving")
	}
	// Non-CSV files stay untouched
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config snapshot disturbed: %v", err)
	}

	got, err := ReadCompressed(archived[0])
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	if string(got) != content {
		t.Errorf("round trip = %q, want %q", got, content)
	}
}

func TestArchiveRunEmptyDir(t *testing.T) {
	archived, err := ArchiveRun(t.TempDir())
	if err != nil {
		t.Fatalf("archiving empty dir: %v", err)
	}
	if len(archived) != 0 {
		t.Errorf("archived = %v, want none", archived)
	}
}
