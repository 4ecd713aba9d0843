package hotload

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestStat_DetectsRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.so")
	if err := os.WriteFile(path, []byte("build one"), 0o600); err != nil {
		t.Fatal(err)
	}

	before, err := Stat(path)
	if err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	if before.IsZero() {
		t.Fatal("fingerprint of an existing file should not be zero")
	}

	again, err := Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if again != before {
		t.Errorf("unchanged file fingerprint %v != %v", again, before)
	}

	// Same timestamp, different size.
	if err := os.WriteFile(path, []byte("build two, longer"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, before.Time(), before.Time()); err != nil {
		t.Fatal(err)
	}
	after, err := Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if after == before {
		t.Error("rewrite with a new size must change the fingerprint")
	}
}

func TestStat_DetectsReplaceByRename(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no inode identity on windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "scene.so")
	if err := os.WriteFile(path, []byte("aaaa"), 0o600); err != nil {
		t.Fatal(err)
	}
	before, err := Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	// Same size and timestamp, new inode: what `go build -o tmp && mv tmp` does.
	tmp := filepath.Join(dir, "scene.so.tmp")
	if err := os.WriteFile(tmp, []byte("bbbb"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(tmp, before.Time(), before.Time()); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	after, err := Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if after == before {
		t.Error("replacing the file by rename must change the fingerprint")
	}
}

func TestStat_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Stat(filepath.Join(dir, "missing.so")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: error = %v, want ErrNotExist", err)
	}
	if _, err := Stat(dir); !errors.Is(err, ErrNotRegular) {
		t.Errorf("directory: error = %v, want ErrNotRegular", err)
	}
}

func TestFingerprint_Time(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	fp := Fingerprint{ModTime: ts.UnixNano(), Size: 10}
	if !fp.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", fp.Time(), ts)
	}
	if !(Fingerprint{}).IsZero() || fp.IsZero() {
		t.Error("IsZero mismatch")
	}
	if fp.String() == "" {
		t.Error("String() should not be empty")
	}
}
