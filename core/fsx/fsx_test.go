package fsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := WriteFileAtomic(path, []byte(`{"ok":true}`), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(content) != `{"ok":true}` {
		t.Fatalf("content = %q", string(content))
	}
}

func TestWriteFileAtomicReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("new"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "new" {
		t.Fatalf("content = %q, want new", string(content))
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Fatalf("leftover temp file %s", entry.Name())
		}
	}
}

func TestCopyPreserve(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.txt")
	destination := filepath.Join(dir, "copy.txt")
	if err := os.WriteFile(source, []byte("payload"), 0o640); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	oldTime := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	if err := os.Chtimes(source, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if err := CopyPreserve(source, destination); err != nil {
		t.Fatalf("CopyPreserve: %v", err)
	}
	content, err := os.ReadFile(destination)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(content) != "payload" {
		t.Fatalf("copy content = %q", string(content))
	}
	info, err := os.Stat(destination)
	if err != nil {
		t.Fatalf("stat copy: %v", err)
	}
	if !info.ModTime().Equal(oldTime) {
		t.Fatalf("mtime = %v, want %v", info.ModTime(), oldTime)
	}
}

func TestCopyPreserveRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := CopyPreserve(dir, filepath.Join(dir, "copy")); err == nil {
		t.Fatal("expected error copying a directory")
	}
}

func TestAppendLineLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.jsonl")
	for _, line := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		if err := AppendLineLocked(path, []byte(line), 0o600); err != nil {
			t.Fatalf("AppendLineLocked(%s): %v", line, err)
		}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), string(content))
	}
	if lines[0] != `{"n":1}` || lines[2] != `{"n":3}` {
		t.Fatalf("lines out of order: %v", lines)
	}
	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Fatal("lock file left behind")
	}
}

func TestAppendLineLockedRecoversStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	lockPath := path + ".lock"
	if err := os.WriteFile(lockPath, nil, 0o600); err != nil {
		t.Fatalf("seed lock: %v", err)
	}
	staleTime := time.Now().Add(-5 * time.Minute)
	if err := os.Chtimes(lockPath, staleTime, staleTime); err != nil {
		t.Fatalf("age lock: %v", err)
	}

	if err := AppendLineLocked(path, []byte(`{"n":1}`), 0o600); err != nil {
		t.Fatalf("AppendLineLocked with stale lock: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Fatal("stale lock not cleaned up")
	}
}
