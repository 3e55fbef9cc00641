package fileutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreview(t *testing.T) {
	t.Parallel()

	if got := Preview("  line one\r\nline two ", 0); got != `line one\nline two` {
		t.Fatalf("got=%q", got)
	}
	if got := Preview("héllo world", 5); got != "héllo…" {
		t.Fatalf("got=%q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("got=%q", got)
	}
}

func TestWriteJSONFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	v := map[string]any{"text": "a < b && c > d"}
	if err := WriteJSONFileAtomic(path, v, true); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "a < b && c > d") {
		t.Fatalf("html was escaped: %s", b)
	}
	if !strings.HasSuffix(string(b), "}\n") {
		t.Fatalf("missing trailing newline: %q", b)
	}

	// Overwrite in place and leave no temp files behind.
	if err := WriteJSONFileAtomic(path, []int{1}, false); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	b, _ = os.ReadFile(path)
	if string(b) != "[1]\n" {
		t.Fatalf("content=%q", b)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want 1", len(entries))
	}
}

func TestWriteJSONFileAtomic_MarshalError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := WriteJSONFileAtomic(path, map[string]any{"ch": make(chan int)}, true); err == nil {
		t.Fatalf("expected marshal error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file should not exist, stat err=%v", err)
	}
}
