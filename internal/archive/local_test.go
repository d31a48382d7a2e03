package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLocalBackendUploadAndClean(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "call.wav")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	b := NewLocalBackend(root, "https://audio.example.test", zerolog.Nop())
	partition := Partition("SYSTEM1", time.Now())

	url, ok := b.UploadFile(context.Background(), src, "1234-5678.wav", partition)
	if !ok {
		t.Fatal("expected upload to succeed")
	}
	if url == "" {
		t.Fatal("expected non-empty url")
	}

	full := filepath.Join(root, filepath.FromSlash(partition), "1234-5678.wav")
	if _, err := os.Stat(full); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}

	removed, ok := b.CleanFiles(context.Background(), "SYSTEM1", 0)
	if !ok {
		t.Fatal("expected clean to succeed")
	}
	if removed != 1 {
		t.Fatalf("expected 1 file removed, got %d", removed)
	}
	if _, err := os.Stat(full); !os.IsNotExist(err) {
		t.Fatal("expected file to be removed")
	}
}

func TestLocalBackendRejectsPathTraversal(t *testing.T) {
	root := t.TempDir()
	b := NewLocalBackend(root, "https://audio.example.test", zerolog.Nop())

	_, err := b.safePath("../../etc/passwd")
	if err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}

func TestPartitionFormat(t *testing.T) {
	ts := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	got := Partition("metro", ts)
	want := "metro/2026/3/5"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
