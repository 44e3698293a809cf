package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWaitForImage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoint")
	go func() {
		time.Sleep(300 * time.Millisecond)
		os.MkdirAll(dir, 0o755)
		os.WriteFile(filepath.Join(dir, "core-1.img"), []byte("img"), 0o644)
	}()
	if err := waitForImage(context.Background(), dir, 10*time.Second); err != nil {
		t.Fatalf("waitForImage: %v", err)
	}
}

func TestWaitForImageNeverAppears(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoint")
	err := waitForImage(context.Background(), dir, 0)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "never appeared") {
		t.Errorf("err = %v, want the missing-directory failure", err)
	}
}

func TestWaitForImageOnlyEngineLogs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoint")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dump4.log"), []byte("criu log"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := waitForImage(context.Background(), dir, 0)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "only log files") {
		t.Errorf("err = %v, want the empty-image failure", err)
	}
}
