package files

import (
	"strings"
	"testing"
)

func TestWriteThenRead_RoundTrips(t *testing.T) {
	root := t.TempDir()

	if _, err := Write(root, "hello.txt", "Hello, Tadpole!", false); err != nil {
		t.Fatalf("write: %v", err)
	}

	content, truncated, err := Read(root, "hello.txt", 0, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if truncated {
		t.Error("unexpected truncation")
	}
	if content != "Hello, Tadpole!" {
		t.Errorf("got %q, want %q", content, "Hello, Tadpole!")
	}
}

func TestRead_TraversalFails(t *testing.T) {
	root := t.TempDir()
	_, _, err := Read(root, "../etc/passwd", 0, 0)
	if err == nil {
		t.Fatal("expected traversal error")
	}
	if !strings.Contains(err.Error(), "SECURITY FAULT") {
		t.Errorf("expected SECURITY FAULT in error, got %q", err.Error())
	}
}

func TestWrite_AppendAccumulates(t *testing.T) {
	root := t.TempDir()

	if _, err := Write(root, "log.txt", "first\n", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Write(root, "log.txt", "second\n", true); err != nil {
		t.Fatalf("append: %v", err)
	}

	content, _, err := Read(root, "log.txt", 0, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if content != "first\nsecond\n" {
		t.Errorf("got %q", content)
	}
}

func TestList_NonExistentDirReturnsEmpty(t *testing.T) {
	root := t.TempDir()
	names, err := List(root, "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected empty list, got %v", names)
	}
}

func TestDelete_RemovesFile(t *testing.T) {
	root := t.TempDir()
	if _, err := Write(root, "gone.txt", "bye", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Delete(root, "gone.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := Read(root, "gone.txt", 0, 0); err == nil {
		t.Fatal("expected read of deleted file to fail")
	}
}
