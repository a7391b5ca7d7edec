package mission

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeExecutable(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
}

func TestHooks_NoScriptsIsNoop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hook scripts assume a POSIX shebang")
	}
	dataDir := t.TempDir()
	h := NewHooks(dataDir)
	if err := h.Run(context.Background(), HookPreTool, RunContext{AgentID: "a1", WorkspaceRoot: dataDir}, "read_file", nil); err != nil {
		t.Fatalf("expected no-op with no scripts, got %v", err)
	}
}

func TestHooks_NonExecutableFileSkipped(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hook scripts assume a POSIX shebang")
	}
	dataDir := t.TempDir()
	path := filepath.Join(dataDir, "hooks", "pre-tool", "notes.txt")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("not a script"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	h := NewHooks(dataDir)
	if err := h.Run(context.Background(), HookPreTool, RunContext{AgentID: "a1", WorkspaceRoot: dataDir}, "read_file", nil); err != nil {
		t.Fatalf("expected non-executable file to be skipped, got %v", err)
	}
}

func TestHooks_ScriptReceivesContextAndParams(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hook scripts assume a POSIX shebang")
	}
	dataDir := t.TempDir()
	marker := filepath.Join(dataDir, "saw.txt")
	script := filepath.Join(dataDir, "hooks", "pre-tool", "10-record.sh")
	writeExecutable(t, script, "#!/bin/sh\necho \"$AGENT_CONTEXT\" > \""+marker+"\"\n")

	h := NewHooks(dataDir)
	rc := RunContext{AgentID: "agent-7", WorkspaceRoot: dataDir}
	if err := h.Run(context.Background(), HookPreTool, rc, "write_file", map[string]any{"path": "x"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("expected hook to have run, marker missing: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected AGENT_CONTEXT to be non-empty")
	}
}

func TestHooks_FailingScriptReturnsError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hook scripts assume a POSIX shebang")
	}
	dataDir := t.TempDir()
	script := filepath.Join(dataDir, "hooks", "post-tool", "fail.sh")
	writeExecutable(t, script, "#!/bin/sh\nexit 1\n")

	h := NewHooks(dataDir)
	err := h.Run(context.Background(), HookPostTool, RunContext{AgentID: "a1", WorkspaceRoot: dataDir}, "delete_file", nil)
	if err == nil {
		t.Fatal("expected failing hook to return an error")
	}
}
