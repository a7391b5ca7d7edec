package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestSaveSkill_PreservesOriginalNameAsKeyAfterReload(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	name := "Finance Report: Q1 / Draft!"
	if err := reg.SaveSkill(models.SkillDefinition{
		Name:             name,
		Description:      "summarizes quarterly numbers",
		ExecutionCommand: "finance-report",
	}); err != nil {
		t.Fatalf("SaveSkill: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "skills"))
	if err != nil {
		t.Fatalf("read skills dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one skill file, got %d", len(entries))
	}
	if entries[0].Name() == name+".json" {
		t.Fatalf("expected sanitized filename, got unsanitized %q", entries[0].Name())
	}

	if err := reg.ReloadAll(); err != nil {
		t.Fatalf("ReloadAll: %v", err)
	}

	skill, ok := reg.Skill(name)
	if !ok {
		t.Fatalf("expected skill registered under original name %q after reload", name)
	}
	if skill.ExecutionCommand != "finance-report" {
		t.Errorf("got execution command %q", skill.ExecutionCommand)
	}
}

func TestReloadAll_SkipsMalformedSkillFile(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if err := reg.SaveSkill(models.SkillDefinition{Name: "good", ExecutionCommand: "ok"}); err != nil {
		t.Fatalf("SaveSkill: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skills", "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write broken file: %v", err)
	}

	if err := reg.ReloadAll(); err != nil {
		t.Fatalf("ReloadAll should not abort on a malformed file: %v", err)
	}

	if _, ok := reg.Skill("good"); !ok {
		t.Error("expected well-formed skill to still load")
	}
	if len(reg.ListSkills()) != 1 {
		t.Errorf("expected exactly one valid skill, got %d", len(reg.ListSkills()))
	}
}

func TestSaveWorkflow_ReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if err := reg.SaveWorkflow(models.WorkflowDefinition{Name: "triage/steps", Content: "1. Look\n2. Decide\n"}); err != nil {
		t.Fatalf("SaveWorkflow: %v", err)
	}
	if err := reg.ReloadAll(); err != nil {
		t.Fatalf("ReloadAll: %v", err)
	}

	wf, ok := reg.Workflow("triage_steps")
	if !ok {
		t.Fatal("expected workflow registered under its file stem after reload")
	}
	if wf.Content != "1. Look\n2. Decide\n" {
		t.Errorf("got content %q", wf.Content)
	}
}

func TestDeleteSkill_RemovesFileAndEntry(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if err := reg.SaveSkill(models.SkillDefinition{Name: "temp", ExecutionCommand: "noop"}); err != nil {
		t.Fatalf("SaveSkill: %v", err)
	}
	if err := reg.DeleteSkill("temp"); err != nil {
		t.Fatalf("DeleteSkill: %v", err)
	}
	if _, ok := reg.Skill("temp"); ok {
		t.Error("expected skill to be gone after delete")
	}

	entries, err := os.ReadDir(filepath.Join(dir, "skills"))
	if err != nil {
		t.Fatalf("read skills dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no skill files after delete, got %d", len(entries))
	}
}
