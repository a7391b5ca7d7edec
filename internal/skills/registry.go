// Package skills is the dynamic capability registry: in-memory maps of
// skills and workflows loaded from a data directory, reloadable at runtime
// and mutated only through atomic whole-map swaps.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"encoding/json"

	"github.com/haasonsaas/nexus/pkg/models"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// sanitizeFilename replaces every character outside [A-Za-z0-9_-] with an
// underscore, used for the on-disk filename only. A skill keeps its
// original name as the map key across reloads (the name is stored in its
// JSON); a workflow reloaded from disk is keyed by its file stem.
func sanitizeFilename(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// Registry holds the current skill and workflow maps, loaded from
// dataDir/skills/*.json and dataDir/workflows/*.md. Reload rebuilds both
// maps from disk and swaps them in atomically; readers never observe a
// partially-rebuilt map.
type Registry struct {
	dataDir string

	mu        sync.RWMutex
	skills    map[string]models.SkillDefinition
	workflows map[string]models.WorkflowDefinition
}

// NewRegistry creates a Registry rooted at dataDir, creating the
// skills/workflows subdirectories if they don't exist, and performs an
// initial load.
func NewRegistry(dataDir string) (*Registry, error) {
	r := &Registry{
		dataDir:   dataDir,
		skills:    make(map[string]models.SkillDefinition),
		workflows: make(map[string]models.WorkflowDefinition),
	}
	for _, sub := range []string{"skills", "workflows"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", sub, err)
		}
	}
	if err := r.ReloadAll(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) skillsDir() string    { return filepath.Join(r.dataDir, "skills") }
func (r *Registry) workflowsDir() string { return filepath.Join(r.dataDir, "workflows") }

// ReloadAll rebuilds the skill and workflow maps from disk and swaps them
// in atomically. A skill file that fails to parse is skipped, not fatal.
func (r *Registry) ReloadAll() error {
	newSkills := make(map[string]models.SkillDefinition)
	entries, err := os.ReadDir(r.skillsDir())
	if err != nil {
		return fmt.Errorf("read skills directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.skillsDir(), entry.Name()))
		if err != nil {
			continue
		}
		var skill models.SkillDefinition
		if err := json.Unmarshal(data, &skill); err != nil {
			continue
		}
		newSkills[skill.Name] = skill
	}

	newWorkflows := make(map[string]models.WorkflowDefinition)
	entries, err = os.ReadDir(r.workflowsDir())
	if err != nil {
		return fmt.Errorf("read workflows directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		data, err := os.ReadFile(filepath.Join(r.workflowsDir(), entry.Name()))
		if err != nil {
			continue
		}
		newWorkflows[name] = models.WorkflowDefinition{Name: name, Content: string(data)}
	}

	r.mu.Lock()
	r.skills = newSkills
	r.workflows = newWorkflows
	r.mu.Unlock()
	return nil
}

// Skill returns the skill registered under name.
func (r *Registry) Skill(name string) (models.SkillDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	return s, ok
}

// Workflow returns the workflow registered under name.
func (r *Registry) Workflow(name string) (models.WorkflowDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[name]
	return w, ok
}

// Workflows returns the content of every named workflow that exists,
// in the order names was given, skipping names with no match.
func (r *Registry) Workflows(names []string) []models.WorkflowDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.WorkflowDefinition, 0, len(names))
	for _, name := range names {
		if w, ok := r.workflows[name]; ok {
			out = append(out, w)
		}
	}
	return out
}

// ListSkills returns every registered skill, sorted by name.
func (r *Registry) ListSkills() []models.SkillDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SkillDefinition, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SaveSkill writes skill to disk under its sanitized filename and inserts
// it into the in-memory map keyed by its original (unsanitized) name.
func (r *Registry) SaveSkill(skill models.SkillDefinition) error {
	path := filepath.Join(r.skillsDir(), sanitizeFilename(skill.Name)+".json")
	data, err := json.MarshalIndent(skill, "", "  ")
	if err != nil {
		return fmt.Errorf("encode skill: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write skill file: %w", err)
	}

	r.mu.Lock()
	r.skills[skill.Name] = skill
	r.mu.Unlock()
	return nil
}

// DeleteSkill removes skill name's file (if present) and map entry.
func (r *Registry) DeleteSkill(name string) error {
	path := filepath.Join(r.skillsDir(), sanitizeFilename(name)+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove skill file: %w", err)
	}

	r.mu.Lock()
	delete(r.skills, name)
	r.mu.Unlock()
	return nil
}

// SaveWorkflow writes workflow.Content to disk under its sanitized
// filename and inserts it into the in-memory map under its original name;
// after ReloadAll it is keyed by the sanitized file stem instead.
func (r *Registry) SaveWorkflow(workflow models.WorkflowDefinition) error {
	path := filepath.Join(r.workflowsDir(), sanitizeFilename(workflow.Name)+".md")
	if err := os.WriteFile(path, []byte(workflow.Content), 0o644); err != nil {
		return fmt.Errorf("write workflow file: %w", err)
	}

	r.mu.Lock()
	r.workflows[workflow.Name] = workflow
	r.mu.Unlock()
	return nil
}

// DeleteWorkflow removes workflow name's file (if present) and map entry.
func (r *Registry) DeleteWorkflow(name string) error {
	path := filepath.Join(r.workflowsDir(), sanitizeFilename(name)+".md")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove workflow file: %w", err)
	}

	r.mu.Lock()
	delete(r.workflows, name)
	r.mu.Unlock()
	return nil
}
