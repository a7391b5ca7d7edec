package models

// SkillDefinition is a dynamic, file-backed tool: invoking it runs
// ExecutionCommand as a subprocess with the call's JSON arguments passed
// through the environment. Name doubles as the filename stem once
// sanitized to [A-Za-z0-9_-]; the unsanitized Name is preserved as the
// registry's map key.
type SkillDefinition struct {
	ID               string         `json:"id,omitempty"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	ExecutionCommand string         `json:"execution_command"`
	Schema           map[string]any `json:"schema"`
	DocURL           string         `json:"doc_url,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
}

// WorkflowDefinition is a Markdown procedure injected verbatim into an
// agent's system prompt when the agent has it enabled.
type WorkflowDefinition struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name"`
	Content string   `json:"content"`
	DocURL  string   `json:"doc_url,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}
