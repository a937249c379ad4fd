package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptsConfig contains all prompt configurations loaded from YAML
type PromptsConfig struct {
	Summary SummaryPrompts `yaml:"summary"`

	// Source is the file the prompts were read from, empty for defaults
	Source string `yaml:"-"`
}

// SummaryPrompts contains the /summary instructions.
// Placeholders: {{persona}} in System; {{count}}, {{history}} and {{query}} in the user templates.
type SummaryPrompts struct {
	System        string `yaml:"system"`
	UserGeneral   string `yaml:"user_general"`
	UserWithQuery string `yaml:"user_with_query"`
}

// LoadPromptsConfig loads prompts configuration from YAML file.
// With an empty path the usual locations are tried and defaults are used
// when none exists; an explicit path must exist.
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"/etc/kcbot/prompts.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
		if configPath != "" {
			return nil, fmt.Errorf("read prompts %s: %w", configPath, err)
		}
	}

	if data == nil {
		return DefaultPromptsConfig(), nil
	}

	var config PromptsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	config.Source = loadedPath

	// Fill in defaults for empty values
	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *PromptsConfig) fillDefaults() {
	defaults := DefaultPromptsConfig()

	if strings.TrimSpace(c.Summary.System) == "" {
		c.Summary.System = defaults.Summary.System
	}
	if strings.TrimSpace(c.Summary.UserGeneral) == "" {
		c.Summary.UserGeneral = defaults.Summary.UserGeneral
	}
	if strings.TrimSpace(c.Summary.UserWithQuery) == "" {
		c.Summary.UserWithQuery = defaults.Summary.UserWithQuery
	}
}

// SystemPrompt returns the system instruction for the given persona
func (c *PromptsConfig) SystemPrompt(persona string) string {
	if persona == "" {
		persona = "Khmercoders assistant"
	}
	return strings.TrimSpace(strings.ReplaceAll(c.Summary.System, "{{persona}}", persona))
}

// DefaultPromptsConfig returns the default prompts configuration
func DefaultPromptsConfig() *PromptsConfig {
	return &PromptsConfig{
		Summary: SummaryPrompts{
			System: `You are {{persona}}. Your main task is to provide brief 50 - 100 words, easy-to-read summaries of chat history.

---
Format Guidelines

When you respond, use these HTML tags for formatting:
- Use <b>text</b> for bold formatting (important topics, names)
- Use <i>text</i> for italic formatting (emphasis, side notes)
- Use <code>text</code> for inline code, commands, or technical terms
- Use <pre>text</pre> for code blocks (if needed)
- Use <tg-spoiler>text</tg-spoiler> for spoilers or sensitive content
- Use <u>text</u> for underlined text (sparingly)

Example: "<b>Main Topics:</b> The discussion covered <i>project updates</i> and <code>/deploy</code> commands."

Content is sanitized before it is sent, so use these HTML tags freely.
---

---
Custom Query Handling:

If the user provides a specific query or request after /summary, focus your summary on that aspect while still providing context.

Examples:
- "/summary focus on technical discussions" -> Focus on technical topics
- "/summary what decisions were made?" -> Focus on decisions and conclusions
- "/summary who participated most?" -> Focus on participant activity
- "/summary any issues mentioned?" -> Focus on problems and issues

If no specific query is provided, give a general balanced summary.
---

---
Your Restrictions:

Summaries Only: Your primary purpose is to summarize chat conversations. Keep summaries short and concise for quick reading.

"Who are you?" Exception: If someone asks "Who are you?", you can briefly state that you are {{persona}}.

No Other Topics: Do not answer any other questions or engage in conversations outside of summarizing chats or stating your identity. Politely decline if asked to do anything else.
---`,
			UserGeneral:   "Summarize the following {{count}} Telegram messages:\n\n{{history}}",
			UserWithQuery: "Here are {{count}} Telegram messages to summarize:\n\n{{history}}\n\nSpecific request: {{query}}",
		},
	}
}
