// Package promptoverride loads a local YAML file of prompt fallbacks for
// offline development: values the cache falls back to when the remote
// fetch fails, e.g. no network during local development.
package promptoverride

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/langfuse/langfuse-go/pkg/prompt"
)

// File is the on-disk shape: a map of prompt name to its fallback
// definition.
type File struct {
	Prompts map[string]Entry `yaml:"prompts"`
}

// Entry is one prompt's local override.
type Entry struct {
	Version int               `yaml:"version"`
	Type    prompt.Type       `yaml:"type"`
	Text    string            `yaml:"text,omitempty"`
	Chat    []prompt.ChatItem `yaml:"chat,omitempty"`
	Config  map[string]any    `yaml:"config,omitempty"`
	Labels  []string          `yaml:"labels,omitempty"`
	Tags    []string          `yaml:"tags,omitempty"`
}

// Load reads and parses path into a File.
func Load(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("promptoverride: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("promptoverride: parse %s: %w", path, err)
	}
	return f, nil
}

// Fallback converts a named entry into a prompt.Prompt flagged as a
// fallback, suitable for promptcache.GetOptions.Fallback.
func (f File) Fallback(name string) (prompt.Prompt, bool) {
	e, ok := f.Prompts[name]
	if !ok {
		return prompt.Prompt{}, false
	}
	p := prompt.Prompt{
		Name:       name,
		Version:    e.Version,
		Type:       e.Type,
		Text:       e.Text,
		Chat:       e.Chat,
		Config:     e.Config,
		Labels:     e.Labels,
		Tags:       e.Tags,
		IsFallback: true,
	}
	if p.Type == "" {
		p.Type = prompt.TypeText
	}
	return p, true
}
