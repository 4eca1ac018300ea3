// Package catalog loads agent definitions from a directory tree. Each agent
// lives in its own sub-directory holding an agent.yaml (or agent.yml /
// agent.json) definition with an optional platform block.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Rrens/agent-platform/internal/domain"
)

var definitionFiles = []string{"agent.yaml", "agent.yml", "agent.json"}

// FileCatalog implements domain.AgentCatalog over a directory
type FileCatalog struct {
	dir string
}

// NewFileCatalog creates a catalog rooted at dir
func NewFileCatalog(dir string) *FileCatalog {
	return &FileCatalog{dir: dir}
}

// ListAgentNames returns agent directory names in lexical order
func (c *FileCatalog) ListAgentNames(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || skipDir(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// LoadAgentConfig parses the definition of one agent
func (c *FileCatalog) LoadAgentConfig(ctx context.Context, name string) (*domain.AgentConfig, error) {
	if name == "" || skipDir(name) || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("agent %q: %w", name, domain.ErrNotFound)
	}

	agentDir := filepath.Join(c.dir, name)
	info, err := os.Stat(agentDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("agent %q: %w", name, domain.ErrNotFound)
	}

	for _, file := range definitionFiles {
		path := filepath.Join(agentDir, file)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read agent definition: %w", err)
		}

		cfg, err := parseDefinition(data, filepath.Ext(file))
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
		if cfg.Name == "" {
			cfg.Name = name
		}
		return cfg, nil
	}

	return nil, fmt.Errorf("agent %q has no definition file", name)
}

func parseDefinition(data []byte, ext string) (*domain.AgentConfig, error) {
	var cfg domain.AgentConfig
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported definition format %q", ext)
	}
	return &cfg, nil
}

// skipDir filters hidden and private directories such as __pycache__
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
