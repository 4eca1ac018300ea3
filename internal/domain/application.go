package domain

import "context"

// AppType classifies an agent-backed application
type AppType string

const (
	AppTypeChatbot AppType = "chatbot"
	AppTypeCustom  AppType = "custom"
)

// Valid reports whether t is a known application type
func (t AppType) Valid() bool {
	return t == AppTypeChatbot || t == AppTypeCustom
}

// Defaults applied to applications whose agent carries no platform config
const (
	DefaultAppCreatedAt = "2025-01-01T00:00:00Z"
	DefaultAppVersion   = "1.0.0"
	DefaultTheme        = "modern"
	DefaultLayout       = "chat"
)

// UIConfig describes how a client should render an application
type UIConfig struct {
	Theme    string            `json:"theme" yaml:"theme" validate:"omitempty,oneof=modern classic"`
	Layout   string            `json:"layout" yaml:"layout" validate:"omitempty,oneof=chat dashboard custom"`
	Features []string          `json:"features" yaml:"features"`
	Colors   map[string]string `json:"colors,omitempty" yaml:"colors"`
}

// DefaultUIConfig returns the UI config used when none is declared
func DefaultUIConfig() UIConfig {
	return UIConfig{
		Theme:    DefaultTheme,
		Layout:   DefaultLayout,
		Features: []string{},
	}
}

// Application describes one registered agent-backed application
type Application struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	AppType      AppType  `json:"appType"`
	Capabilities []string `json:"capabilities"`
	UIConfig     UIConfig `json:"uiConfig"`
	CreatedAt    string   `json:"createdAt"`
	Version      string   `json:"version"`
	Author       *string  `json:"author,omitempty"`
	Tags         []string `json:"tags"`
}

// AppList is the payload of the application listing endpoint
type AppList struct {
	Apps       []Application  `json:"apps"`
	TotalCount int            `json:"totalCount"`
	Categories map[string]int `json:"categories"`
}

// PlatformConfig is the optional platform block of an agent definition
type PlatformConfig struct {
	Description  string    `json:"description" yaml:"description"`
	AppType      string    `json:"app_type" yaml:"app_type"`
	Capabilities []string  `json:"capabilities" yaml:"capabilities"`
	UIConfig     *UIConfig `json:"ui_config" yaml:"ui_config"`
	CreatedAt    string    `json:"created_at" yaml:"created_at"`
	Version      string    `json:"version" yaml:"version"`
	Author       string    `json:"author" yaml:"author"`
	Tags         []string  `json:"tags" yaml:"tags"`
}

// AgentConfig is what the agent catalog returns for a single agent
type AgentConfig struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Model       string          `json:"model" yaml:"model"`
	Instruction string          `json:"instruction" yaml:"instruction"`
	Tools       []string        `json:"tools" yaml:"tools"`
	Platform    *PlatformConfig `json:"platform" yaml:"platform"`
}

// AgentCatalog enumerates and loads agent definitions. Implementations must be
// side-effect free on read.
type AgentCatalog interface {
	ListAgentNames(ctx context.Context) ([]string, error)
	LoadAgentConfig(ctx context.Context, name string) (*AgentConfig, error)
}
