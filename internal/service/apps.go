package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Rrens/agent-platform/internal/domain"
)

// minimalApplication is substituted when an agent cannot be loaded
func minimalApplication(name string) domain.Application {
	return domain.Application{
		Name:         name,
		Description:  fmt.Sprintf("Agent: %s", name),
		AppType:      domain.AppTypeChatbot,
		Capabilities: []string{},
		UIConfig:     domain.DefaultUIConfig(),
		CreatedAt:    domain.DefaultAppCreatedAt,
		Version:      domain.DefaultAppVersion,
		Tags:         []string{},
	}
}

// applicationFromConfig builds the descriptor from an agent's platform block.
// An invalid platform block is reported as an error.
func applicationFromConfig(name string, cfg *domain.AgentConfig) (domain.Application, error) {
	app := minimalApplication(name)
	if cfg == nil || cfg.Platform == nil {
		return app, nil
	}
	p := cfg.Platform

	if p.Description != "" {
		app.Description = p.Description
	}
	if p.AppType != "" {
		t := domain.AppType(p.AppType)
		if !t.Valid() {
			return domain.Application{}, fmt.Errorf("invalid app_type %q", p.AppType)
		}
		app.AppType = t
	}
	if p.UIConfig != nil {
		ui := *p.UIConfig
		if ui.Theme == "" {
			ui.Theme = domain.DefaultTheme
		}
		if ui.Layout == "" {
			ui.Layout = domain.DefaultLayout
		}
		if ui.Features == nil {
			ui.Features = []string{}
		}
		if err := validate.Struct(ui); err != nil {
			return domain.Application{}, fmt.Errorf("invalid ui_config: %w", err)
		}
		app.UIConfig = ui
	}
	if p.Capabilities != nil {
		app.Capabilities = p.Capabilities
	}
	if p.CreatedAt != "" {
		app.CreatedAt = p.CreatedAt
	}
	if p.Version != "" {
		app.Version = p.Version
	}
	if p.Author != "" {
		author := p.Author
		app.Author = &author
	}
	if p.Tags != nil {
		app.Tags = p.Tags
	}
	return app, nil
}

// CountByType groups applications by type for the listing endpoint
func CountByType(apps []domain.Application) map[string]int {
	categories := make(map[string]int)
	for _, app := range apps {
		categories[string(app.AppType)]++
	}
	return categories
}

// connectionURLs derives the live and event streaming endpoints for a session
func connectionURLs(base string, key domain.ConversationKey) (string, string) {
	base = strings.TrimRight(base, "/")
	query := "app_name=" + url.QueryEscape(key.AppName) +
		"&user_id=" + url.QueryEscape(key.UserID) +
		"&session_id=" + url.QueryEscape(key.SessionID)

	wsBase := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		switch u.Scheme {
		case "https":
			u.Scheme = "wss"
		default:
			u.Scheme = "ws"
		}
		wsBase = strings.TrimRight(u.String(), "/")
	}

	return wsBase + "/run_live?" + query, base + "/run_sse"
}
