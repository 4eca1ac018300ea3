package service

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/agent-platform/internal/domain"
	"github.com/Rrens/agent-platform/internal/metrics"
)

const (
	defaultSessionTimeout = time.Hour
	defaultAppCacheTTL    = 5 * time.Minute
	defaultPublicBaseURL  = "http://localhost:8000"

	anonymousUserID = "anonymous_user"
	defaultUserID   = "default_user"
	sharedUserFmt   = "shared_%s"
)

var validate = validator.New()

// PlatformOptions tunes a PlatformService; zero values select defaults
type PlatformOptions struct {
	SessionTimeout time.Duration
	AppCacheTTL    time.Duration
	PublicBaseURL  string
	Metrics        *metrics.Collector
	// Now overrides the clock, for tests
	Now func() time.Time
}

// PlatformService is the in-process registry of platform sessions and the
// cached view of available applications.
type PlatformService struct {
	catalog        domain.AgentCatalog
	store          domain.ConversationStore
	metrics        *metrics.Collector
	now            func() time.Time
	sessionTimeout time.Duration
	cacheTTL       time.Duration
	publicBaseURL  string

	mu       sync.RWMutex
	sessions map[string]*domain.AppSession
	order    []string // launch order, keeps listing deterministic

	cacheMu        sync.RWMutex
	appCache       []domain.Application
	cacheTimestamp time.Time
}

// NewPlatformService creates a new platform session registry
func NewPlatformService(catalog domain.AgentCatalog, store domain.ConversationStore, opts PlatformOptions) *PlatformService {
	s := &PlatformService{
		catalog:        catalog,
		store:          store,
		metrics:        opts.Metrics,
		now:            opts.Now,
		sessionTimeout: opts.SessionTimeout,
		cacheTTL:       opts.AppCacheTTL,
		publicBaseURL:  opts.PublicBaseURL,
		sessions:       make(map[string]*domain.AppSession),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sessionTimeout <= 0 {
		s.sessionTimeout = defaultSessionTimeout
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaultAppCacheTTL
	}
	if s.publicBaseURL == "" {
		s.publicBaseURL = defaultPublicBaseURL
	}
	return s
}

// ListApps returns every application known to the catalog, serving the
// cached snapshot while it is younger than the cache TTL.
func (s *PlatformService) ListApps(ctx context.Context) ([]domain.Application, error) {
	s.cacheMu.RLock()
	if s.appCache != nil && s.now().Sub(s.cacheTimestamp) < s.cacheTTL {
		apps := slices.Clone(s.appCache)
		s.cacheMu.RUnlock()
		s.metrics.AppCacheHit()
		return apps, nil
	}
	s.cacheMu.RUnlock()
	s.metrics.AppCacheMiss()

	names, err := s.catalog.ListAgentNames(ctx)
	if err != nil {
		s.metrics.CollaboratorFailure("catalog.list")
		return nil, fmt.Errorf("failed to list agents: %w", domain.NewCollaboratorError("catalog.list", err))
	}

	apps := make([]domain.Application, 0, len(names))
	for _, name := range names {
		app, err := s.loadApp(ctx, name)
		if err != nil {
			log.Warn().Err(err).Str("agent", name).Msg("failed to load agent, using minimal descriptor")
			s.metrics.CollaboratorFailure("catalog.load")
			app = minimalApplication(name)
		}
		apps = append(apps, app)
	}

	s.cacheMu.Lock()
	s.appCache = apps
	s.cacheTimestamp = s.now()
	s.cacheMu.Unlock()

	return slices.Clone(apps), nil
}

func (s *PlatformService) loadApp(ctx context.Context, name string) (domain.Application, error) {
	cfg, err := s.catalog.LoadAgentConfig(ctx, name)
	if err != nil {
		return domain.Application{}, err
	}
	return applicationFromConfig(name, cfg)
}

// GetApp returns the application with the given name, or nil when absent
func (s *PlatformService) GetApp(ctx context.Context, name string) (*domain.Application, error) {
	apps, err := s.ListApps(ctx)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].Name == name {
			app := apps[i]
			return &app, nil
		}
	}
	return nil, nil
}

// Launch creates a platform session for an application together with its
// underlying conversation session.
func (s *PlatformService) Launch(ctx context.Context, appName string, req domain.LaunchRequest) (*domain.LaunchResult, error) {
	app, err := s.GetApp(ctx, appName)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, fmt.Errorf("application '%s' not found: %w", appName, domain.ErrNotFound)
	}

	mode := req.UserMode
	if mode == "" {
		mode = domain.UserModeIndividual
	}
	userID, err := ResolveUserID(mode, req.UserID, appName)
	if err != nil {
		return nil, err
	}

	timeout := s.sessionTimeout
	var state map[string]any
	persistent := false
	if cfg := req.SessionConfig; cfg != nil {
		if cfg.Timeout != nil {
			if *cfg.Timeout < 0 {
				return nil, fmt.Errorf("session timeout must not be negative: %w", domain.ErrValidation)
			}
			if int64(*cfg.Timeout) > maxTimeoutSeconds {
				return nil, fmt.Errorf("session timeout exceeds %d seconds: %w", maxTimeoutSeconds, domain.ErrValidation)
			}
			timeout = time.Duration(*cfg.Timeout) * time.Second
		}
		state = cfg.State
		persistent = cfg.Persistent
	}

	sessionID := uuid.NewString()
	key := domain.ConversationKey{AppName: appName, UserID: userID, SessionID: sessionID}

	if err := s.acquireConversation(ctx, key, state); err != nil {
		return nil, fmt.Errorf("failed to create conversation session: %w", err)
	}

	now := s.now().UTC()
	expiresAt := now.Add(timeout)
	metadata := maps.Clone(req.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}

	record := &domain.AppSession{
		SessionID:    sessionID,
		AppName:      appName,
		UserID:       userID,
		UserMode:     mode,
		Status:       domain.SessionStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    &expiresAt,
		Metadata:     metadata,
		IsPersistent: persistent,
	}

	s.mu.Lock()
	s.sessions[sessionID] = record
	s.order = append(s.order, sessionID)
	tracked := len(s.sessions)
	out := record.Clone()
	s.mu.Unlock()

	s.metrics.SessionLaunched(appName, string(mode))
	s.metrics.SetSessionsTracked(tracked)

	log.Info().
		Str("session_id", sessionID).
		Str("app", appName).
		Str("user_id", userID).
		Msg("launched app session")

	wsURL, sseURL := connectionURLs(s.publicBaseURL, key)
	return &domain.LaunchResult{
		Session:      out,
		App:          app,
		WebsocketURL: wsURL,
		SSEURL:       sseURL,
	}, nil
}

// maxTimeoutSeconds is the largest timeout representable as a time.Duration
const maxTimeoutSeconds = math.MaxInt64 / int64(time.Second)

// acquireConversation reuses an existing conversation for key or creates one
func (s *PlatformService) acquireConversation(ctx context.Context, key domain.ConversationKey, state map[string]any) error {
	existing, err := s.store.Get(ctx, key)
	if err != nil {
		s.metrics.CollaboratorFailure("store.get")
		return domain.NewCollaboratorError("store.get", err)
	}
	if existing != nil {
		return nil
	}

	if _, err := s.store.Create(ctx, key, state); err != nil {
		s.metrics.CollaboratorFailure("store.create")
		return domain.NewCollaboratorError("store.create", err)
	}
	return nil
}

// ResolveUserID derives the effective user for a launch. Shared launches of
// one application all collapse onto the same user.
func ResolveUserID(mode domain.UserMode, provided, appName string) (string, error) {
	switch mode {
	case domain.UserModeAnonymous:
		return anonymousUserID, nil
	case domain.UserModeShared:
		return fmt.Sprintf(sharedUserFmt, appName), nil
	case domain.UserModeIndividual:
		if provided == "" {
			return defaultUserID, nil
		}
		return provided, nil
	default:
		return "", fmt.Errorf("unknown user mode %q: %w", mode, domain.ErrValidation)
	}
}

// isExpired is the single expiry rule shared by reads and the cleanup sweep
func isExpired(rec *domain.AppSession, now time.Time) bool {
	return rec.ExpiresAt != nil && !now.Before(*rec.ExpiresAt)
}

// applyLazyExpiry marks a record expired in place; caller holds s.mu
func applyLazyExpiry(rec *domain.AppSession, now time.Time) {
	if rec.Status != domain.SessionStatusExpired && isExpired(rec, now) {
		rec.Status = domain.SessionStatusExpired
	}
}

// GetSession returns a copy of the session, applying lazy expiry first
func (s *PlatformService) GetSession(ctx context.Context, sessionID string) (*domain.AppSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	applyLazyExpiry(rec, s.now())
	return rec.Clone(), true
}

// UpdateSession applies a partial update. Metadata is merged key by key.
func (s *PlatformService) UpdateSession(ctx context.Context, sessionID string, upd domain.SessionUpdate) (*domain.AppSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session '%s': %w", sessionID, domain.ErrNotFound)
	}
	now := s.now()
	applyLazyExpiry(rec, now)

	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, fmt.Errorf("unknown status %q: %w", *upd.Status, domain.ErrValidation)
		}
		if !rec.Status.CanTransitionTo(*upd.Status) {
			return nil, fmt.Errorf("cannot change status from %s to %s: %w", rec.Status, *upd.Status, domain.ErrValidation)
		}
		rec.Status = *upd.Status
	}
	if len(upd.Metadata) > 0 {
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]any, len(upd.Metadata))
		}
		for k, v := range upd.Metadata {
			rec.Metadata[k] = v
		}
	}
	if upd.ExpiresAt != nil {
		t := upd.ExpiresAt.UTC()
		rec.ExpiresAt = &t
	}
	rec.UpdatedAt = now.UTC()

	return rec.Clone(), nil
}

// ListSessions filters and paginates sessions in launch order
func (s *PlatformService) ListSessions(ctx context.Context, filter domain.SessionFilter) (*domain.SessionList, error) {
	if (filter.Page != nil && *filter.Page < 1) || (filter.PageSize != nil && *filter.PageSize < 1) {
		return nil, fmt.Errorf("page and page_size must be positive: %w", domain.ErrValidation)
	}

	s.mu.Lock()
	now := s.now()
	matched := make([]*domain.AppSession, 0, len(s.order))
	activeCount := 0
	for _, id := range s.order {
		rec := s.sessions[id]
		applyLazyExpiry(rec, now)
		if filter.AppName != "" && rec.AppName != filter.AppName {
			continue
		}
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if rec.Status == domain.SessionStatusActive {
			activeCount++
		}
		matched = append(matched, rec.Clone())
	}
	s.mu.Unlock()

	total := len(matched)
	page := matched
	if filter.Page != nil && filter.PageSize != nil {
		size := *filter.PageSize
		// compare by page index so huge sizes cannot overflow the offset
		if total == 0 || *filter.Page-1 > (total-1)/size {
			page = []*domain.AppSession{}
		} else {
			start := (*filter.Page - 1) * size
			page = matched[start : start+min(size, total-start)]
		}
	}

	return &domain.SessionList{
		Sessions:    page,
		TotalCount:  total,
		ActiveCount: activeCount,
		Page:        filter.Page,
		PageSize:    filter.PageSize,
	}, nil
}

// DeleteSession removes a session and best-effort deletes its conversation.
// It reports false when the session does not exist.
func (s *PlatformService) DeleteSession(ctx context.Context, sessionID string) bool {
	s.mu.Lock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.sessions, sessionID)
	if i := slices.Index(s.order, sessionID); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	tracked := len(s.sessions)
	key := domain.ConversationKey{AppName: rec.AppName, UserID: rec.UserID, SessionID: sessionID}
	s.mu.Unlock()

	if cerr := s.deleteConversation(ctx, key); cerr != nil {
		log.Warn().Err(cerr).Str("session_id", sessionID).Msg("failed to delete conversation session")
	}

	s.metrics.SessionDeleted()
	s.metrics.SetSessionsTracked(tracked)
	log.Info().Str("session_id", sessionID).Msg("deleted app session")
	return true
}

// deleteConversation never fails the caller; the typed error is for logging
func (s *PlatformService) deleteConversation(ctx context.Context, key domain.ConversationKey) *domain.CollaboratorError {
	if err := s.store.Delete(ctx, key); err != nil {
		s.metrics.CollaboratorFailure("store.delete")
		return domain.NewCollaboratorError("store.delete", err)
	}
	return nil
}

// CleanupExpired deletes every session whose expiry has passed and returns
// how many were removed.
func (s *PlatformService) CleanupExpired(ctx context.Context) int {
	now := s.now()

	s.mu.RLock()
	var expired []string
	for _, id := range s.order {
		if isExpired(s.sessions[id], now) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	deleted := 0
	for _, id := range expired {
		if s.DeleteSession(ctx, id) {
			deleted++
		}
	}

	s.metrics.SessionsSwept(deleted)
	log.Info().Int("deleted", deleted).Msg("cleaned up expired sessions")
	return deleted
}

// SessionCount returns the number of sessions currently held
func (s *PlatformService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
