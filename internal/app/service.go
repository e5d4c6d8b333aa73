package app

import (
	"fmt"

	"github.com/suseoaa/oaacore/internal/checkin"
	"github.com/suseoaa/oaacore/internal/portal"
	"github.com/suseoaa/oaacore/internal/session"
	"github.com/suseoaa/oaacore/internal/store"
)

type Service struct {
	Config          *Config
	Store           store.LocalStore
	PortalSessions  session.Repository
	CheckinSessions session.Repository
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := NewStore(config.Database.DSN, config.Database.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	portalSessions, err := newSessionRepository(config, config.Redis.PortalKeyTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to init portal sessions: %w", err)
	}

	checkinSessions, err := newSessionRepository(config, config.Redis.CheckinKeyTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to init checkin sessions: %w", err)
	}

	return &Service{
		Config:          config,
		Store:           store,
		PortalSessions:  portalSessions,
		CheckinSessions: checkinSessions,
	}, nil
}

func newSessionRepository(config *Config, keyTemplate string) (session.Repository, error) {
	if config.Redis.URL == "" {
		return session.NewMemoryRepository(), nil
	}
	return session.NewRedisRepository(config.Redis.URL, keyTemplate)
}

// PortalClient builds a fresh portal client sharing the saved sessions.
// Each account gets its own client because the cookie jar is per login.
func (s *Service) PortalClient() (*portal.Client, error) {
	return portal.NewClient(s.Config.Portal.BaseURL, s.PortalSessions)
}

func (s *Service) CheckinClient() (*checkin.Client, error) {
	return checkin.NewClient(s.Config.Checkin.BaseURL, s.Config.Checkin.UIASURL, s.CheckinSessions)
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.PortalSessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("portal sessions: %w", err))
	}
	if err := s.CheckinSessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("checkin sessions: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
