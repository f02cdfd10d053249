package services

import (
	"context"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"quire/internal/constants"
	"quire/internal/models"
	"quire/internal/repository"
)

// SiteService owns tenants and their settings.  Settings are cached per site
// and reloaded after every write; content is never cached.
type SiteService struct {
	sites    *repository.SiteRepository
	settings *repository.SettingRepository
	validate *validator.Validate
	log      *zap.Logger

	cache     map[string]map[string]string
	cacheLock sync.RWMutex
}

func NewSiteService(sites *repository.SiteRepository, settings *repository.SettingRepository, log *zap.Logger) *SiteService {
	return &SiteService{
		sites:    sites,
		settings: settings,
		validate: validator.New(),
		log:      log,
		cache:    make(map[string]map[string]string),
	}
}

// CreateSite registers a tenant.  Host is optional but unique when set.
func (s *SiteService) CreateSite(ctx context.Context, name, host string) (*models.Site, error) {
	site := &models.Site{
		ID:   uuid.NewString(),
		Name: strings.TrimSpace(name),
		Host: strings.ToLower(strings.TrimSpace(host)),
	}
	if err := s.validate.Struct(site); err != nil {
		return nil, validationFrom(err)
	}
	if site.Host != "" {
		taken, err := s.sites.CheckHostExists(ctx, site.Host, "")
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, models.ConflictError{Resource: "site host", Key: site.Host}
		}
	}
	if err := s.sites.Create(ctx, site); err != nil {
		return nil, err
	}
	s.log.Info("site created", zap.String("site", site.ID), zap.String("host", site.Host))
	return site, nil
}

// GetSite returns the site or nil.
func (s *SiteService) GetSite(ctx context.Context, id string) (*models.Site, error) {
	return s.sites.FindByID(ctx, id)
}

// ResolveSite finds a site by id first, then by host.
func (s *SiteService) ResolveSite(ctx context.Context, idOrHost string) (*models.Site, error) {
	if idOrHost == "" {
		return nil, nil
	}
	site, err := s.sites.FindByID(ctx, idOrHost)
	if err != nil || site != nil {
		return site, err
	}
	host := strings.ToLower(idOrHost)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	return s.sites.FindByHost(ctx, host)
}

func (s *SiteService) ListSites(ctx context.Context) ([]models.Site, error) {
	return s.sites.FindAll(ctx)
}

func (s *SiteService) loadSettings(ctx context.Context, siteID string) (map[string]string, error) {
	settings, err := s.settings.GetAllSettings(ctx, siteID)
	if err != nil {
		s.log.Error("load settings failed", zap.String("site", siteID), zap.Error(err))
		return nil, err
	}
	s.cacheLock.Lock()
	s.cache[siteID] = settings
	s.cacheLock.Unlock()
	return settings, nil
}

// GetSettings returns a copy of a site's settings.
func (s *SiteService) GetSettings(ctx context.Context, siteID string) (map[string]string, error) {
	s.cacheLock.RLock()
	cached, ok := s.cache[siteID]
	s.cacheLock.RUnlock()

	if !ok {
		var err error
		if cached, err = s.loadSettings(ctx, siteID); err != nil {
			return nil, err
		}
	}

	settingsCopy := make(map[string]string, len(cached))
	for key, value := range cached {
		settingsCopy[key] = value
	}
	return settingsCopy, nil
}

// GetSetting returns one setting value or "".
func (s *SiteService) GetSetting(ctx context.Context, siteID, key string) (string, error) {
	settings, err := s.GetSettings(ctx, siteID)
	if err != nil {
		return "", err
	}
	return settings[key], nil
}

// UpdateSettings upserts several settings and refreshes the site's cache.
func (s *SiteService) UpdateSettings(ctx context.Context, siteID string, settings map[string]string) error {
	for key, value := range settings {
		if err := s.settings.UpdateSetting(ctx, siteID, key, value); err != nil {
			return err
		}
	}
	_, err := s.loadSettings(ctx, siteID)
	return err
}

// Profile collects what the SEO layer needs to know about a site.
func (s *SiteService) Profile(ctx context.Context, siteID string) (models.SiteProfile, error) {
	site, err := s.sites.FindByID(ctx, siteID)
	if err != nil {
		return models.SiteProfile{}, err
	}
	if site == nil {
		return models.SiteProfile{}, models.NotFoundError{Resource: "site", Key: siteID}
	}
	settings, err := s.GetSettings(ctx, siteID)
	if err != nil {
		return models.SiteProfile{}, err
	}

	name := settings[constants.SettingSiteName]
	if name == "" {
		name = site.Name
	}
	baseURL := settings[constants.SettingBaseURL]
	if baseURL == "" && site.Host != "" {
		baseURL = "https://" + site.Host
	}
	return models.SiteProfile{
		ID:               site.ID,
		Name:             name,
		BaseURL:          strings.TrimRight(baseURL, "/"),
		DefaultOGImage:   settings[constants.SettingDefaultOGImage],
		OrganizationLogo: settings[constants.SettingOrganizationLogo],
	}, nil
}
