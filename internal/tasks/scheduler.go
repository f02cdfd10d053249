package tasks

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"quire/internal/metrics"
	"quire/internal/repository"
	"quire/internal/services"
)

// Scheduler publishes draft items whose datePublished has passed.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	sites   *services.SiteService
	schemas *services.SchemaService
	content *services.ContentService
	items   *repository.ContentRepository
	log     *zap.Logger
	now     func() time.Time
	mu      sync.Mutex
}

func NewScheduler(spec string, sites *services.SiteService, schemas *services.SchemaService, content *services.ContentService, items *repository.ContentRepository, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		spec:    spec,
		sites:   sites,
		schemas: schemas,
		content: content,
		items:   items,
		log:     log,
		now:     time.Now,
	}
}

// Start registers the publish job and starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.cron.AddFunc(s.spec, s.recoveryWrapper(func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.log.Error("scheduled publish failed", zap.Error(err))
		}
	}))
	if err != nil {
		s.log.Error("add scheduled publish task failed", zap.String("spec", s.spec), zap.Error(err))
		return err
	}
	s.cron.Start()
	s.log.Info("scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	<-s.cron.Stop().Done()
}

// RunOnce publishes every due draft of every site and returns how many were
// published.  A failing item is logged and skipped.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	sites, err := s.sites.ListSites(ctx)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, site := range sites {
		due, err := s.items.ScheduledDrafts(ctx, site.ID, s.now())
		if err != nil {
			return published, err
		}
		if len(due) == 0 {
			continue
		}
		collections, err := s.schemas.GetAllCollections(ctx, site.ID)
		if err != nil {
			return published, err
		}
		slugByID := make(map[string]string, len(collections))
		for _, c := range collections {
			slugByID[c.ID] = c.Slug
		}
		for _, item := range due {
			collSlug, ok := slugByID[item.CollectionID]
			if !ok {
				continue
			}
			if _, err := s.content.PublishDraftByID(ctx, site.ID, collSlug, item.ID, nil); err != nil {
				s.log.Warn("scheduled publish of item failed",
					zap.String("site", site.ID),
					zap.String("collection", collSlug),
					zap.String("item", item.ID),
					zap.Error(err))
				continue
			}
			metrics.ScheduledPublishTotal.Inc()
			published++
		}
	}
	if published > 0 {
		s.log.Info("scheduled items published", zap.Int("count", published))
	}
	return published, nil
}

func (s *Scheduler) recoveryWrapper(job func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("scheduled task panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			}
		}()
		job()
	}
}
