package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"quire/internal/constants"
	"quire/internal/fields"
	"quire/internal/markdown"
	"quire/internal/models"
	"quire/internal/repository"
	"quire/internal/utils"
)

type testEnv struct {
	db       *gorm.DB
	items    *repository.ContentRepository
	sites    *SiteService
	schemas  *SchemaService
	content  *ContentService
	importer *ImportService
	seo      *SEOService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "quire.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := utils.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := zaptest.NewLogger(t)
	items := repository.NewContentRepository(db)
	sites := NewSiteService(repository.NewSiteRepository(db), repository.NewSettingRepository(db), log)
	schemas := NewSchemaService(repository.NewCollectionRepository(db), true, log)
	return &testEnv{
		db:       db,
		items:    items,
		sites:    sites,
		schemas:  schemas,
		content:  NewContentService(schemas, items, markdown.NewRenderer(markdown.WithLogger(log)), log),
		importer: NewImportService(schemas, items, ImportOptions{BatchSize: 50, Workers: 4}, log),
		seo:      NewSEOService(sites, schemas, items, log),
	}
}

func (e *testEnv) site(t *testing.T, name, host string) string {
	t.Helper()
	site, err := e.sites.CreateSite(context.Background(), name, host)
	if err != nil {
		t.Fatalf("create site %s: %v", name, err)
	}
	err = e.sites.UpdateSettings(context.Background(), site.ID, map[string]string{
		constants.SettingBaseURL: "https://" + host,
	})
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	return site.ID
}

func blogInput() CollectionInput {
	return CollectionInput{
		Name:       "Blog",
		URLPattern: "/blog/{slug}",
		Fields: []fields.Field{
			{Name: "content", Type: fields.TypeMarkdown},
			{Name: "tags", Type: fields.TypeMultiSelect, Validation: &fields.Validation{Options: []string{"go", "web", "db"}}},
			{Name: "featured", Type: fields.TypeBoolean},
		},
	}
}

func (e *testEnv) blog(t *testing.T, siteID string) *models.Collection {
	t.Helper()
	c, err := e.schemas.CreateCollection(context.Background(), siteID, blogInput())
	if err != nil {
		t.Fatalf("create blog: %v", err)
	}
	return c
}

func (e *testEnv) create(t *testing.T, siteID, coll string, data map[string]any) *models.ContentItem {
	t.Helper()
	item, err := e.content.CreateContent(context.Background(), siteID, coll, data, "")
	if err != nil {
		t.Fatalf("create content: %v", err)
	}
	return item
}
