package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"quire/internal/config"
	"quire/internal/handlers"
	"quire/internal/logger"
	"quire/internal/markdown"
	"quire/internal/repository"
	"quire/internal/services"
	"quire/internal/utils"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "quire",
	Short: "Quire - a multi-tenant headless content engine",
	Long: `Quire stores schema-typed content for many sites, runs a draft/publish
workflow over it and serves it through a JSON API together with SEO metadata,
sitemaps and robots.txt.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is conf/config.yaml)")
}

// app is the wired engine shared by every sub-command.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *gorm.DB
	items    *repository.ContentRepository
	sites    *services.SiteService
	schemas  *services.SchemaService
	content  *services.ContentService
	importer *services.ImportService
	seo      *services.SEOService
}

func bootstrap() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Dir, cfg.Log.Level, cfg.Log.Tee)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := utils.InitDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	var renderOpts []markdown.Option
	renderOpts = append(renderOpts, markdown.WithLogger(log))
	if cfg.Render.Minify {
		renderOpts = append(renderOpts, markdown.WithMinify())
	}

	siteRepo := repository.NewSiteRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	collectionRepo := repository.NewCollectionRepository(db)
	contentRepo := repository.NewContentRepository(db)

	sites := services.NewSiteService(siteRepo, settingRepo, log)
	schemas := services.NewSchemaService(collectionRepo, cfg.Schema.RequireDistinctPatterns, log)
	content := services.NewContentService(schemas, contentRepo, markdown.NewRenderer(renderOpts...), log)
	importer := services.NewImportService(schemas, contentRepo, services.ImportOptions{
		BatchSize:        cfg.Import.BatchSize,
		Workers:          cfg.Import.Workers,
		StrictReferences: cfg.Import.StrictReferences,
		MaxErrors:        cfg.Import.MaxErrors,
	}, log)
	seo := services.NewSEOService(sites, schemas, contentRepo, log)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		items:    contentRepo,
		sites:    sites,
		schemas:  schemas,
		content:  content,
		importer: importer,
		seo:      seo,
	}, nil
}

func (a *app) services() handlers.Services {
	return handlers.Services{
		Sites:    a.sites,
		Schemas:  a.schemas,
		Content:  a.content,
		Importer: a.importer,
		SEO:      a.seo,
	}
}

func (a *app) close() {
	_ = a.log.Sync()
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
