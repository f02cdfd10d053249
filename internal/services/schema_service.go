package services

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"quire/internal/fields"
	"quire/internal/metrics"
	"quire/internal/models"
	"quire/internal/repository"
)

// CollectionInput is the writable part of a collection definition.
type CollectionInput struct {
	Name       string         `json:"name" validate:"required,max=255"`
	Slug       string         `json:"slug" validate:"omitempty,max=255"`
	URLPattern string         `json:"urlPattern" validate:"required,startswith=/,contains={slug}"`
	Fields     []fields.Field `json:"fields" validate:"dive"`
	Settings   map[string]any `json:"settings"`
}

// URLMatch is a collection whose URL pattern matched a concrete path, with
// the captured placeholder values.
type URLMatch struct {
	Collection *models.Collection `json:"collection"`
	Params     map[string]string  `json:"params"`
}

var (
	placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	fieldNameRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	nonAlnumRe    = regexp.MustCompile(`[^a-z0-9]+`)
)

// SchemaService is the collection registry of every site.
type SchemaService struct {
	repo     *repository.CollectionRepository
	validate *validator.Validate
	patterns *cache.Cache
	distinct bool
	log      *zap.Logger
}

// NewSchemaService builds the registry.  When requireDistinctPatterns is set
// two collections of a site may not share the same URL pattern shape.
func NewSchemaService(repo *repository.CollectionRepository, requireDistinctPatterns bool, log *zap.Logger) *SchemaService {
	return &SchemaService{
		repo:     repo,
		validate: validator.New(),
		patterns: cache.New(cache.NoExpiration, 30*time.Minute),
		distinct: requireDistinctPatterns,
		log:      log,
	}
}

// GetCollection returns a site's collection with its merged field list, or
// nil when the site has no collection with that slug.
func (s *SchemaService) GetCollection(ctx context.Context, siteID, slug string) (*models.Collection, error) {
	c, err := s.repo.FindBySlug(ctx, siteID, slug)
	if err != nil || c == nil {
		return nil, err
	}
	c.ResolveFields()
	return c, nil
}

// RequireCollection is GetCollection for write paths: a miss is an error.
func (s *SchemaService) RequireCollection(ctx context.Context, siteID, slug string) (*models.Collection, error) {
	c, err := s.GetCollection(ctx, siteID, slug)
	if err != nil {
		return nil, err
	}
	if c == nil {
		metrics.CollectionMissesTotal.Inc()
		s.log.Warn("collection lookup missed", zap.String("site", siteID), zap.String("collection", slug))
		return nil, models.CollectionNotFound(siteID, slug)
	}
	return c, nil
}

// GetAllCollections lists a site's collections, oldest first.
func (s *SchemaService) GetAllCollections(ctx context.Context, siteID string) ([]models.Collection, error) {
	list, err := s.repo.FindAll(ctx, siteID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].ResolveFields()
	}
	return list, nil
}

// GetCollectionByURL matches rawURL against every URL pattern of the site.
// Collections are tried oldest first and the first match wins.
func (s *SchemaService) GetCollectionByURL(ctx context.Context, siteID, rawURL string) (*URLMatch, error) {
	path := requestPath(rawURL)
	list, err := s.GetAllCollections(ctx, siteID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		re, err := s.compiled(list[i].URLPattern)
		if err != nil {
			s.log.Warn("invalid url pattern",
				zap.String("site", siteID),
				zap.String("collection", list[i].Slug),
				zap.Error(err))
			continue
		}
		m := re.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		params := make(map[string]string)
		for j, name := range re.SubexpNames() {
			if name != "" {
				if v, err := url.PathUnescape(m[j]); err == nil {
					params[name] = v
				} else {
					params[name] = m[j]
				}
			}
		}
		return &URLMatch{Collection: &list[i], Params: params}, nil
	}
	return nil, nil
}

// compiled returns the memoised regexp for a URL pattern.
func (s *SchemaService) compiled(pattern string) (*regexp.Regexp, error) {
	if re, ok := s.patterns.Get(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	s.patterns.SetDefault(pattern, re)
	return re, nil
}

// CompilePattern turns "/blog/{slug}" into an anchored regexp with one named
// capture per placeholder.  A trailing slash is optional.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	p := normalizePath(pattern)
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(p, -1) {
		b.WriteString(regexp.QuoteMeta(p[last:loc[0]]))
		b.WriteString("(?P<" + p[loc[2]:loc[3]] + ">[^/]+)")
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(p[last:]))
	if p != "/" {
		b.WriteString("/?")
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// requestPath strips scheme, host, query and fragment from a URL.
func requestPath(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		if u.EscapedPath() != "" {
			return normalizePath(u.EscapedPath())
		}
		return "/"
	}
	return normalizePath(raw)
}

// patternShape erases placeholder names so "/b/{slug}" and "/b/{id}" compare
// equal.
func patternShape(pattern string) string {
	return strings.ToLower(placeholderRe.ReplaceAllString(normalizePath(pattern), "{}"))
}

// CollectionSlug lowercases name, replaces runs of non-alphanumerics with a
// hyphen and trims edge hyphens.
func CollectionSlug(name string) string {
	return strings.Trim(nonAlnumRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func (s *SchemaService) checkInput(in *CollectionInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.URLPattern = strings.TrimSpace(in.URLPattern)
	if err := s.validate.Struct(in); err != nil {
		return validationFrom(err)
	}
	if _, err := CompilePattern(in.URLPattern); err != nil {
		return models.ValidationError{Field: "urlPattern", Message: err.Error()}
	}

	if in.Slug == "" {
		in.Slug = CollectionSlug(in.Name)
	} else {
		in.Slug = CollectionSlug(in.Slug)
	}
	if in.Slug == "" {
		return models.ValidationError{Field: "slug", Message: "cannot be derived from name"}
	}

	seen := make(map[string]bool, len(in.Fields))
	for i := range in.Fields {
		f := &in.Fields[i]
		f.System = false
		switch {
		case !fieldNameRe.MatchString(f.Name):
			return models.ValidationError{Field: "fields", Message: "field name " + strconv.Quote(f.Name) + " is invalid"}
		case fields.IsDefault(f.Name):
			return models.ValidationError{Field: f.Name, Message: "shadows a default field"}
		case seen[f.Name]:
			return models.ValidationError{Field: f.Name, Message: "is defined twice"}
		case !fields.Known(f.Type):
			return models.ValidationError{Field: f.Name, Message: "has unknown type " + strconv.Quote(string(f.Type))}
		case f.Type.IsReference() && f.ReferenceCollection == "":
			return models.ValidationError{Field: f.Name, Message: "needs a referenceCollection"}
		case (f.Type == fields.TypeSelect || f.Type == fields.TypeMultiSelect) &&
			(f.Validation == nil || len(f.Validation.Options) == 0):
			return models.ValidationError{Field: f.Name, Message: "needs options"}
		}
		if f.Validation != nil && f.Validation.Pattern != "" {
			if _, err := regexp.Compile(f.Validation.Pattern); err != nil {
				return models.ValidationError{Field: f.Name, Message: "has an invalid pattern"}
			}
		}
		if f.Label == "" {
			f.Label = f.Name
		}
		seen[f.Name] = true
	}
	return nil
}

func (s *SchemaService) checkUnique(ctx context.Context, siteID, excludeID string, in *CollectionInput) error {
	taken, err := s.repo.CheckSlugExists(ctx, siteID, in.Slug, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return models.ConflictError{Resource: "collection", Key: in.Slug}
	}
	if !s.distinct {
		return nil
	}
	existing, err := s.repo.FindAll(ctx, siteID)
	if err != nil {
		return err
	}
	shape := patternShape(in.URLPattern)
	for _, c := range existing {
		if c.ID != excludeID && patternShape(c.URLPattern) == shape {
			return models.ConflictError{Resource: "url pattern", Key: in.URLPattern}
		}
	}
	return nil
}

// CreateCollection validates and stores a new collection in a site.
func (s *SchemaService) CreateCollection(ctx context.Context, siteID string, in CollectionInput) (*models.Collection, error) {
	if err := s.checkInput(&in); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, siteID, "", &in); err != nil {
		return nil, err
	}

	c := &models.Collection{
		ID:         uuid.NewString(),
		SiteID:     siteID,
		Name:       in.Name,
		Slug:       in.Slug,
		URLPattern: in.URLPattern,
		Schema:     datatypes.NewJSONType(models.Schema{Fields: in.Fields}),
		Settings:   datatypes.JSONMap(in.Settings),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	c.ResolveFields()
	s.log.Info("collection created", zap.String("site", siteID), zap.String("collection", c.Slug))
	return c, nil
}

// UpdateCollection replaces a collection definition.  A missing collection
// is an error.
func (s *SchemaService) UpdateCollection(ctx context.Context, siteID, slug string, in CollectionInput) (*models.Collection, error) {
	c, err := s.RequireCollection(ctx, siteID, slug)
	if err != nil {
		return nil, err
	}
	if in.Slug == "" {
		in.Slug = c.Slug
	}
	if err := s.checkInput(&in); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, siteID, c.ID, &in); err != nil {
		return nil, err
	}

	c.Name = in.Name
	c.Slug = in.Slug
	c.URLPattern = in.URLPattern
	c.Schema = datatypes.NewJSONType(models.Schema{Fields: in.Fields})
	c.Settings = datatypes.JSONMap(in.Settings)
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	c.ResolveFields()
	s.log.Info("collection updated", zap.String("site", siteID), zap.String("collection", c.Slug))
	return c, nil
}

// DeleteCollection removes a collection and its items.
func (s *SchemaService) DeleteCollection(ctx context.Context, siteID, slug string) error {
	c, err := s.RequireCollection(ctx, siteID, slug)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, siteID, c.ID); err != nil {
		return err
	}
	s.log.Info("collection deleted", zap.String("site", siteID), zap.String("collection", slug))
	return nil
}
