package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"quire/internal/fields"
	"quire/internal/markdown"
	"quire/internal/metrics"
	"quire/internal/models"
	"quire/internal/repository"
)

// ImportOptions tunes CreateContentBatch.
type ImportOptions struct {
	BatchSize        int
	Workers          int
	StrictReferences bool
	MaxErrors        int
}

// RowError is one failed input row; Row is 1-based.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// BatchResult summarises a best-effort import.  Skipped rows already existed
// (same slug in the collection) and were left untouched.
type BatchResult struct {
	Success int        `json:"success"`
	Skipped int        `json:"skipped"`
	Failed  int        `json:"failed"`
	Errors  []RowError `json:"errors"`
}

func (r *BatchResult) fail(row int, err error, maxErrors int) {
	r.Failed++
	if len(r.Errors) < maxErrors {
		r.Errors = append(r.Errors, RowError{Row: row, Message: err.Error()})
	}
}

// ImportService bulk-loads rows into a collection.
type ImportService struct {
	schemas *SchemaService
	repo    *repository.ContentRepository
	opts    ImportOptions
	log     *zap.Logger
	now     func() time.Time
}

func NewImportService(schemas *SchemaService, repo *repository.ContentRepository, opts ImportOptions, log *zap.Logger) *ImportService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = 100
	}
	return &ImportService{schemas: schemas, repo: repo, opts: opts, log: log, now: time.Now}
}

// CreateContentBatch inserts rows in chunks.  A row that fails validation or
// insertion is recorded and the import moves on; rows whose slug already
// exists are skipped, so re-running the same import is safe.
func (s *ImportService) CreateContentBatch(ctx context.Context, siteID, collSlug string, rows []map[string]any) (*BatchResult, error) {
	coll, err := s.schemas.RequireCollection(ctx, siteID, collSlug)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Errors: []RowError{}}
	refs := NewReferenceResolver(s.schemas, s.repo, siteID, s.opts.StrictReferences, s.log)
	start := time.Now()

	for offset := 0; offset < len(rows); offset += s.opts.BatchSize {
		end := min(offset+s.opts.BatchSize, len(rows))
		if err := s.importChunk(ctx, coll, refs, rows[offset:end], offset, result); err != nil {
			return result, err
		}
	}

	metrics.ImportRowsTotal.WithLabelValues("success").Add(float64(result.Success))
	metrics.ImportRowsTotal.WithLabelValues("skipped").Add(float64(result.Skipped))
	metrics.ImportRowsTotal.WithLabelValues("failed").Add(float64(result.Failed))
	s.log.Info("import finished",
		zap.String("site", siteID),
		zap.String("collection", collSlug),
		zap.Int("rows", len(rows)),
		zap.Int("success", result.Success),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

func (s *ImportService) importChunk(ctx context.Context, coll *models.Collection, refs *ReferenceResolver, chunk []map[string]any, offset int, result *BatchResult) error {
	prepared := make([]*models.ContentItem, len(chunk))
	failures := make([]error, len(chunk))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, row := range chunk {
		g.Go(func() error {
			prepared[i], failures[i] = s.prepareRow(gctx, coll, refs, row)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	valid := make([]models.ContentItem, 0, len(chunk))
	rowOf := make([]int, 0, len(chunk))
	for i := range chunk {
		if failures[i] != nil {
			result.fail(offset+i+1, failures[i], s.opts.MaxErrors)
			continue
		}
		valid = append(valid, *prepared[i])
		rowOf = append(rowOf, offset+i+1)
	}
	if len(valid) == 0 {
		return nil
	}

	inserted, err := s.repo.InsertIgnore(ctx, valid)
	if err == nil {
		result.Success += int(inserted)
		result.Skipped += len(valid) - int(inserted)
		return nil
	}

	s.log.Warn("chunk insert failed, retrying rows one by one",
		zap.String("site", coll.SiteID),
		zap.String("collection", coll.Slug),
		zap.Int("first_row", rowOf[0]),
		zap.Error(err))
	for i := range valid {
		n, err := s.repo.InsertIgnore(ctx, valid[i:i+1])
		switch {
		case err != nil:
			result.fail(rowOf[i], err, s.opts.MaxErrors)
		case n == 0:
			result.Skipped++
		default:
			result.Success++
		}
	}
	return nil
}

func (s *ImportService) prepareRow(ctx context.Context, coll *models.Collection, refs *ReferenceResolver, row map[string]any) (*models.ContentItem, error) {
	if row == nil {
		return nil, models.ValidationError{Field: "data", Message: "is required"}
	}
	in := make(map[string]any, len(row))
	for k, v := range row {
		in[k] = v
	}
	for _, f := range coll.Fields {
		raw, ok := in[f.Name]
		if !ok || !f.Type.IsReference() {
			continue
		}
		v, err := refs.Resolve(ctx, f, raw)
		if err != nil {
			return nil, err
		}
		in[f.Name] = v
	}
	item, _, err := newItem(coll, in, s.now())
	return item, err
}

// ReferenceResolver maps reference slugs to item ids within one site.  The
// slug index of each target collection is loaded once, on first use, and
// lives only as long as the resolver.
type ReferenceResolver struct {
	schemas *SchemaService
	repo    *repository.ContentRepository
	siteID  string
	strict  bool
	log     *zap.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	indexes map[string]*slugIndex
}

type slugIndex struct {
	bySlug map[string]string
	ids    map[string]bool
}

func NewReferenceResolver(schemas *SchemaService, repo *repository.ContentRepository, siteID string, strict bool, log *zap.Logger) *ReferenceResolver {
	return &ReferenceResolver{
		schemas: schemas,
		repo:    repo,
		siteID:  siteID,
		strict:  strict,
		log:     log,
		indexes: make(map[string]*slugIndex),
	}
}

func (r *ReferenceResolver) index(ctx context.Context, target string) (*slugIndex, error) {
	r.mu.RLock()
	idx, ok := r.indexes[target]
	r.mu.RUnlock()
	if ok {
		return idx, nil
	}

	v, err, _ := r.group.Do(target, func() (any, error) {
		coll, err := r.schemas.RequireCollection(ctx, r.siteID, target)
		if err != nil {
			return nil, err
		}
		bySlug, err := r.repo.SlugIDs(ctx, r.siteID, coll.ID)
		if err != nil {
			return nil, err
		}
		idx := &slugIndex{bySlug: bySlug, ids: make(map[string]bool, len(bySlug))}
		for _, id := range bySlug {
			idx.ids[id] = true
		}
		r.mu.Lock()
		r.indexes[target] = idx
		r.mu.Unlock()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*slugIndex), nil
}

// Resolve turns a raw reference cell into an id (reference) or ids
// (multi-reference).  Values that already are ids of the target collection
// pass through.  Misses become nil or are dropped unless the resolver is
// strict.
func (r *ReferenceResolver) Resolve(ctx context.Context, f fields.Field, raw any) (any, error) {
	var keys []string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if f.Type == fields.TypeReference {
			keys = []string{strings.TrimSpace(v)}
		} else {
			keys = fields.SplitList(v)
		}
	case []string:
		keys = v
	case []any:
		for _, item := range v {
			keys = append(keys, strings.TrimSpace(fmt.Sprint(item)))
		}
	default:
		return nil, models.ValidationError{Field: f.Name, Message: fmt.Sprintf("unsupported reference value %T", raw)}
	}

	idx, err := r.index(ctx, f.ReferenceCollection)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if id, ok := idx.bySlug[key]; ok {
			ids = append(ids, id)
			continue
		}
		if idx.ids[key] {
			ids = append(ids, key)
			continue
		}
		if r.strict {
			return nil, models.ValidationError{
				Field:   f.Name,
				Message: fmt.Sprintf("references unknown %s item %q", f.ReferenceCollection, key),
			}
		}
		r.log.Warn("dangling reference dropped",
			zap.String("site", r.siteID),
			zap.String("collection", f.ReferenceCollection),
			zap.String("field", f.Name),
			zap.String("ref", key))
	}

	if f.Type == fields.TypeReference {
		if len(ids) == 0 {
			return nil, nil
		}
		return ids[0], nil
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

// ReadCSV turns a CSV file with a header row into import rows.  Empty cells
// are left out.
func ReadCSV(r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]any
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(header))
		for i, cell := range record {
			if i >= len(header) || header[i] == "" || cell == "" {
				continue
			}
			row[header[i]] = cell
		}
		rows = append(rows, row)
	}
}

// ReadMarkdownDir turns every .md/.markdown file of fsys into a row: front
// matter becomes fields, the body goes to bodyField.  Files without a slug
// take their base name.
func ReadMarkdownDir(fsys fs.FS, bodyField string) ([]map[string]any, error) {
	var paths []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(path.Ext(p))
		if !d.IsDir() && (ext == ".md" || ext == ".markdown") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	rows := make([]map[string]any, 0, len(paths))
	for _, p := range paths {
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, err
		}
		doc, err := markdown.Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		row := make(map[string]any, len(doc.Data)+2)
		for k, v := range doc.Data {
			row[k] = v
		}
		row[bodyField] = strings.TrimSpace(doc.Content)
		if _, ok := row[fields.Slug]; !ok {
			row[fields.Slug] = strings.TrimSuffix(path.Base(p), path.Ext(p))
		}
		rows = append(rows, row)
	}
	return rows, nil
}
