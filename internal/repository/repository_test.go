package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm: %v", err)
	}
	return db, mock
}

func TestContentFindBySlugIsSiteScoped(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db)

	query := regexp.QuoteMeta(`SELECT * FROM "content_items" WHERE (site_id = $1 AND collection_id = $2) AND slug = $3`)
	mock.ExpectQuery(query).
		WillReturnRows(sqlmock.NewRows([]string{"id", "site_id", "collection_id", "slug", "title", "status"}).
			AddRow("i1", "s1", "c1", "hello", "Hello", "draft"))
	mock.ExpectQuery(query).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	item, err := repo.FindBySlug(context.Background(), "s1", "c1", "hello")
	if err != nil || item == nil || item.ID != "i1" {
		t.Fatalf("FindBySlug = %+v, %v", item, err)
	}
	missing, err := repo.FindBySlug(context.Background(), "s2", "c1", "hello")
	if err != nil || missing != nil {
		t.Fatalf("miss = %+v, %v", missing, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCollectionFindBySlugIsSiteScoped(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCollectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "collections" WHERE site_id = $1 AND slug = $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "site_id", "slug", "name", "url_pattern"}).
			AddRow("c1", "s1", "blog", "Blog", "/blog/{slug}"))

	c, err := repo.FindBySlug(context.Background(), "s1", "blog")
	if err != nil || c == nil || c.SiteID != "s1" {
		t.Fatalf("FindBySlug = %+v, %v", c, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestContentDeleteIsSiteScoped(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "content_items" WHERE site_id = $1 AND collection_id = $2 AND id = $3`)).
		WithArgs("s1", "c1", "i1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.Delete(context.Background(), "s1", "c1", "i1"); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateFieldsReportsMatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db)
	update := regexp.QuoteMeta(`UPDATE "content_items" SET "status"=$1,"updated_at"=$2 WHERE (site_id = $3 AND collection_id = $4) AND id = $5`)

	mock.ExpectBegin()
	mock.ExpectExec(update).
		WithArgs("published", sqlmock.AnyArg(), "s1", "c1", "i1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(update).
		WithArgs("published", sqlmock.AnyArg(), "s2", "c1", "i1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := repo.UpdateFields(context.Background(), "s1", "c1", "i1", map[string]any{"status": "published"})
	if err != nil || !ok {
		t.Fatalf("own item: %v, %v", ok, err)
	}
	ok, err = repo.UpdateFields(context.Background(), "s2", "c1", "i1", map[string]any{"status": "published"})
	if err != nil || ok {
		t.Fatalf("other site: %v, %v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateDraftRequiresPublishedStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "content_items" SET "draft_data"=$1,"updated_at"=$2 WHERE (site_id = $3 AND collection_id = $4) AND (id = $5 AND status = $6)`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "s1", "c1", "i1", "published").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := repo.UpdateDraft(context.Background(), "s1", "c1", "i1", datatypes.JSONMap{"content": "next"})
	if err != nil || ok {
		t.Fatalf("unpublished item: %v, %v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEscapeLike(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`c:\dir`, `c:\\dir`},
	}
	for _, tc := range cases {
		if got := escapeLike(tc.in); got != tc.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if likeEscapeClause("mysql") != "" || likeEscapeClause("sqlite") != ` ESCAPE '\'` {
		t.Error("escape clause per dialect")
	}
}

func TestParseSort(t *testing.T) {
	cases := []struct {
		in     string
		column string
		desc   bool
	}{
		{"", "updated_at", true},
		{"title", "title", false},
		{"-title", "title", true},
		{"publishedAt desc", "published_at", true},
		{"created_at:asc", "created_at", false},
		{"data; DROP TABLE", "updated_at", true},
	}
	for _, tc := range cases {
		column, desc := ParseSort(tc.in)
		if column != tc.column || desc != tc.desc {
			t.Errorf("ParseSort(%q) = %s %v, want %s %v", tc.in, column, desc, tc.column, tc.desc)
		}
	}
}

func TestJSONExtractPerDialect(t *testing.T) {
	cases := []struct {
		dialect, expr, arg string
	}{
		{"postgres", "data->>CAST(? AS TEXT)", "featured"},
		{"mysql", "JSON_UNQUOTE(JSON_EXTRACT(data, ?))", "$.featured"},
		{"sqlite", "json_extract(data, ?)", "$.featured"},
	}
	for _, tc := range cases {
		expr, arg := jsonExtract(tc.dialect, "featured")
		if expr != tc.expr || arg != tc.arg {
			t.Errorf("%s: %s %s", tc.dialect, expr, arg)
		}
	}
	if v := jsonFilterValue("postgres", true); v != "true" {
		t.Errorf("postgres bool = %v", v)
	}
	if v := jsonFilterValue("sqlite", true); v != 1 {
		t.Errorf("sqlite bool = %v", v)
	}
	if v := jsonFilterValue("sqlite", "x"); v != "x" {
		t.Errorf("sqlite string = %v", v)
	}
}
