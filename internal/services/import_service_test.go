package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"testing/fstest"

	"quire/internal/fields"
	"quire/internal/models"
)

func importRows(n int, failing ...int) []map[string]any {
	bad := make(map[int]bool, len(failing))
	for _, i := range failing {
		bad[i] = true
	}
	rows := make([]map[string]any, n)
	for i := range rows {
		if bad[i] {
			rows[i] = map[string]any{"content": "row without a title"}
			continue
		}
		rows[i] = map[string]any{
			"title":   fmt.Sprintf("Post %03d", i),
			"content": fmt.Sprintf("Body of post %d.", i),
			"status":  "published",
		}
	}
	return rows
}

func TestCreateContentBatchPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := env.site(t, "S1", "s1.test")
	env.blog(t, site)

	res, err := env.importer.CreateContentBatch(ctx, site, "blog", importRows(120, 9, 59, 109))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success != 117 || res.Failed != 3 || res.Skipped != 0 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Errors) != 3 {
		t.Fatalf("errors = %+v", res.Errors)
	}
	for i, want := range []int{10, 60, 110} {
		if res.Errors[i].Row != want {
			t.Errorf("error %d row = %d, want %d", i, res.Errors[i].Row, want)
		}
		if !strings.Contains(res.Errors[i].Message, "title") {
			t.Errorf("error %d message = %q", i, res.Errors[i].Message)
		}
	}

	list, err := env.content.ListContent(ctx, site, "blog", ListOptions{Limit: 100, PublishedOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if list.Total != 117 {
		t.Errorf("queryable items = %d, want 117", list.Total)
	}
	if got, _ := env.content.GetContentBySlug(ctx, site, "blog", "post-119"); got == nil || got.PublishedAt == nil {
		t.Errorf("last row not stored as published: %+v", got)
	}
}

func TestCreateContentBatchIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := env.site(t, "One", "one.test")
	env.blog(t, site)
	rows := importRows(120, 9, 59, 109)

	if _, err := env.importer.CreateContentBatch(ctx, site, "blog", rows); err != nil {
		t.Fatal(err)
	}
	again, err := env.importer.CreateContentBatch(ctx, site, "blog", rows)
	if err != nil {
		t.Fatal(err)
	}
	if again.Success != 0 || again.Skipped != 117 || again.Failed != 3 {
		t.Fatalf("re-run = %+v", again)
	}
	list, _ := env.content.ListContent(ctx, site, "blog", ListOptions{})
	if list.Total != 117 {
		t.Errorf("re-run created duplicates: total = %d", list.Total)
	}
}

func TestCreateContentBatchDuplicateSlugsInOneRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := env.site(t, "One", "one.test")
	env.blog(t, site)

	res, err := env.importer.CreateContentBatch(ctx, site, "blog", []map[string]any{
		{"title": "Same"}, {"title": "Same"}, {"title": "Different"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success != 2 || res.Skipped != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestCreateContentBatchCapsErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := env.site(t, "One", "one.test")
	env.blog(t, site)
	importer := NewImportService(env.schemas, env.items, ImportOptions{BatchSize: 10, MaxErrors: 2}, env.importer.log)

	res, err := importer.CreateContentBatch(ctx, site, "blog", importRows(5, 0, 1, 2, 3))
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 4 || len(res.Errors) != 2 || res.Success != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestCreateContentBatchMissingCollection(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, "One", "one.test")
	_, err := env.importer.CreateContentBatch(context.Background(), site, "blog", importRows(1))
	if !errors.Is(err, models.ErrCollectionNotFound) {
		t.Errorf("err = %v", err)
	}
}

func referenceSetup(t *testing.T) (*testEnv, string, string) {
	t.Helper()
	env := newTestEnv(t)
	ctx := context.Background()
	site := env.site(t, "One", "one.test")
	if _, err := env.schemas.CreateCollection(ctx, site, CollectionInput{Name: "Authors", URLPattern: "/authors/{slug}"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.schemas.CreateCollection(ctx, site, CollectionInput{
		Name:       "Posts",
		URLPattern: "/posts/{slug}",
		Fields: []fields.Field{
			{Name: "author", Type: fields.TypeReference, ReferenceCollection: "authors"},
			{Name: "reviewers", Type: fields.TypeMultiReference, ReferenceCollection: "authors"},
		},
	}); err != nil {
		t.Fatal(err)
	}
	ada := env.create(t, site, "authors", map[string]any{"title": "Ada"})
	return env, site, ada.ID
}

func TestImportResolvesReferences(t *testing.T) {
	env, site, adaID := referenceSetup(t)
	ctx := context.Background()

	res, err := env.importer.CreateContentBatch(ctx, site, "posts", []map[string]any{
		{"title": "By slug", "author": "ada", "reviewers": "ada, ghost"},
		{"title": "By id", "author": adaID},
		{"title": "Dangling", "author": "ghost"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success != 3 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}

	bySlug, _ := env.content.GetContentBySlug(ctx, site, "posts", "by-slug")
	if bySlug.Data["author"] != adaID {
		t.Errorf("author = %v, want %s", bySlug.Data["author"], adaID)
	}
	reviewers, _ := bySlug.Data["reviewers"].([]any)
	if len(reviewers) != 1 || reviewers[0] != adaID {
		t.Errorf("reviewers = %v", bySlug.Data["reviewers"])
	}
	byID, _ := env.content.GetContentBySlug(ctx, site, "posts", "by-id")
	if byID.Data["author"] != adaID {
		t.Errorf("id passthrough: author = %v", byID.Data["author"])
	}
	dangling, _ := env.content.GetContentBySlug(ctx, site, "posts", "dangling")
	if _, ok := dangling.Data["author"]; ok {
		t.Errorf("dangling reference kept: %v", dangling.Data["author"])
	}
}

func TestImportStrictReferences(t *testing.T) {
	env, site, _ := referenceSetup(t)
	strict := NewImportService(env.schemas, env.items, ImportOptions{StrictReferences: true}, env.importer.log)

	res, err := strict.CreateContentBatch(context.Background(), site, "posts", []map[string]any{
		{"title": "Fine", "author": "ada"},
		{"title": "Broken", "author": "ghost"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success != 1 || res.Failed != 1 || res.Errors[0].Row != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestReferenceToUnknownCollectionFailsRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := env.site(t, "One", "one.test")
	if _, err := env.schemas.CreateCollection(ctx, site, CollectionInput{
		Name:       "Posts",
		URLPattern: "/posts/{slug}",
		Fields:     []fields.Field{{Name: "author", Type: fields.TypeReference, ReferenceCollection: "people"}},
	}); err != nil {
		t.Fatal(err)
	}
	res, err := env.importer.CreateContentBatch(ctx, site, "posts", []map[string]any{
		{"title": "A", "author": "x"},
		{"title": "B"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success != 1 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestReadCSV(t *testing.T) {
	in := "\ufefftitle,tags,featured\n" +
		"First,\"go,web\",true\n" +
		"Second,,\n"
	rows, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0]["title"] != "First" || rows[0]["tags"] != "go,web" || rows[0]["featured"] != "true" {
		t.Errorf("row 1 = %v", rows[0])
	}
	if _, ok := rows[1]["tags"]; ok {
		t.Errorf("empty cell kept: %v", rows[1])
	}

	empty, err := ReadCSV(strings.NewReader(""))
	if err != nil || empty != nil {
		t.Errorf("empty input: %v, %v", empty, err)
	}
}

func TestReadMarkdownDir(t *testing.T) {
	fsys := fstest.MapFS{
		"b-post.md":        {Data: []byte("---\ntitle: Second\nslug: custom\n---\n\nBody two.\n")},
		"nested/a-post.md": {Data: []byte("---\ntitle: First\ntags: [go]\n---\nBody one.")},
		"notes.txt":        {Data: []byte("ignored")},
		"plain.markdown":   {Data: []byte("Just text.")},
	}
	rows, err := ReadMarkdownDir(fsys, "content")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0]["slug"] != "custom" || rows[0]["content"] != "Body two." {
		t.Errorf("b-post = %v", rows[0])
	}
	if rows[1]["title"] != "First" || rows[1]["slug"] != "a-post" || rows[1]["content"] != "Body one." {
		t.Errorf("a-post = %v", rows[1])
	}
	if rows[2]["slug"] != "plain" || rows[2]["content"] != "Just text." {
		t.Errorf("plain = %v", rows[2])
	}
}
