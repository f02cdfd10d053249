package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"

	"quire/internal/constants"
	"quire/internal/models"
)

var testProfile = models.SiteProfile{
	ID:               "site-1",
	Name:             "Example",
	BaseURL:          "https://ex.test",
	DefaultOGImage:   "/img/site.png",
	OrganizationLogo: "/img/logo.png",
}

func testCollection(slug, pattern string, settings map[string]any) *models.Collection {
	c := &models.Collection{ID: "coll-" + slug, SiteID: testProfile.ID, Name: strings.ToUpper(slug[:1]) + slug[1:], Slug: slug, URLPattern: pattern}
	if settings != nil {
		c.Settings = datatypes.JSONMap(settings)
	}
	c.ResolveFields()
	return c
}

func testItem(coll *models.Collection, slug, title string, data map[string]any) *models.ContentItem {
	published := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return &models.ContentItem{
		ID:           "item-" + slug,
		SiteID:       coll.SiteID,
		CollectionID: coll.ID,
		Slug:         slug,
		Title:        title,
		Data:         datatypes.JSONMap(data),
		Status:       constants.StatusPublished,
		UpdatedAt:    published.Add(time.Hour),
		PublishedAt:  &published,
	}
}

func newPureSEO(t *testing.T) *SEOService {
	return NewSEOService(nil, nil, nil, zaptest.NewLogger(t))
}

func graphOfType(graphs []Schema, typ string) Schema {
	for _, g := range graphs {
		if g["@type"] == typ {
			return g
		}
	}
	return nil
}

func TestGenerateSEODataFallbacks(t *testing.T) {
	seo := newPureSEO(t)
	blog := testCollection("blog", "/blog/{slug}", map[string]any{constants.CollectionSettingDefaultOGImage: "/img/blog.png"})
	pages := testCollection("pages", "/{slug}", nil)

	plain := testItem(blog, "hello", "Hello", map[string]any{"content": "First paragraph of the post."})
	got := seo.GenerateSEOData(plain, blog, testProfile)
	if got.Title != "Hello" || got.OGTitle != "Hello" {
		t.Errorf("title fallback: %q / %q", got.Title, got.OGTitle)
	}
	if got.Description != "First paragraph of the post." || got.OGDescription != got.Description {
		t.Errorf("description fallback: %q / %q", got.Description, got.OGDescription)
	}
	if got.OGImage != "https://ex.test/img/blog.png" {
		t.Errorf("collection image fallback: %q", got.OGImage)
	}
	if got.Canonical != "https://ex.test/blog/hello" || got.OGType != "article" {
		t.Errorf("canonical=%q type=%q", got.Canonical, got.OGType)
	}
	if got.PublishedTime != "2024-05-01T08:00:00Z" {
		t.Errorf("published time = %q", got.PublishedTime)
	}

	explicit := testItem(pages, "about", "About", map[string]any{
		"seoTitle":       "About us",
		"seoDescription": "Who we are",
		"excerpt":        "unused",
		"ogTitle":        "About the team",
		"ogImage":        "https://cdn.test/about.png",
	})
	got = seo.GenerateSEOData(explicit, pages, testProfile)
	if got.Title != "About us" || got.Description != "Who we are" || got.OGTitle != "About the team" {
		t.Errorf("explicit values lost: %+v", got)
	}
	if got.OGImage != "https://cdn.test/about.png" || got.OGType != "website" {
		t.Errorf("image=%q type=%q", got.OGImage, got.OGType)
	}

	bare := testItem(pages, "bare", "Bare", map[string]any{"excerpt": "Short summary"})
	got = seo.GenerateSEOData(bare, pages, testProfile)
	if got.Description != "Short summary" {
		t.Errorf("excerpt fallback: %q", got.Description)
	}
	if got.OGImage != "https://ex.test/img/site.png" {
		t.Errorf("site image fallback: %q", got.OGImage)
	}
}

func TestGenerateJSONLDBaseTypes(t *testing.T) {
	seo := newPureSEO(t)
	cases := []struct {
		slug, pattern, typ string
		crumbs             int
	}{
		{"blog", "/blog/{slug}", "BlogPosting", 3},
		{"docs", "/docs/{slug}", "TechArticle", 3},
		{"landing-pages", "/{slug}", "WebPage", 2},
	}
	for _, tc := range cases {
		coll := testCollection(tc.slug, tc.pattern, nil)
		item := testItem(coll, "x", "X", map[string]any{"content": "Body."})
		graphs := seo.GenerateJSONLD(item, coll, testProfile, ItemURL(testProfile, coll, item))

		base := graphOfType(graphs, tc.typ)
		if base == nil {
			t.Fatalf("%s: no %s graph in %v", tc.slug, tc.typ, graphs)
		}
		publisher, _ := base["publisher"].(Schema)
		if publisher == nil || publisher["name"] != "Example" || publisher["logo"] == nil {
			t.Errorf("%s: publisher = %v", tc.slug, base["publisher"])
		}
		crumbs := graphOfType(graphs, "BreadcrumbList")
		if list, _ := crumbs["itemListElement"].([]Schema); len(list) != tc.crumbs {
			t.Errorf("%s: %d breadcrumbs, want %d", tc.slug, len(list), tc.crumbs)
		}
	}
}

func TestGenerateJSONLDFAQAndHowTo(t *testing.T) {
	seo := newPureSEO(t)
	docs := testCollection("docs", "/docs/{slug}", nil)
	body := strings.Join([]string{
		"# Guide",
		"## Steps",
		"### Install",
		"Run the installer.",
		"### Configure",
		"Edit **config.yaml**.",
		"## FAQ",
		"### Is it free?",
		"Yes.",
		"### Does it scale?",
		"It does.",
		"## Other",
		"### Not a question",
		"Text.",
	}, "\n\n")
	item := testItem(docs, "guide", "Guide", map[string]any{"content": body})
	graphs := seo.GenerateJSONLD(item, docs, testProfile, "https://ex.test/docs/guide")

	faq := graphOfType(graphs, "FAQPage")
	if faq == nil {
		t.Fatal("no FAQPage")
	}
	questions, _ := faq["mainEntity"].([]Schema)
	if len(questions) != 2 || questions[0]["name"] != "Is it free?" {
		t.Errorf("questions = %v", questions)
	}

	howTo := graphOfType(graphs, "HowTo")
	if howTo == nil {
		t.Fatal("no HowTo")
	}
	steps, _ := howTo["step"].([]Schema)
	if len(steps) != 2 {
		t.Fatalf("steps = %v", steps)
	}
	if steps[0]["url"] != "https://ex.test/docs/guide#install" || steps[1]["text"] != "Edit config.yaml." {
		t.Errorf("steps = %v", steps)
	}
	if graphOfType(graphs, "Product") != nil {
		t.Error("docs page got a Product graph")
	}
}

func TestHowToFromStepHeadings(t *testing.T) {
	seo := newPureSEO(t)
	blog := testCollection("blog", "/blog/{slug}", nil)
	item := testItem(blog, "bake", "Bake bread", map[string]any{
		"content": "## Step 1: Mix\n\nFlour and water.\n\n## Step 2: Bake\n\nOne hour.\n\n## Notes\n\nNone.",
	})
	howTo := graphOfType(seo.GenerateJSONLD(item, blog, testProfile, "u"), "HowTo")
	if howTo == nil {
		t.Fatal("no HowTo")
	}
	if steps, _ := howTo["step"].([]Schema); len(steps) != 2 {
		t.Errorf("steps = %v", howTo["step"])
	}
}

func TestProductSchema(t *testing.T) {
	seo := newPureSEO(t)
	landing := testCollection("landing-pages", "/{slug}", nil)
	item := testItem(landing, "pro", "Pro plan", map[string]any{
		"pageType": "Product", "price": 49, "priceCurrency": "USD", "description": "The pro plan",
	})
	product := graphOfType(seo.GenerateJSONLD(item, landing, testProfile, "https://ex.test/pro"), "Product")
	if product == nil {
		t.Fatal("no Product graph")
	}
	offer, _ := product["offers"].(Schema)
	if offer["price"] != "49" || offer["priceCurrency"] != "USD" {
		t.Errorf("offer = %v", offer)
	}

	item.Data["pageType"] = "Landing"
	if graphOfType(seo.GenerateJSONLD(item, landing, testProfile, "u"), "Product") != nil {
		t.Error("non-product landing page got a Product graph")
	}
}

func TestGenerateSitemap(t *testing.T) {
	seo := newPureSEO(t)
	blog := testCollection("blog", "/blog/{slug}", nil)
	docs := testCollection("docs", "/docs/{slug}", nil)
	pages := testCollection("pages", "/{slug}", nil)
	items := []models.ContentItem{
		*testItem(blog, "hello", "Hello", nil),
		*testItem(pages, "about", "About", nil),
	}

	out, err := seo.GenerateSitemap(testProfile, []models.Collection{*blog, *docs, *pages}, items)
	if err != nil {
		t.Fatal(err)
	}
	xml := string(out)
	for _, want := range []string{
		"<loc>https://ex.test/</loc>",
		"<loc>https://ex.test/blog</loc>",
		"<loc>https://ex.test/blog/hello</loc>",
		"<loc>https://ex.test/about</loc>",
		"<lastmod>2024-05-01T09:00:00Z</lastmod>",
		"<priority>1.0</priority>",
		"sitemaps.org",
	} {
		if !strings.Contains(xml, want) {
			t.Errorf("sitemap lacks %s:\n%s", want, xml)
		}
	}
	if strings.Contains(xml, "/docs</loc>") {
		t.Error("empty collection listed in sitemap")
	}
}

func TestGenerateRobotsTxt(t *testing.T) {
	robots := newPureSEO(t).GenerateRobotsTxt(testProfile)
	for _, want := range []string{
		"User-agent: *\nAllow: /\nDisallow: /admin\nDisallow: /api/admin\n",
		"User-agent: GPTBot\n",
		"User-agent: ClaudeBot\n",
		"Sitemap: https://ex.test/sitemap.xml\n",
	} {
		if !strings.Contains(robots, want) {
			t.Errorf("robots.txt lacks %q:\n%s", want, robots)
		}
	}
	if got := strings.Count(robots, "User-agent:"); got != len(AICrawlers)+1 {
		t.Errorf("%d agent groups, want %d", got, len(AICrawlers)+1)
	}
}

func TestRenderHead(t *testing.T) {
	seo := newPureSEO(t)
	blog := testCollection("blog", "/blog/{slug}", nil)
	item := testItem(blog, "hello", `Tom & "Jerry"`, map[string]any{"content": "Body."})
	data := seo.GenerateSEOData(item, blog, testProfile)
	head := string(seo.RenderHead(data, seo.GenerateJSONLD(item, blog, testProfile, data.Canonical)))

	for _, want := range []string{
		"<title>Tom &amp; &#34;Jerry&#34;</title>",
		`<meta property="og:type" content="article">`,
		`<meta property="article:published_time" content="2024-05-01T08:00:00Z">`,
		`<meta name="twitter:card" content="summary_large_image">`,
		`<link rel="canonical" href="https://ex.test/blog/hello">`,
		`<script type="application/ld+json">`,
	} {
		if !strings.Contains(head, want) {
			t.Errorf("head lacks %s:\n%s", want, head)
		}
	}
}

func TestSiteSitemapAndItemSEO(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := env.site(t, "Acme", "acme.test")
	env.blog(t, site)
	if _, err := env.schemas.CreateCollection(ctx, site, CollectionInput{Name: "Docs", URLPattern: "/docs/{slug}"}); err != nil {
		t.Fatal(err)
	}
	env.create(t, site, "blog", map[string]any{"title": "Live post", "content": "Hi.", "status": "published"})
	env.create(t, site, "docs", map[string]any{"title": "Draft doc"})

	out, err := env.seo.SiteSitemap(ctx, site)
	if err != nil {
		t.Fatal(err)
	}
	xml := string(out)
	if !strings.Contains(xml, "https://acme.test/blog/live-post") || !strings.Contains(xml, "<loc>https://acme.test/blog</loc>") {
		t.Errorf("sitemap misses the live post:\n%s", xml)
	}
	if strings.Contains(xml, "draft-doc") || strings.Contains(xml, "/docs</loc>") {
		t.Errorf("sitemap lists draft content:\n%s", xml)
	}

	got, err := env.seo.ItemSEO(ctx, site, "blog", "live-post")
	if err != nil || got == nil {
		t.Fatalf("ItemSEO: %v, %v", got, err)
	}
	if got.SEO.Canonical != "https://acme.test/blog/live-post" {
		t.Errorf("canonical = %q", got.SEO.Canonical)
	}
	base := graphOfType(got.JSONLD, "BlogPosting")
	if publisher, _ := base["publisher"].(Schema); publisher["name"] != "Acme" {
		t.Errorf("publisher falls back to the site name: %v", base["publisher"])
	}

	if draft, _ := env.seo.ItemSEO(ctx, site, "docs", "draft-doc"); draft != nil {
		t.Error("ItemSEO served a draft")
	}

	robots, err := env.seo.SiteRobots(ctx, site)
	if err != nil || !strings.Contains(robots, "Sitemap: https://acme.test/sitemap.xml") {
		t.Errorf("robots = %q, %v", robots, err)
	}
}
