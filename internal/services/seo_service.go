package services

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/tdewolff/minify/v2"
	minxml "github.com/tdewolff/minify/v2/xml"
	"go.uber.org/zap"

	"quire/internal/constants"
	"quire/internal/fields"
	"quire/internal/markdown"
	"quire/internal/metrics"
	"quire/internal/models"
	"quire/internal/repository"
)

const schemaContext = "https://schema.org"

// AICrawlers are the LLM and AI user agents named explicitly in robots.txt.
var AICrawlers = []string{
	"GPTBot",
	"ChatGPT-User",
	"OAI-SearchBot",
	"Google-Extended",
	"anthropic-ai",
	"ClaudeBot",
	"Claude-Web",
	"PerplexityBot",
	"CCBot",
	"Applebot-Extended",
	"Bytespider",
	"cohere-ai",
	"meta-externalagent",
}

// Disallowed paths for every crawler.
var robotsDisallow = []string{"/admin", "/api/admin"}

var stepHeading = regexp.MustCompile(`(?i)^Step \d+`)

// SEOData is the presentation metadata of one item.
type SEOData struct {
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Canonical     string              `json:"canonical"`
	OGTitle       string              `json:"ogTitle"`
	OGDescription string              `json:"ogDescription"`
	OGImage       string              `json:"ogImage,omitempty"`
	OGType        string              `json:"ogType"`
	PublishedTime string              `json:"publishedTime,omitempty"`
	ModifiedTime  string              `json:"modifiedTime"`
	ReadingTime   int                 `json:"readingTime"`
	TOC           []markdown.TOCEntry `json:"toc"`
}

// Schema is one JSON-LD graph node.
type Schema map[string]any

// ItemSEO bundles everything a page head needs.
type ItemSEO struct {
	SEO    SEOData       `json:"seo"`
	JSONLD []Schema      `json:"jsonLd"`
	Head   template.HTML `json:"head"`
}

// SEOService derives SEO metadata, JSON-LD, sitemaps and robots.txt.  The
// Generate* methods are pure; the Site*/Item* methods load what they need.
type SEOService struct {
	sites    *SiteService
	schemas  *SchemaService
	content  *repository.ContentRepository
	minifier *minify.M
	log      *zap.Logger
}

func NewSEOService(sites *SiteService, schemas *SchemaService, content *repository.ContentRepository, log *zap.Logger) *SEOService {
	m := minify.New()
	m.AddRegexp(regexp.MustCompile(`[/+]xml$`), &minxml.Minifier{})
	return &SEOService{sites: sites, schemas: schemas, content: content, minifier: m, log: log}
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// absolute prefixes site-relative URLs with the site base URL.
func absolute(base, u string) string {
	if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "//") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return base + u
}

// ItemURL is the canonical URL of an item.
func ItemURL(site models.SiteProfile, coll *models.Collection, item *models.ContentItem) string {
	return absolute(site.BaseURL, coll.URLFor(item.Slug))
}

// GenerateSEOData applies the fallback chains: seoTitle → title,
// seoDescription → excerpt → body excerpt, ogImage → collection default →
// site default.
func (s *SEOService) GenerateSEOData(item *models.ContentItem, coll *models.Collection, site models.SiteProfile) SEOData {
	body := item.String(BodyField(coll))

	title := firstString(item.String(fields.SEOTitle), item.Title)
	description := firstString(item.String(fields.SEODescription), item.String("excerpt"))
	if description == "" {
		description = markdown.ExtractExcerpt(body, markdown.DefaultExcerptLength)
	}

	ogType := "website"
	if coll.Slug == "blog" || coll.Slug == "docs" {
		ogType = "article"
	}

	toc := markdown.GenerateTableOfContents(body)
	if toc == nil {
		toc = []markdown.TOCEntry{}
	}

	return SEOData{
		Title:         title,
		Description:   description,
		Canonical:     ItemURL(site, coll, item),
		OGTitle:       firstString(item.String(fields.OGTitle), title),
		OGDescription: firstString(item.String(fields.OGDescription), description),
		OGImage:       absolute(site.BaseURL, firstString(
			item.String(fields.OGImage),
			coll.Setting(constants.CollectionSettingDefaultOGImage),
			site.DefaultOGImage,
		)),
		OGType:        ogType,
		PublishedTime: publishedTime(item),
		ModifiedTime:  item.UpdatedAt.UTC().Format(time.RFC3339),
		ReadingTime:   markdown.EstimateReadingTime(body),
		TOC:           toc,
	}
}

func publishedTime(item *models.ContentItem) string {
	if v := item.String(fields.DatePublished); v != "" {
		return v
	}
	if item.PublishedAt != nil {
		return item.PublishedAt.UTC().Format(time.RFC3339)
	}
	return ""
}

// GenerateJSONLD returns the base graph, a breadcrumb list and, when the
// content calls for them, FAQPage, Product and HowTo graphs.
func (s *SEOService) GenerateJSONLD(item *models.ContentItem, coll *models.Collection, site models.SiteProfile, url string) []Schema {
	seo := s.GenerateSEOData(item, coll, site)
	body := item.String(BodyField(coll))

	graphs := []Schema{s.baseSchema(item, coll, site, seo, url), breadcrumbs(item, coll, site, url)}
	if faq := faqSchema(body); faq != nil {
		graphs = append(graphs, faq)
	}
	if product := productSchema(item, coll, seo, url); product != nil {
		graphs = append(graphs, product)
	}
	if howTo := howToSchema(item, body, seo, url); howTo != nil {
		graphs = append(graphs, howTo)
	}
	return graphs
}

func (s *SEOService) baseSchema(item *models.ContentItem, coll *models.Collection, site models.SiteProfile, seo SEOData, url string) Schema {
	var node Schema
	switch coll.Slug {
	case "blog":
		node = Schema{"@type": "BlogPosting", "headline": seo.Title}
	case "docs":
		node = Schema{"@type": "TechArticle", "headline": seo.Title}
	default:
		node = Schema{"@type": "WebPage", "name": seo.Title}
	}
	node["@context"] = schemaContext
	node["url"] = url
	node["description"] = seo.Description
	node["dateModified"] = seo.ModifiedTime
	if seo.PublishedTime != "" {
		node["datePublished"] = seo.PublishedTime
	}
	if seo.OGImage != "" {
		node["image"] = seo.OGImage
	}
	if node["@type"] != "WebPage" {
		node["mainEntityOfPage"] = Schema{"@type": "WebPage", "@id": url}
		if author := item.String("author"); author != "" {
			node["author"] = Schema{"@type": "Person", "name": author}
		}
	}
	if site.Name != "" {
		publisher := Schema{"@type": "Organization", "name": site.Name}
		if site.OrganizationLogo != "" {
			publisher["logo"] = Schema{"@type": "ImageObject", "url": absolute(site.BaseURL, site.OrganizationLogo)}
		}
		node["publisher"] = publisher
	}
	return node
}

func breadcrumbs(item *models.ContentItem, coll *models.Collection, site models.SiteProfile, url string) Schema {
	crumb := func(pos int, name, u string) Schema {
		return Schema{"@type": "ListItem", "position": pos, "name": name, "item": u}
	}
	list := []Schema{crumb(1, "Home", absolute(site.BaseURL, "/"))}
	if base := coll.BasePath(); base != "/" {
		list = append(list, crumb(len(list)+1, coll.Name, absolute(site.BaseURL, base)))
	}
	list = append(list, crumb(len(list)+1, item.Title, url))
	return Schema{
		"@context":        schemaContext,
		"@type":           "BreadcrumbList",
		"itemListElement": list,
	}
}

// faqSchema reads "### Question" sections under a "## FAQ" heading.
func faqSchema(body string) Schema {
	var questions []Schema
	for _, b := range markdown.ExtractSections(body, "FAQ", "Frequently Asked Questions") {
		answer := markdown.StripMarkdown(b.Body)
		if b.Text == "" || answer == "" {
			continue
		}
		questions = append(questions, Schema{
			"@type":          "Question",
			"name":           b.Text,
			"acceptedAnswer": Schema{"@type": "Answer", "text": answer},
		})
	}
	if len(questions) == 0 {
		return nil
	}
	return Schema{"@context": schemaContext, "@type": "FAQPage", "mainEntity": questions}
}

func productSchema(item *models.ContentItem, coll *models.Collection, seo SEOData, url string) Schema {
	if coll.Slug != "landing-pages" || item.String("pageType") != "Product" {
		return nil
	}
	node := Schema{
		"@context":    schemaContext,
		"@type":       "Product",
		"name":        item.Title,
		"description": seo.Description,
		"url":         url,
	}
	if seo.OGImage != "" {
		node["image"] = seo.OGImage
	}
	if price, ok := item.Data["price"]; ok && price != nil && price != "" {
		offer := Schema{"@type": "Offer", "price": fmt.Sprint(price), "url": url}
		if currency := item.String("priceCurrency"); currency != "" {
			offer["priceCurrency"] = currency
		}
		node["offers"] = offer
	}
	return node
}

// howToSchema uses the sections under "## Steps", or else every heading that
// starts with "Step N".
func howToSchema(item *models.ContentItem, body string, seo SEOData, url string) Schema {
	blocks := markdown.ExtractSections(body, "Steps")
	if len(blocks) == 0 {
		for _, b := range markdown.Blocks(body) {
			if stepHeading.MatchString(b.Text) {
				blocks = append(blocks, b)
			}
		}
	}
	if len(blocks) == 0 {
		return nil
	}
	steps := make([]Schema, 0, len(blocks))
	for i, b := range blocks {
		step := Schema{
			"@type":    "HowToStep",
			"position": i + 1,
			"name":     b.Text,
			"url":      url + "#" + b.Slug,
		}
		if text := markdown.StripMarkdown(b.Body); text != "" {
			step["text"] = text
		}
		steps = append(steps, step)
	}
	return Schema{
		"@context":    schemaContext,
		"@type":       "HowTo",
		"name":        item.Title,
		"description": seo.Description,
		"step":        steps,
	}
}

type sitemapURL struct {
	Loc      string `xml:"loc"`
	LastMod  string `xml:"lastmod,omitempty"`
	Priority string `xml:"priority"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// GenerateSitemap lists the site root, every collection that has at least
// one item, and every item.  Items whose collection is not given are left out.
func (s *SEOService) GenerateSitemap(site models.SiteProfile, collections []models.Collection, items []models.ContentItem) ([]byte, error) {
	byID := make(map[string]*models.Collection, len(collections))
	for i := range collections {
		byID[collections[i].ID] = &collections[i]
	}
	lastMod := make(map[string]time.Time)
	var itemURLs []sitemapURL
	for i := range items {
		coll, ok := byID[items[i].CollectionID]
		if !ok {
			continue
		}
		if items[i].UpdatedAt.After(lastMod[coll.ID]) {
			lastMod[coll.ID] = items[i].UpdatedAt
		}
		itemURLs = append(itemURLs, sitemapURL{
			Loc:      ItemURL(site, coll, &items[i]),
			LastMod:  items[i].UpdatedAt.UTC().Format(time.RFC3339),
			Priority: "0.8",
		})
	}

	set := sitemapURLSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	set.URLs = append(set.URLs, sitemapURL{Loc: absolute(site.BaseURL, "/"), Priority: "1.0"})
	for _, coll := range collections {
		mod, ok := lastMod[coll.ID]
		if !ok || coll.BasePath() == "/" {
			continue
		}
		set.URLs = append(set.URLs, sitemapURL{
			Loc:      absolute(site.BaseURL, coll.BasePath()),
			LastMod:  mod.UTC().Format(time.RFC3339),
			Priority: "0.8",
		})
	}
	set.URLs = append(set.URLs, itemURLs...)

	body, err := xml.Marshal(set)
	if err != nil {
		return nil, err
	}
	out := append([]byte(xml.Header), body...)

	var buf bytes.Buffer
	if err := s.minifier.Minify("application/xml", &buf, bytes.NewReader(out)); err != nil {
		metrics.RenderFailuresTotal.WithLabelValues("sitemap").Inc()
		s.log.Warn("sitemap minify failed", zap.String("site", site.ID), zap.Error(err))
		return out, nil
	}
	return buf.Bytes(), nil
}

// GenerateRobotsTxt allows every crawler, names the AI crawlers explicitly,
// keeps all of them out of the admin surfaces and points at the sitemap.
func (s *SEOService) GenerateRobotsTxt(site models.SiteProfile) string {
	var sb strings.Builder
	group := func(agent string) {
		sb.WriteString("User-agent: " + agent + "\n")
		sb.WriteString("Allow: /\n")
		for _, p := range robotsDisallow {
			sb.WriteString("Disallow: " + p + "\n")
		}
		sb.WriteString("\n")
	}
	group("*")
	for _, agent := range AICrawlers {
		group(agent)
	}
	sb.WriteString("Sitemap: " + absolute(site.BaseURL, "/sitemap.xml") + "\n")
	return sb.String()
}

// RenderHead emits the <head> tags for seo and its JSON-LD graphs.
func (s *SEOService) RenderHead(seo SEOData, graphs []Schema) template.HTML {
	b := newHeadBuilder()
	b.SetTitle(seo.Title)
	b.Meta("name", "description", seo.Description)
	b.Meta("property", "og:title", seo.OGTitle)
	b.Meta("property", "og:description", seo.OGDescription)
	b.Meta("property", "og:type", seo.OGType)
	b.Meta("property", "og:url", seo.Canonical)
	b.Meta("property", "og:image", seo.OGImage)
	if seo.OGType == "article" {
		b.Meta("property", "article:published_time", seo.PublishedTime)
		b.Meta("property", "article:modified_time", seo.ModifiedTime)
	}
	if seo.OGImage != "" {
		b.Meta("name", "twitter:card", "summary_large_image")
	} else {
		b.Meta("name", "twitter:card", "summary")
	}
	b.Link("canonical", seo.Canonical)
	for _, g := range graphs {
		js, err := json.Marshal(g)
		if err != nil {
			s.log.Warn("json-ld encode failed", zap.Error(err))
			continue
		}
		b.JSONLD(string(js))
	}
	return b.HTML()
}

// ItemSEO loads a published item by slug and derives its SEO payload.  It
// returns nil when the collection or item does not exist in the site.
func (s *SEOService) ItemSEO(ctx context.Context, siteID, collSlug, itemSlug string) (*ItemSEO, error) {
	coll, err := s.schemas.GetCollection(ctx, siteID, collSlug)
	if err != nil || coll == nil {
		return nil, err
	}
	item, err := s.content.FindBySlug(ctx, siteID, coll.ID, itemSlug)
	if err != nil || item == nil || !item.IsPublished() {
		return nil, err
	}
	site, err := s.sites.Profile(ctx, siteID)
	if err != nil {
		return nil, err
	}
	seo := s.GenerateSEOData(item, coll, site)
	graphs := s.GenerateJSONLD(item, coll, site, seo.Canonical)
	return &ItemSEO{SEO: seo, JSONLD: graphs, Head: s.RenderHead(seo, graphs)}, nil
}

// SiteSitemap builds the sitemap of a site from its published items.
func (s *SEOService) SiteSitemap(ctx context.Context, siteID string) ([]byte, error) {
	site, err := s.sites.Profile(ctx, siteID)
	if err != nil {
		return nil, err
	}
	collections, err := s.schemas.GetAllCollections(ctx, siteID)
	if err != nil {
		return nil, err
	}
	items, err := s.content.ListAll(ctx, siteID, true)
	if err != nil {
		return nil, err
	}
	return s.GenerateSitemap(site, collections, items)
}

// SiteRobots builds robots.txt for a site.
func (s *SEOService) SiteRobots(ctx context.Context, siteID string) (string, error) {
	site, err := s.sites.Profile(ctx, siteID)
	if err != nil {
		return "", err
	}
	return s.GenerateRobotsTxt(site), nil
}
