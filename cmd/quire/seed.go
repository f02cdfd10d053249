package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quire/internal/fields"
	"quire/internal/services"
)

const seedContent = `
# Quire load-test article

This article was generated by the seed command to load-test the content API.

## Markdown features

### Lists

- item one
- item two
- item three

### Quote

> Load testing shows how the service behaves when many readers arrive at once.

### Code

` + "```go" + `
package main

import "fmt"

func main() {
	fmt.Println("Hello, World!")
}
` + "```" + `

<!--more-->

## Long text

Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed non risus. Suspendisse lectus tortor, dignissim sit amet, adipiscing nec, ultricies sed, dolor. Cras elementum ultrices diam. Maecenas ligula massa, varius a, semper congue, euismod non, mi.

## FAQ

### Is this real content?

No, it only exists to give the renderer and the database something to chew on.
`

var (
	seedSite  string
	seedPosts int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill a site's blog collection with generated posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		site, err := a.sites.ResolveSite(ctx, seedSite)
		if err != nil {
			return err
		}
		if site == nil {
			return fmt.Errorf("site %q not found", seedSite)
		}

		coll, err := a.schemas.GetCollection(ctx, site.ID, "blog")
		if err != nil {
			return err
		}
		if coll == nil {
			coll, err = a.schemas.CreateCollection(ctx, site.ID, services.CollectionInput{
				Name:       "Blog",
				Slug:       "blog",
				URLPattern: "/blog/{slug}",
				Fields: []fields.Field{
					{Name: "content", Label: "Content", Type: fields.TypeMarkdown},
					{Name: "author", Label: "Author", Type: fields.TypeText},
				},
			})
			if err != nil {
				return err
			}
		}

		start := time.Now()
		rows := make([]map[string]any, seedPosts)
		for i := range rows {
			rows[i] = map[string]any{
				"title":         fmt.Sprintf("Load test post %d", i+1),
				"content":       seedContent,
				"author":        "seed",
				"status":        "published",
				"datePublished": start.Add(-time.Duration(i) * time.Hour).UTC().Format(time.RFC3339),
			}
		}
		res, err := a.importer.CreateContentBatch(ctx, site.ID, coll.Slug, rows)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d posts (%d skipped, %d failed) in %s\n",
			res.Success, res.Skipped, res.Failed, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedSite, "site", "", "site id or host")
	seedCmd.Flags().IntVar(&seedPosts, "posts", 1000, "number of posts to generate")
	_ = seedCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(seedCmd)
}
