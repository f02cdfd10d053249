package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"quire/internal/services"
)

var (
	importSite       string
	importCollection string
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv|file.json|dir>",
	Short: "Bulk import rows into a collection",
	Long: `Import reads a CSV file (header row = field names), a JSON array of objects
or a directory of front-matter markdown files and loads them into a
collection.  Rows whose slug already exists are skipped, so an import can be
re-run safely.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		site, err := a.sites.ResolveSite(ctx, importSite)
		if err != nil {
			return err
		}
		if site == nil {
			return fmt.Errorf("site %q not found", importSite)
		}
		coll, err := a.schemas.RequireCollection(ctx, site.ID, importCollection)
		if err != nil {
			return err
		}

		rows, err := readRows(args[0], services.BodyField(coll))
		if err != nil {
			return err
		}
		res, err := a.importer.CreateContentBatch(ctx, site.ID, coll.Slug, rows)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func readRows(path, bodyField string) ([]map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return services.ReadMarkdownDir(os.DirFS(path), bodyField)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return services.ReadCSV(f)
	case ".json":
		var rows []map[string]any
		if err := json.NewDecoder(f).Decode(&rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	return nil, fmt.Errorf("unsupported import file %s", path)
}

func init() {
	importCmd.Flags().StringVar(&importSite, "site", "", "site id or host")
	importCmd.Flags().StringVar(&importCollection, "collection", "", "target collection slug")
	_ = importCmd.MarkFlagRequired("site")
	_ = importCmd.MarkFlagRequired("collection")
	rootCmd.AddCommand(importCmd)
}
