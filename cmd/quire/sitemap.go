package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	sitemapSite string
	sitemapOut  string
	robotsOut   string
)

var sitemapCmd = &cobra.Command{
	Use:   "sitemap",
	Short: "Write sitemap.xml (and optionally robots.txt) for a site",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		site, err := a.sites.ResolveSite(ctx, sitemapSite)
		if err != nil {
			return err
		}
		if site == nil {
			return fmt.Errorf("site %q not found", sitemapSite)
		}

		body, err := a.seo.SiteSitemap(ctx, site.ID)
		if err != nil {
			return err
		}
		if sitemapOut == "" || sitemapOut == "-" {
			_, err = cmd.OutOrStdout().Write(body)
		} else {
			err = os.WriteFile(sitemapOut, body, 0o644)
		}
		if err != nil {
			return err
		}

		if robotsOut != "" {
			robots, err := a.seo.SiteRobots(ctx, site.ID)
			if err != nil {
				return err
			}
			return os.WriteFile(robotsOut, []byte(robots), 0o644)
		}
		return nil
	},
}

func init() {
	sitemapCmd.Flags().StringVar(&sitemapSite, "site", "", "site id or host")
	sitemapCmd.Flags().StringVarP(&sitemapOut, "out", "o", "-", "output file, - for stdout")
	sitemapCmd.Flags().StringVar(&robotsOut, "robots", "", "also write robots.txt to this file")
	_ = sitemapCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(sitemapCmd)
}
