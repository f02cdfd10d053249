package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quire/internal/constants"
)

var (
	siteName  string
	siteHost  string
	siteBase  string
	siteToken string
)

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Manage sites",
}

var siteCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a site and its initial settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		site, err := a.sites.CreateSite(ctx, siteName, siteHost)
		if err != nil {
			return err
		}
		settings := map[string]string{constants.SettingSiteName: siteName}
		if siteBase != "" {
			settings[constants.SettingBaseURL] = siteBase
		}
		if siteToken != "" {
			settings[constants.SettingAPIToken] = siteToken
		}
		if err := a.sites.UpdateSettings(ctx, site.ID, settings); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), site.ID)
		return nil
	},
}

var siteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sites",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		sites, err := a.sites.ListSites(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range sites {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", s.ID, s.Host, s.Name)
		}
		return nil
	},
}

func init() {
	siteCreateCmd.Flags().StringVar(&siteName, "name", "", "site name")
	siteCreateCmd.Flags().StringVar(&siteHost, "host", "", "host name that routes to this site")
	siteCreateCmd.Flags().StringVar(&siteBase, "base-url", "", "public base URL, e.g. https://example.com")
	siteCreateCmd.Flags().StringVar(&siteToken, "token", "", "bearer token for the admin API")
	_ = siteCreateCmd.MarkFlagRequired("name")

	siteCmd.AddCommand(siteCreateCmd, siteListCmd)
	rootCmd.AddCommand(siteCmd)
}
