package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/forcewatch/publish-cli/internal/model"
	"github.com/forcewatch/publish-cli/internal/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and maintain the canonical vocabularies",
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every registry list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		repo, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer repo.Close() //nolint:errcheck

		reg, err := repo.LoadRegistry(ctx)
		if err != nil {
			return eris.Wrap(err, "registry list")
		}

		for _, name := range model.ListNames {
			entries := reg.List(name)
			fmt.Printf("%s (%d):\n", name, len(entries))
			for _, e := range entries {
				fmt.Printf("  %s\n", e)
			}
		}
		return nil
	},
}

var registryRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the registry from published content frontmatter",
	Long:  "Re-derives all seven lists from the frontmatter of every file under the content directory, replacing the stored registry. Entries no longer referenced by any article are dropped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		repo, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer repo.Close() //nolint:errcheck

		reg, err := registry.New(repo).Rebuild(ctx, cfg.Paths.ContentDir)
		if err != nil {
			return eris.Wrap(err, "registry rebuild")
		}

		total := 0
		for _, name := range model.ListNames {
			total += len(reg.List(name))
		}
		fmt.Fprintf(os.Stderr, "Rebuilt registry: %d entries across %d lists.\n", total, len(model.ListNames))
		return nil
	},
}

func init() {
	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryRebuildCmd)
	rootCmd.AddCommand(registryCmd)
}
