package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/forcewatch/publish-cli/internal/library"
	"github.com/forcewatch/publish-cli/internal/model"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Inspect the media library",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded assets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		repo, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer repo.Close() //nolint:errcheck

		lib, err := library.New(repo).All(ctx)
		if err != nil {
			return eris.Wrap(err, "library list")
		}

		assets := lib.All()
		if len(assets) == 0 {
			fmt.Fprintln(os.Stderr, "Library is empty.")
			return nil
		}

		formatAssetList(os.Stdout, assets)
		return nil
	},
}

var libraryFindCmd = &cobra.Command{
	Use:   "find <source-url>",
	Short: "Look up an asset by its exact source URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		repo, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer repo.Close() //nolint:errcheck

		asset, err := library.New(repo).FindBySourceURL(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "library find")
		}
		if asset == nil {
			fmt.Fprintln(os.Stderr, "Not in library.")
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(asset)
	},
}

func formatAssetList(w io.Writer, assets []model.LibraryAsset) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tADDED\tSOURCE")
	for _, a := range assets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			a.ID, a.Type, a.AddedAt.Format("2006-01-02"), a.SourceURL)
	}
	tw.Flush()
}

func init() {
	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(libraryFindCmd)
	rootCmd.AddCommand(libraryCmd)
}
