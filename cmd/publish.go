package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/forcewatch/publish-cli/internal/frontmatter"
	"github.com/forcewatch/publish-cli/internal/model"
	"github.com/forcewatch/publish-cli/internal/pipeline"
)

var (
	publishKind  string
	publishForce bool
	publishYes   bool
)

var publishCmd = &cobra.Command{
	Use:   "publish <draft>",
	Short: "Publish a draft through the full pipeline",
	Long:  "Scans the draft for media, uploads what the library has not seen, extracts and validates metadata, generates the article body, and writes the content file. The draft is renamed with a pub_ prefix on success.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := resolveKind(cmd, args[0])
		if err != nil {
			return err
		}

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		opts := pipeline.RunOptions{
			Kind:  kind,
			Force: publishForce,
		}
		if !publishYes {
			opts.ConfirmOverwrite = confirmOverwrite
		} else {
			opts.ConfirmOverwrite = func(string) bool { return true }
		}

		run, err := e.Pipeline.Run(ctx, args[0], opts)
		if err != nil {
			return err
		}

		fmt.Printf("Published %s (run %s)\n", run.Slug, run.ID)
		return nil
	},
}

// resolveKind prefers an explicit --kind flag, then a kind key in the draft
// frontmatter, then the default.
func resolveKind(cmd *cobra.Command, draftPath string) (model.DraftKind, error) {
	if cmd.Flags().Changed("kind") {
		return parseKind(publishKind)
	}
	if data, err := os.ReadFile(draftPath); err == nil {
		var header struct {
			Kind string `yaml:"kind"`
		}
		if _, err := frontmatter.Parse(data, &header); err == nil && header.Kind != "" {
			return parseKind(header.Kind)
		}
	}
	return parseKind(publishKind)
}

func parseKind(s string) (model.DraftKind, error) {
	switch model.DraftKind(s) {
	case model.DraftCase:
		return model.DraftCase, nil
	case model.DraftPost:
		return model.DraftPost, nil
	}
	return "", eris.Errorf("invalid --kind %q, want case or post", s)
}

// confirmOverwrite asks on the terminal before replacing an existing
// content file.
func confirmOverwrite(path string) bool {
	fmt.Fprintf(os.Stderr, "%s already exists. Overwrite? [y/N] ", path)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func init() {
	publishCmd.Flags().StringVar(&publishKind, "kind", "case", "draft kind: case or post")
	publishCmd.Flags().BoolVar(&publishForce, "force", false, "overwrite an existing content file without asking")
	publishCmd.Flags().BoolVar(&publishYes, "yes", false, "answer yes to all prompts")
	rootCmd.AddCommand(publishCmd)
}
