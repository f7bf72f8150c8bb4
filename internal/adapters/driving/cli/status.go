package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat-cli/internal/app"
	"github.com/custodia-labs/docchat-cli/internal/core/domain"
)

var statusIndexPath string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the index and configuration status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusIndexPath, "index", "", "index file path (default from config)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	s := application.Settings

	cmd.Printf("Config:     %s\n", application.Config.Path())
	cmd.Printf("Data dir:   %s\n", s.DataDir)
	cmd.Printf("Embedding:  %s (%s)\n", s.Embedding.Provider.Description(), s.Embedding.Model)
	cmd.Printf("LLM:        %s (%s)\n", s.LLM.Provider.Description(), s.LLM.Model)

	status, err := application.Status(cmd.Context(), app.Overrides{IndexPath: statusIndexPath})
	if err != nil {
		if errors.Is(err, domain.ErrStorage) {
			cmd.Println("Index:      not built yet, run 'docchat ingest'")
			return nil
		}
		return err
	}

	cmd.Printf("Index:      %s\n", status.Path)
	cmd.Printf("  entries:     %d\n", status.Entries)
	cmd.Printf("  model:       %s (%d dimensions)\n", status.Model, status.Dimensions)
	if !status.ModifiedAt.IsZero() {
		cmd.Printf("  built:       %s\n", status.ModifiedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
