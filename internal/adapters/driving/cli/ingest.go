package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docchat-cli/internal/app"
	"github.com/custodia-labs/docchat-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docchat-cli/internal/logger"
)

// watchDebounce coalesces bursts of filesystem events into one
// re-ingestion.
const watchDebounce = 2 * time.Second

var (
	ingestIndexPath string
	ingestChunkSize int
	ingestOverlap   int
	ingestRecursive bool
	ingestStrict    bool
	ingestWatch     bool
	ingestForce     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index PDF documents for chat",
	Long: `Reads every PDF under the data directory, splits the text into
overlapping chunks, embeds them and persists a local vector index.
Re-running ingest rebuilds the index; the previous index stays intact
until the new one is complete.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestIndexPath, "index", "", "index file path (default from config)")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "chunk size in characters")
	ingestCmd.Flags().IntVar(&ingestOverlap, "overlap", 0, "overlap between chunks in characters")
	ingestCmd.Flags().BoolVar(&ingestRecursive, "recursive", false, "scan the data directory recursively")
	ingestCmd.Flags().BoolVar(&ingestStrict, "strict", false, "fail on the first unparsable file instead of skipping it")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep running and re-ingest when the data directory changes")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "overwrite an existing index without asking")
	rootCmd.AddCommand(ingestCmd)
}

func ingestOverrides(cmd *cobra.Command, args []string) app.Overrides {
	ov := app.Overrides{
		IndexPath:    ingestIndexPath,
		ChunkSize:    ingestChunkSize,
		ChunkOverlap: ingestOverlap,
	}
	if len(args) > 0 {
		ov.DataDir = args[0]
	}
	if cmd.Flags().Changed("recursive") {
		ov.Recursive = &ingestRecursive
	}
	if cmd.Flags().Changed("strict") {
		ov.Strict = &ingestStrict
	}
	return ov
}

func runIngest(cmd *cobra.Command, args []string) error {
	ov := ingestOverrides(cmd, args)

	indexPath := application.Settings.IndexPath
	if ov.IndexPath != "" {
		indexPath = ov.IndexPath
	}
	if !ingestForce && !ingestWatch {
		ok, err := confirmOverwrite(cmd, indexPath)
		if err != nil {
			return err
		}
		if !ok {
			cmd.Println("Aborted.")
			return nil
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ingestor, cleanup, err := application.NewIngestor(ctx, ov)
	if err != nil {
		return err
	}
	defer cleanup()

	dataDir := application.Settings.DataDir
	if ov.DataDir != "" {
		dataDir = ov.DataDir
	}

	if err := ingestOnce(ctx, cmd, ingestor, dataDir); err != nil {
		return err
	}

	if !ingestWatch {
		return nil
	}
	return watchAndIngest(ctx, cmd, ingestor, dataDir)
}

// confirmOverwrite asks before replacing an existing index. It
// proceeds without asking when no index exists yet or when stdin is
// not interactive.
func confirmOverwrite(cmd *cobra.Command, indexPath string) (bool, error) {
	if _, err := os.Stat(indexPath); err != nil {
		return true, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return true, nil
	}

	cmd.Printf("Index %s already exists. Overwrite? (y/n) ", indexPath)
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return true, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func ingestOnce(ctx context.Context, cmd *cobra.Command, ingestor driving.Ingestor, dataDir string) error {
	report, err := ingestor.Ingest(ctx, dataDir)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	for _, doc := range report.Documents {
		logger.Debug("Indexed %q (%d pages)", doc.Title, doc.Pages)
	}
	cmd.Printf("Ingested %d files (%d skipped): %d pages, %d chunks in %s\n",
		report.FilesLoaded, report.FilesSkipped, report.Pages, report.Chunks,
		report.Duration.Round(time.Millisecond))
	return nil
}

// watchAndIngest re-runs ingestion whenever the data directory changes,
// coalescing bursts of events. It returns when the context is cancelled.
func watchAndIngest(ctx context.Context, cmd *cobra.Command, ingestor driving.Ingestor, dataDir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dataDir); err != nil {
		return fmt.Errorf("watching %q: %w", dataDir, err)
	}

	cmd.Printf("Watching %s for changes (Ctrl-C to stop)\n", dataDir)

	var debounce *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("Filesystem event: %s", event)
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
			} else {
				debounce.Reset(watchDebounce)
			}
			pending = debounce.C

		case <-pending:
			pending = nil
			if err := ingestOnce(ctx, cmd, ingestor, dataDir); err != nil {
				// Keep watching; a transient failure (e.g. a file still
				// being written) should not end the session.
				if ctx.Err() != nil {
					return nil
				}
				cmd.PrintErrf("re-ingestion failed: %v\n", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}
