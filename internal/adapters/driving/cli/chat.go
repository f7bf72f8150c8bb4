package cli

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat-cli/internal/adapters/driving/tui"
	"github.com/custodia-labs/docchat-cli/internal/app"
	"github.com/custodia-labs/docchat-cli/internal/core/ports/driving"
)

var (
	chatIndexPath string
	chatTopK      int
	chatTUI       bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about your indexed documents",
	Long: `Starts an interactive chat session over the ingested corpus.
Each question is answered by the configured LLM using the most relevant
document passages, with sources cited.

Type 'exit', 'quit' or 'bye' (or press Ctrl-D) to leave, 'reset' to
clear the conversation history, and 'help' for the command list.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatIndexPath, "index", "", "index file path (default from config)")
	chatCmd.Flags().IntVarP(&chatTopK, "top-k", "k", 0, "number of passages retrieved per question")
	chatCmd.Flags().BoolVar(&chatTUI, "tui", false, "use the full-screen terminal interface")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ov := app.Overrides{
		IndexPath: chatIndexPath,
		TopK:      chatTopK,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	answerer, cleanup, err := application.NewAnswerer(ctx, ov)
	if err != nil {
		return err
	}
	defer cleanup()

	if chatTUI {
		return tui.Run(ctx, answerer)
	}
	return chatLoop(ctx, cmd, answerer)
}

// chatLoop is the plain line-based REPL.
func chatLoop(ctx context.Context, cmd *cobra.Command, answerer driving.Answerer) error {
	cmd.Println("Chat with your documents. Type 'help' for commands, 'exit' to leave.")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if ctx.Err() != nil {
			return nil
		}
		cmd.Print("> ")
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "exit", "quit", "bye":
			cmd.Println("Goodbye.")
			return nil

		case "help":
			printChatHelp(cmd)
			continue

		case "reset":
			answerer.Reset()
			cmd.Println("Conversation history cleared.")
			continue
		}

		answer, err := answerer.Ask(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			cmd.PrintErrf("error: %v\n", err)
			continue
		}

		cmd.Println()
		cmd.Println(answer.Text)
		printSources(cmd, answer)
		cmd.Println()
	}
}

func printChatHelp(cmd *cobra.Command) {
	cmd.Println("Commands:")
	cmd.Println("  help              show this help")
	cmd.Println("  reset             clear the conversation history")
	cmd.Println("  exit, quit, bye   leave the chat")
	cmd.Println("Anything else is asked as a question about your documents.")
}

func printSources(cmd *cobra.Command, answer *driving.Answer) {
	if len(answer.Sources) == 0 {
		return
	}
	cmd.Println()
	cmd.Println("Sources:")
	for i, src := range answer.Sources {
		chunk := src.Entry.Chunk
		cmd.Printf("  [%d] %s, page %d (%.2f)\n", i+1, chunk.DocumentPath, chunk.Page, src.Similarity)
	}
}
