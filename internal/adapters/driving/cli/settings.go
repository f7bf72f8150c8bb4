package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// settableKeys are the configuration keys exposed through the CLI.
var settableKeys = []string{
	"data_dir",
	"index_path",
	"ingest.recursive",
	"ingest.strict",
	"chunking.size",
	"chunking.overlap",
	"retrieval.top_k",
	"retrieval.history_turns",
	"retrieval.context_budget",
	"embedding.provider",
	"embedding.model",
	"embedding.base_url",
	"llm.provider",
	"llm.model",
	"llm.base_url",
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "View and change configuration",
	Args:  cobra.NoArgs,
	RunE:  runSettingsList,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the current configuration",
	Args:  cobra.NoArgs,
	RunE:  runSettingsList,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsSetKeyCmd = &cobra.Command{
	Use:   "set-key <embedding|llm>",
	Short: "Store an API key without echoing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsSetKey,
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsSetKeyCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsList(cmd *cobra.Command, _ []string) error {
	cmd.Printf("# %s\n", application.Config.Path())

	keys := append([]string(nil), settableKeys...)
	sort.Strings(keys)
	for _, key := range keys {
		val, ok := application.Config.Get(key)
		if !ok {
			continue
		}
		cmd.Printf("%s = %v\n", key, val)
	}

	for _, key := range []string{"embedding.api_key", "llm.api_key"} {
		if application.Config.GetString(key) != "" {
			cmd.Printf("%s = (set)\n", key)
		}
	}
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if strings.HasSuffix(key, "api_key") {
		return fmt.Errorf("refusing to print an API key")
	}

	val, ok := application.Config.Get(key)
	if !ok {
		return fmt.Errorf("key %q is not set", key)
	}
	cmd.Printf("%v\n", val)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]

	if !isSettableKey(key) {
		return fmt.Errorf("unknown key %q (see 'docchat settings list')", key)
	}

	val := parseValue(raw)
	if err := application.Config.Set(key, val); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}

	cmd.Printf("%s = %v\n", key, val)
	return nil
}

func runSettingsSetKey(cmd *cobra.Command, args []string) error {
	section := args[0]
	if section != "embedding" && section != "llm" {
		return fmt.Errorf("expected 'embedding' or 'llm', got %q", section)
	}

	cmd.Printf("API key for %s: ", section)
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	cmd.Println()
	if err != nil {
		return fmt.Errorf("reading key: %w", err)
	}
	if len(key) == 0 {
		return fmt.Errorf("no key entered")
	}

	if err := application.Config.Set(section+".api_key", string(key)); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}

	cmd.Println("Key saved.")
	return nil
}

func isSettableKey(key string) bool {
	for _, k := range settableKeys {
		if k == key {
			return true
		}
	}
	return false
}

// parseValue converts a CLI argument to its best-fitting TOML type.
func parseValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}
