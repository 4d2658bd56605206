package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vijay-prabhu/jobrank/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(configPath)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file already exists at %s\n", configPath)
		fmt.Println("Use 'jobrank config show' to view current configuration")
		return nil
	}

	data, err := config.Default().Marshal()
	if err != nil {
		return fmt.Errorf("failed to render default config: %w", err)
	}

	if err := os.WriteFile(configPath, append([]byte(configHeader), data...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Point database.path at your offers database")
	fmt.Println("  2. Run 'jobrank run' to deduplicate, analyze feedback and score offers")
	fmt.Println()
	fmt.Println("For local models, ensure Ollama is running with the configured models:")
	fmt.Println("  ollama pull nomic-embed-text")
	fmt.Println("  ollama pull llama3:8b")
	fmt.Println("  ollama serve")

	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Println("No config file found. Run 'jobrank config init' to create one.")
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if outputFmt == "json" {
		return render(cfg)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Printf("# Config file: %s\n\n", configPath)
	fmt.Println(string(data))
	return nil
}

const configHeader = `# jobrank configuration
#
# embedding.provider and judge.provider: "ollama" or "gemini".
# The Gemini API key can also come from GEMINI_API_KEY.
# Leave cache.redis_url empty to disable the embedding cache.
# scoring.weights and scoring.blend must each sum to 1.

`
