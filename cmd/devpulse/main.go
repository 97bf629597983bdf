// Command devpulse 提交仓库分析和自动修复任务，并跟踪它们的进度
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "devpulse",
	Short: "Track DevPulse repository analyses and autonomous fixes",
	Long: `devpulse submits repository analyses and autonomous fix jobs to the
DevPulse service and tracks their progress until they finish. Run
"devpulse serve" for the local gateway that browser UIs talk to.`,
	SilenceUsage: true,
}

func init() {
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
