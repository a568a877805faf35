package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// statusCmd 检查中继服务的健康状态。
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check relay health",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient()
		if err := client.Health(); err != nil {
			return fmt.Errorf("relay is unhealthy: %w", err)
		}
		fmt.Printf("Relay at %s is healthy\n", viper.GetString("api_url"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
