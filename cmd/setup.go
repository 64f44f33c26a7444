package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run one-shot provisioning commands against bunq",
}

var setupFiltersCmd = &cobra.Command{
	Use:   "filters",
	Short: "Register the webhook notification filter with bunq",
	Run: func(_ *cobra.Command, _ []string) {
		_, gatewayService, cleanup := mustCreateGatewayService()
		defer cleanup()

		runJob("setup_filters", func() error {
			return gatewayService.SetupNotificationFilters(context.Background())
		})
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.AddCommand(setupFiltersCmd)
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
