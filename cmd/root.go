package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bunq-gateway",
	Short: "Bunq payment gateway microservice",
	Long:  "A payment gateway microservice that issues bunq payment requests for orders and reconciles them through bunq webhook notifications.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
