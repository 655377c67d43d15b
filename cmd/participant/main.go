package main

import (
	"log"

	"github.com/absmach/flparticipant/cli"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "participant",
		Short: "Federated learning participant",
		Long:  `Participant runs the training side of a federated learning round: it follows the coordinator, trains on each new global model and submits local updates.`,
	}

	cli.AddPersistentFlags(rootCmd)

	rootCmd.AddCommand(cli.NewStartCmd())
	rootCmd.AddCommand(cli.NewInitCmd())
	rootCmd.AddCommand(cli.NewConfigCmd())
	rootCmd.AddCommand(cli.NewStateCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
