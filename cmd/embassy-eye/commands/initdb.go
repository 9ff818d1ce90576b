package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embassy-watch/embassy-eye/config"
	"github.com/embassy-watch/embassy-eye/store"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the statistics database and its tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Printf("database ready at %s\n", cfg.Store.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}
