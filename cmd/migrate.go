package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.ValidateSchema(ctx); err != nil {
			return eris.Wrap(err, "schema validation after migrate")
		}
		fmt.Println("Schema up to date.")
		return nil
	},
}

var blocklistCmd = &cobra.Command{
	Use:   "blocklist",
	Short: "Manage the send blocklist",
}

var blocklistAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Add an address to the send blocklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		reason, _ := cmd.Flags().GetString("reason")
		if err := st.AddToBlocklist(ctx, args[0], reason); err != nil {
			return err
		}
		fmt.Printf("Blocked %s.\n", args[0])
		return nil
	},
}

func init() {
	blocklistAddCmd.Flags().String("reason", "", "why the address is blocked")
	blocklistCmd.AddCommand(blocklistAddCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(blocklistCmd)
}
