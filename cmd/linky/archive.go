package main

import (
	"context"
	"fmt"

	"github.com/pevans/linky"
	"github.com/spf13/cobra"
)

var flagEntryURL string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive totals and per-bucket counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(context.Background())
		if err != nil {
			return err
		}

		if flagFormat == "json" {
			return printJSON(cmd.OutOrStdout(), stats)
		}
		printStatsTable(cmd.OutOrStdout(), stats)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Show archived captures of a URL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagEntryURL == "" {
			return fmt.Errorf("--url is required")
		}

		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.GetByURL(context.Background(), flagEntryURL)
		if err != nil {
			return err
		}

		if flagFormat == "json" {
			return printJSON(cmd.OutOrStdout(), linky.EntriesResponse{Entries: entries, Total: len(entries)})
		}
		printEntries(cmd.OutOrStdout(), entries, true)
		return nil
	},
}

var bucketCmd = &cobra.Command{
	Use:   "bucket <name>",
	Short: "List archived captures in a bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.GetByBucket(context.Background(), args[0])
		if err != nil {
			return err
		}

		if flagFormat == "json" {
			return printJSON(cmd.OutOrStdout(), linky.EntriesResponse{Entries: entries, Total: len(entries)})
		}
		printEntries(cmd.OutOrStdout(), entries, false)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete every capture of a URL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagEntryURL == "" {
			return fmt.Errorf("--url is required")
		}

		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		deleted, err := store.DeleteByURL(context.Background(), flagEntryURL)
		if err != nil {
			return err
		}

		if flagFormat == "json" {
			return printJSON(cmd.OutOrStdout(), linky.DeleteResponse{Deleted: deleted})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries for %s\n", deleted, flagEntryURL)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every entry from the archive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(context.Background()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Archive cleared")
		return nil
	},
}

func init() {
	getCmd.Flags().StringVar(&flagEntryURL, "url", "", "URL to look up (required)")
	deleteCmd.Flags().StringVar(&flagEntryURL, "url", "", "URL to delete (required)")

	rootCmd.AddCommand(statsCmd, getCmd, bucketCmd, deleteCmd, clearCmd)
}
