// marvinctl is the operator CLI for the account monitor: import and add
// watched handles, inspect the review queue, and check API rate limits
// without going through the dashboard.
package main

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/config"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/quota"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/store"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/twitter"
)

var flagPriority int

var rootCmd = &cobra.Command{
	Use:   "marvinctl",
	Short: "Operator CLI for the Marvin account monitor",
	Long:  "marvinctl manages the watch-list, review queue and API limits of the Marvin account monitor.",
}

func init() {
	addCmd.Flags().IntVar(&flagPriority, "priority", 3, "monitoring priority, 1 (highest) to 5")
	importCmd.Flags().IntVar(&flagPriority, "priority", 3, "monitoring priority for imported accounts")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(limitsCmd)
	rootCmd.AddCommand(openCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <handle>",
	Short: "Add one account to the watch-list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		st, err := store.New(cfg.Storage)
		if err != nil {
			return err
		}
		defer st.Close()

		handle := cleanHandle(args[0])
		if err := st.AddAccount(cmd.Context(), handle, flagPriority); err != nil {
			return err
		}
		fmt.Printf("Added @%s (priority %d)\n", handle, flagPriority)
		return nil
	},
}

// handlePattern matches @handles in free-form text, e.g. a pasted list
// or an exported following page.
var handlePattern = regexp.MustCompile(`@([A-Za-z0-9_]{1,15})`)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import @handles found in a text file",
	Long:  "Scans a text file for @handles and adds each one to the watch-list. Handles already being monitored are skipped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		cfg := loadConfig()
		st, err := store.New(cfg.Storage)
		if err != nil {
			return err
		}
		defer st.Close()

		seen := make(map[string]bool)
		added, skipped := 0, 0
		for _, m := range handlePattern.FindAllStringSubmatch(string(data), -1) {
			handle := m[1]
			if seen[handle] {
				continue
			}
			seen[handle] = true

			err := st.AddAccount(cmd.Context(), handle, flagPriority)
			switch {
			case err == store.ErrAccountExists:
				skipped++
			case err != nil:
				return fmt.Errorf("adding @%s: %w", handle, err)
			default:
				added++
			}
		}

		fmt.Printf("Imported %d accounts (%d already monitored)\n", added, skipped)
		return nil
	},
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List accounts flagged for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		st, err := store.New(cfg.Storage)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.ReviewEntries(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No accounts need review")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("%-8s @%-16s %-16s %s\n", e.Status, e.Handle, e.ErrorCode, e.ErrorMessage)
			if e.Notes != "" {
				fmt.Printf("         notes: %s\n", e.Notes)
			}
		}
		return nil
	},
}

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Check current API rate limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if cfg.Twitter.BearerToken == "" {
			return fmt.Errorf("Twitter bearer token is not set (config or TWITTER_BEARER_TOKEN)")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		tracker := quota.New(cfg.Monitor.DailyAPILimit)
		defer tracker.Stop()

		// No user lookups here, so no id cache.
		client := twitter.New(cfg.Twitter, tracker, nil)
		info, err := client.CheckRateLimits(ctx)
		if info == nil {
			return err
		}

		fmt.Printf("Endpoint window: %d/%d remaining", info.Remaining, info.Limit)
		if info.Reset > 0 {
			fmt.Printf(", resets %s", time.Unix(info.Reset, 0).Format(time.RFC822))
		}
		fmt.Println()

		if info.Day != nil {
			fmt.Printf("24-hour app limit: %d/%d remaining, resets %s\n",
				info.Day.Remaining, info.Day.Limit, time.Unix(info.Day.Reset, 0).Format(time.RFC822))
		}
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:       "open <dashboard|config>",
	Short:     "Open the dashboard or the config file",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"dashboard", "config"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		switch args[0] {
		case "dashboard":
			return browser.OpenURL(fmt.Sprintf("http://localhost:%d/", cfg.Web.Port))
		case "config":
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			return browser.OpenFile(path)
		}
		return fmt.Errorf("unknown target %q", args[0])
	},
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
		cfg.ApplyEnv()
	}
	return cfg
}

func cleanHandle(h string) string {
	if len(h) > 0 && h[0] == '@' {
		return h[1:]
	}
	return h
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
