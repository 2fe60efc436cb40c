// Package main provides the jiratracker CLI for reading and updating Jira
// issues from the command line.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tuannvm/jira-tracker/internal/config"
	"github.com/tuannvm/jira-tracker/internal/jira"
	log "github.com/tuannvm/jira-tracker/internal/logging"
	"github.com/tuannvm/jira-tracker/internal/models"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "jiratracker",
	Short: "Read, search, comment on and update Jira issues",
	Long: `jiratracker talks to the Jira instance configured through JIRA_BASE_URL,
JIRA_USERNAME and JIRA_API_TOKEN (or config.yaml).

Examples:
  jiratracker get https://issues.redhat.com/browse/WFLY-1
  jiratracker search --product JBEAP --release 7.4.1.GA
  jiratracker comment --body "Fixed upstream" https://issues.redhat.com/browse/WFLY-1
  jiratracker transition --status ASSIGNED https://issues.redhat.com/browse/WFLY-1`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadFile(); err != nil {
			return err
		}
		return log.Init(config.GetViper().GetString("log_level"))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("jira-url", "", "Jira base URL")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	_ = config.GetViper().BindPFlag("jira_base_url", rootCmd.PersistentFlags().Lookup("jira-url"))
	_ = config.GetViper().BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func main() {
	defer log.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newTracker() (*jira.IssueTracker, error) {
	cfg := config.NewConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return jira.NewIssueTrackerFromConfig(cfg)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printIssues(issues []*models.Issue) error {
	if jsonOutput {
		return printJSON(issues)
	}
	for _, issue := range issues {
		fmt.Printf("%-14s %-10s %s\n", issue.TrackerID, issue.Status, issue.Summary)
		if len(issue.Releases) > 0 {
			versions := make([]string, 0, len(issue.Releases))
			for _, r := range issue.Releases {
				versions = append(versions, strings.TrimSpace(r.Version+" "+r.Milestone))
			}
			fmt.Printf("%-14s releases: %s\n", "", strings.Join(versions, ", "))
		}
	}
	fmt.Printf("%d issues\n", len(issues))
	return nil
}
