package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuannvm/jira-tracker/internal/models"
)

var (
	searchProduct   string
	searchRelease   string
	searchMilestone string
	searchStatus    string
	searchAssignee  string
	searchComponent string
	searchSince     string
	searchLimit     int

	commentBody    string
	commentPrivate bool

	transitionStatus string
	linkType         string
)

var getCmd = &cobra.Command{
	Use:   "get URL...",
	Short: "Fetch issues by browse or API URL",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := newTracker()
		if err != nil {
			return err
		}
		urls, err := parseURLs(args)
		if err != nil {
			return err
		}
		if len(urls) == 1 {
			issue, err := tracker.GetIssue(cmd.Context(), urls[0])
			if err != nil {
				return err
			}
			return printIssues([]*models.Issue{issue})
		}
		issues, err := tracker.GetIssues(cmd.Context(), urls)
		if err != nil {
			return err
		}
		return printIssues(issues)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := newTracker()
		if err != nil {
			return err
		}
		var opts []models.SearchOption
		if searchProduct != "" {
			opts = append(opts, models.WithProduct(searchProduct))
		}
		if searchRelease != "" || searchMilestone != "" {
			opts = append(opts, models.WithRelease(models.Release{Version: searchRelease, Milestone: searchMilestone}))
		}
		if searchStatus != "" {
			opts = append(opts, models.WithStatus(models.IssueStatus(strings.ToUpper(searchStatus))))
		}
		if searchAssignee != "" {
			opts = append(opts, models.WithAssignee(searchAssignee))
		}
		if searchComponent != "" {
			opts = append(opts, models.WithComponent(searchComponent))
		}
		if searchSince != "" {
			since, err := time.Parse("2006-01-02", searchSince)
			if err != nil {
				return fmt.Errorf("invalid --updated-since %q: %w", searchSince, err)
			}
			opts = append(opts, models.WithLastUpdated(since))
		}
		if searchLimit > 0 {
			opts = append(opts, models.WithMaxResults(searchLimit))
		}
		issues, err := tracker.SearchIssues(cmd.Context(), models.NewSearchCriteria(opts...))
		if err != nil {
			return err
		}
		return printIssues(issues)
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter URL",
	Short: "Run the query of a saved filter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := newTracker()
		if err != nil {
			return err
		}
		u, err := url.Parse(args[0])
		if err != nil {
			return err
		}
		issues, err := tracker.SearchIssuesByFilter(cmd.Context(), u)
		if err != nil {
			return err
		}
		return printIssues(issues)
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment URL...",
	Short: "Post a comment on one or more issues",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if commentBody == "" {
			return fmt.Errorf("--body is required")
		}
		tracker, err := newTracker()
		if err != nil {
			return err
		}
		urls, err := parseURLs(args)
		if err != nil {
			return err
		}
		issues := make([]*models.Issue, 0, len(urls))
		for _, u := range urls {
			issues = append(issues, &models.Issue{URL: u})
		}
		comment := models.Comment{Body: commentBody, IsPrivate: commentPrivate}
		if !tracker.AddCommentToIssues(cmd.Context(), issues, comment) {
			return fmt.Errorf("some comments could not be posted")
		}
		fmt.Printf("Commented on %d issues\n", len(issues))
		return nil
	},
}

var transitionCmd = &cobra.Command{
	Use:   "transition URL",
	Short: "Move an issue to another status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if transitionStatus == "" {
			return fmt.Errorf("--status is required")
		}
		tracker, err := newTracker()
		if err != nil {
			return err
		}
		u, err := url.Parse(args[0])
		if err != nil {
			return err
		}
		issue, err := tracker.GetIssue(cmd.Context(), u)
		if err != nil {
			return err
		}
		issue.Status = models.IssueStatus(strings.ToUpper(transitionStatus))
		ops, err := tracker.UpdateIssue(cmd.Context(), issue)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(ops)
		}
		if ops.Transition == "" {
			fmt.Printf("%s: no transition applied\n", issue.TrackerID)
			return nil
		}
		fmt.Printf("%s: applied %q\n", issue.TrackerID, ops.Transition)
		return nil
	},
}

var linkCmd = &cobra.Command{
	Use:   "link FROM_URL TO_URL",
	Short: "Link two issues",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := newTracker()
		if err != nil {
			return err
		}
		urls, err := parseURLs(args)
		if err != nil {
			return err
		}
		from, to := &models.Issue{URL: urls[0]}, &models.Issue{URL: urls[1]}
		if err := tracker.LinkIssues(cmd.Context(), from, to, linkType); err != nil {
			return err
		}
		fmt.Printf("Linked %s -> %s (%s)\n", args[0], args[1], linkType)
		return nil
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions PROJECT",
	Short: "List the versions of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := newTracker()
		if err != nil {
			return err
		}
		versions, err := tracker.VersionsByProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(versions)
		}
		for _, v := range versions {
			released := ""
			if v.Released {
				released = "released"
			}
			fmt.Printf("%-24s %s\n", v.Name, released)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchProduct, "product", "", "Project key")
	searchCmd.Flags().StringVar(&searchRelease, "release", "", "Fix version")
	searchCmd.Flags().StringVar(&searchMilestone, "milestone", "", "Target milestone")
	searchCmd.Flags().StringVar(&searchStatus, "status", "", "Status (NEW, ASSIGNED, POST, MODIFIED, ON_QA, VERIFIED, CLOSED)")
	searchCmd.Flags().StringVar(&searchAssignee, "assignee", "", "Assignee user name")
	searchCmd.Flags().StringVar(&searchComponent, "component", "", "Component name")
	searchCmd.Flags().StringVar(&searchSince, "updated-since", "", "Only issues updated on or after this date (YYYY-MM-DD)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum number of issues (default from config)")

	commentCmd.Flags().StringVarP(&commentBody, "body", "b", "", "Comment text")
	commentCmd.Flags().BoolVar(&commentPrivate, "private", false, "Request a private comment (posted publicly on Jira)")

	transitionCmd.Flags().StringVarP(&transitionStatus, "status", "s", "", "Target status")
	linkCmd.Flags().StringVar(&linkType, "type", "Blocks", "Link type name")

	rootCmd.AddCommand(getCmd, searchCmd, filterCmd, commentCmd, transitionCmd, linkCmd, versionsCmd)
}

func parseURLs(args []string) ([]*url.URL, error) {
	urls := make([]*url.URL, 0, len(args))
	for _, a := range args {
		u, err := url.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", a, err)
		}
		urls = append(urls, u)
	}
	return urls, nil
}
