package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/cascade/internal/config"
	"github.com/ShayCichocki/cascade/internal/review"
	"github.com/ShayCichocki/cascade/pkg/models"
)

var (
	reviewsDir      string
	reviewsReviewer string
	reviewsComment  string
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Manage pending human reviews",
	Long: `Manage the file-based human review queue.

Cascades that reach the human tier write a request file to the queue
and block until a decision file appears. This command lists open
requests and records decisions.

Examples:
  cascade reviews list
  cascade reviews approve rv-1a2b3c4d --comment "looks right"
  cascade reviews reject rv-1a2b3c4d --comment "wrong account"`,
}

var reviewsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open review requests",
	RunE:  runReviewsList,
}

var reviewsApproveCmd = &cobra.Command{
	Use:   "approve <review-id>",
	Short: "Approve a pending review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decideReview(args[0], models.ReviewStatusApproved)
	},
}

var reviewsRejectCmd = &cobra.Command{
	Use:   "reject <review-id>",
	Short: "Reject a pending review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decideReview(args[0], models.ReviewStatusRejected)
	},
}

func init() {
	reviewsCmd.PersistentFlags().StringVar(&reviewsDir, "dir", "", "Review queue directory (defaults to config)")
	reviewsApproveCmd.Flags().StringVar(&reviewsReviewer, "reviewer", "", "Reviewer identity recorded on the decision")
	reviewsApproveCmd.Flags().StringVar(&reviewsComment, "comment", "", "Decision comment")
	reviewsRejectCmd.Flags().StringVar(&reviewsReviewer, "reviewer", "", "Reviewer identity recorded on the decision")
	reviewsRejectCmd.Flags().StringVar(&reviewsComment, "comment", "", "Decision comment")

	reviewsCmd.AddCommand(reviewsListCmd)
	reviewsCmd.AddCommand(reviewsApproveCmd)
	reviewsCmd.AddCommand(reviewsRejectCmd)
}

// reviewQueueDir resolves the review queue root from the flag or config.
func reviewQueueDir() (string, error) {
	if reviewsDir != "" {
		return reviewsDir, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.Review.Dir, nil
}

func runReviewsList(cmd *cobra.Command, args []string) error {
	dir, err := reviewQueueDir()
	if err != nil {
		return err
	}

	reqs, err := review.ListPending(dir)
	if err != nil {
		return fmt.Errorf("list pending reviews: %w", err)
	}

	if len(reqs) == 0 {
		fmt.Println("No pending reviews.")
		return nil
	}

	fmt.Printf("Pending reviews in %s:\n\n", dir)
	for _, req := range reqs {
		fmt.Printf("  %s  %s\n", color.YellowString(req.ID), req.Cascade)
		if req.Summary != "" {
			fmt.Printf("      %s\n", req.Summary)
		}
		for _, e := range req.PreviousErrors {
			fmt.Printf("      %s %s: %s\n", color.RedString("✗"), e.Tier, e.Message)
		}
		if !req.CreatedAt.IsZero() {
			fmt.Printf("      waiting since %s\n", req.CreatedAt.Format(time.RFC3339))
		}
		fmt.Println()
	}
	return nil
}

func decideReview(id string, status models.ReviewStatus) error {
	dir, err := reviewQueueDir()
	if err != nil {
		return err
	}

	if err := review.Decide(dir, id, status, reviewsReviewer, reviewsComment); err != nil {
		return fmt.Errorf("record decision: %w", err)
	}

	if status == models.ReviewStatusApproved {
		fmt.Printf("%s Approved %s\n", color.GreenString("✓"), id)
	} else {
		fmt.Printf("%s Rejected %s\n", color.RedString("✗"), id)
	}
	return nil
}
