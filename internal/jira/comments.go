package jira

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	log "github.com/tuannvm/jira-tracker/internal/logging"
	"github.com/tuannvm/jira-tracker/internal/models"
)

// CommentTarget pairs an issue with the comment to post on it.
type CommentTarget struct {
	Issue   *models.Issue
	Comment models.Comment
}

// CommentDispatcher posts comments to many issues on a bounded worker pool.
type CommentDispatcher struct {
	transport Transport
	workers   int
}

// NewCommentDispatcher creates a dispatcher running at most workers posts at once.
func NewCommentDispatcher(transport Transport, workers int) *CommentDispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &CommentDispatcher{transport: transport, workers: workers}
}

// Post adds a single comment. Private comments are posted as public ones
// because the tracker has no private comments.
func (d *CommentDispatcher) Post(ctx context.Context, issue *models.Issue, comment models.Comment) error {
	if comment.IsPrivate {
		log.Warnf("Private comments are not supported by the Jira tracker; posting to %s as a public comment", issueLabel(issue))
	}
	key, err := issueKey(issue)
	if err != nil {
		return err
	}
	if err := d.transport.AddComment(ctx, key, comment.Body); err != nil {
		return fmt.Errorf("failed to post comment to %s: %w", key, err)
	}
	return nil
}

// PostAll posts every target concurrently and reports whether all succeeded.
// A failed post is logged and never stops the others.
func (d *CommentDispatcher) PostAll(ctx context.Context, targets []CommentTarget) bool {
	if len(targets) == 0 {
		return true
	}
	batchID := uuid.NewString()
	logger := log.With("batch", batchID)
	logger.Debugf("Dispatching %d comments with %d workers", len(targets), d.workers)

	results := make(chan bool, len(targets))
	var g errgroup.Group
	g.SetLimit(d.workers)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			err := d.Post(ctx, target.Issue, target.Comment)
			if err != nil {
				logger.Errorf("Comment on %s failed: %v", issueLabel(target.Issue), err)
				commentsPosted.WithLabelValues("failure").Inc()
			} else {
				commentsPosted.WithLabelValues("success").Inc()
			}
			results <- err == nil
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	succeeded := true
	for ok := range results {
		succeeded = succeeded && ok
	}
	logger.Debugf("Comment batch finished, all succeeded: %v", succeeded)
	return succeeded
}

// issueKey prefers the tracker id and falls back to resolving the URL.
func issueKey(issue *models.Issue) (string, error) {
	if issue == nil {
		return "", notFoundf("nil issue")
	}
	if issue.TrackerID != "" {
		return issue.TrackerID, nil
	}
	return ResolveKey(issue.URL)
}

func issueLabel(issue *models.Issue) string {
	if issue == nil {
		return "<nil>"
	}
	if issue.URL != nil {
		return issue.URL.String()
	}
	return issue.TrackerID
}
