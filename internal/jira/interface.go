package jira

import (
	"context"

	"github.com/tuannvm/jira-tracker/internal/models"
)

// FieldUpdate is a field-update payload keyed by tracker field key.
type FieldUpdate map[string]interface{}

// Keys returns the field keys in the payload.
func (u FieldUpdate) Keys() []string {
	keys := make([]string, 0, len(u))
	for k := range u {
		keys = append(keys, k)
	}
	return keys
}

// NewIssue is a create-issue payload. Extra holds further fields already in
// the tracker's wire shape, keyed by field key.
type NewIssue struct {
	ProjectKey  string
	IssueType   string
	Summary     string
	Description string
	Labels      []string
	Extra       map[string]interface{}
}

// IssueLink describes a link between two issues.
type IssueLink struct {
	InwardKey  string
	OutwardKey string
	Type       string
}

// Transport defines the remote operations the tracker relies on. Every call
// blocks until the tracker answers and may fail with a transport error.
type Transport interface {
	Search(ctx context.Context, query Query, fields []string, startAt, maxResults int) (*models.SearchResultPage, error)
	GetIssue(ctx context.Context, key string) (*models.Issue, error)
	UpdateIssue(ctx context.Context, key string, update FieldUpdate) error
	ListTransitions(ctx context.Context, key string) ([]models.Transition, error)
	ApplyTransition(ctx context.Context, key, transitionID string) error
	AddComment(ctx context.Context, key, body string) error
	CreateIssue(ctx context.Context, issue NewIssue) (string, error)
	GetFilterJQL(ctx context.Context, filterID int) (Query, error)
	LinkIssues(ctx context.Context, link IssueLink) error
	ProjectVersions(ctx context.Context, project string) ([]models.Version, error)
}
