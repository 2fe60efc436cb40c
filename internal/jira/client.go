package jira

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	v2 "github.com/ctreminiom/go-atlassian/v2/jira/v2"
	atlassian "github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/tuannvm/jira-tracker/internal/config"
	log "github.com/tuannvm/jira-tracker/internal/logging"
	"github.com/tuannvm/jira-tracker/internal/models"
)

const userAgent = "jira-tracker/1.0"

// AtlassianTransport implements Transport on the Jira REST API v2 through
// go-atlassian. Reads are retried with exponential backoff on transient
// failures; writes are attempted once.
type AtlassianTransport struct {
	client          *v2.Client
	baseURL         string
	limiter         *rate.Limiter
	retryMaxElapsed time.Duration
}

// NewAtlassianTransport creates a transport authenticated from cfg. Without a
// username the API token is sent as a bearer personal access token.
func NewAtlassianTransport(cfg *config.Config) (*AtlassianTransport, error) {
	httpClient := &http.Client{
		Timeout: time.Second * 30,
	}
	client, err := v2.New(httpClient, cfg.JiraBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jira client: %w", err)
	}
	if cfg.JiraUsername == "" {
		client.Auth.SetBearerToken(cfg.JiraAPIToken)
	} else {
		client.Auth.SetBasicAuth(cfg.JiraUsername, cfg.JiraAPIToken)
	}
	client.Auth.SetUserAgent(userAgent)

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &AtlassianTransport{
		client:          client,
		baseURL:         cfg.JiraBaseURL,
		limiter:         rate.NewLimiter(limit, 1),
		retryMaxElapsed: cfg.RetryMaxElapsed,
	}, nil
}

// Search runs one page of a JQL search.
func (t *AtlassianTransport) Search(ctx context.Context, query Query, fields []string, startAt, maxResults int) (*models.SearchResultPage, error) {
	var result *atlassian.IssueSearchSchemeV2
	var raw []gjson.Result
	err := t.call(ctx, "search", true, func() (*atlassian.ResponseScheme, error) {
		res, resp, err := t.client.Issue.Search.Post(ctx, string(query), fields, nil, startAt, maxResults, "")
		if err == nil {
			result = res
			raw = gjson.GetBytes(resp.Bytes.Bytes(), "issues").Array()
		}
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	page := &models.SearchResultPage{Total: result.Total}
	for i, issue := range result.Issues {
		var fields gjson.Result
		if i < len(raw) {
			fields = raw[i].Get("fields")
		}
		page.Issues = append(page.Issues, issueFromScheme(t.baseURL, issue, fields))
	}
	return page, nil
}

// GetIssue fetches a single issue by key.
func (t *AtlassianTransport) GetIssue(ctx context.Context, key string) (*models.Issue, error) {
	var issue *atlassian.IssueSchemeV2
	var fields gjson.Result
	err := t.call(ctx, "get-issue", true, func() (*atlassian.ResponseScheme, error) {
		res, resp, err := t.client.Issue.Get(ctx, key, nil, []string{"changelog"})
		if err == nil {
			issue = res
			fields = gjson.GetBytes(resp.Bytes.Bytes(), "fields")
		}
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return issueFromScheme(t.baseURL, issue, fields), nil
}

// UpdateIssue writes the payload's fields in a single call.
func (t *AtlassianTransport) UpdateIssue(ctx context.Context, key string, update FieldUpdate) error {
	if len(update) == 0 {
		return nil
	}
	payload := &atlassian.IssueSchemeV2{Fields: &atlassian.IssueFieldsSchemeV2{}}
	custom := &atlassian.CustomFields{}
	for field, value := range update {
		custom.Fields = append(custom.Fields, map[string]interface{}{
			"fields": map[string]interface{}{field: wireValue(field, value)},
		})
	}
	return t.call(ctx, "update-issue", false, func() (*atlassian.ResponseScheme, error) {
		return t.client.Issue.Update(ctx, key, false, payload, custom, nil)
	})
}

// ListTransitions returns the transitions currently available on an issue.
func (t *AtlassianTransport) ListTransitions(ctx context.Context, key string) ([]models.Transition, error) {
	var result *atlassian.IssueTransitionsScheme
	err := t.call(ctx, "list-transitions", true, func() (*atlassian.ResponseScheme, error) {
		res, resp, err := t.client.Issue.Transitions(ctx, key)
		result = res
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	transitions := make([]models.Transition, 0, len(result.Transitions))
	for _, tr := range result.Transitions {
		transitions = append(transitions, models.Transition{ID: tr.ID, Name: tr.Name})
	}
	return transitions, nil
}

// ApplyTransition moves an issue through the given transition.
func (t *AtlassianTransport) ApplyTransition(ctx context.Context, key, transitionID string) error {
	return t.call(ctx, "apply-transition", false, func() (*atlassian.ResponseScheme, error) {
		return t.client.Issue.Move(ctx, key, transitionID, nil)
	})
}

// AddComment posts a public comment.
func (t *AtlassianTransport) AddComment(ctx context.Context, key, body string) error {
	return t.call(ctx, "add-comment", false, func() (*atlassian.ResponseScheme, error) {
		_, resp, err := t.client.Issue.Comment.Add(ctx, key, &atlassian.CommentPayloadSchemeV2{Body: body}, nil)
		return resp, err
	})
}

// CreateIssue opens a new issue and returns its key.
func (t *AtlassianTransport) CreateIssue(ctx context.Context, issue NewIssue) (string, error) {
	payload := &atlassian.IssueSchemeV2{
		Fields: &atlassian.IssueFieldsSchemeV2{
			Project:     &atlassian.ProjectScheme{Key: issue.ProjectKey},
			IssueType:   &atlassian.IssueTypeScheme{Name: issue.IssueType},
			Summary:     issue.Summary,
			Description: issue.Description,
			Labels:      issue.Labels,
		},
	}
	var custom *atlassian.CustomFields
	if len(issue.Extra) > 0 {
		custom = &atlassian.CustomFields{}
		for field, value := range issue.Extra {
			custom.Fields = append(custom.Fields, map[string]interface{}{
				"fields": map[string]interface{}{field: value},
			})
		}
	}

	var key string
	err := t.call(ctx, "create-issue", false, func() (*atlassian.ResponseScheme, error) {
		res, resp, err := t.client.Issue.Create(ctx, payload, custom)
		if err == nil {
			key = res.Key
		}
		return resp, err
	})
	return key, err
}

// GetFilterJQL returns the JQL stored in a saved filter.
func (t *AtlassianTransport) GetFilterJQL(ctx context.Context, filterID int) (Query, error) {
	var jql string
	err := t.call(ctx, "get-filter", true, func() (*atlassian.ResponseScheme, error) {
		res, resp, err := t.client.Filter.Get(ctx, filterID, nil)
		if err == nil {
			jql = res.JQL
		}
		return resp, err
	})
	return Query(jql), err
}

// LinkIssues creates a link of the given type from inward to outward.
func (t *AtlassianTransport) LinkIssues(ctx context.Context, link IssueLink) error {
	payload := &atlassian.LinkPayloadSchemeV2{
		Type:         &atlassian.LinkTypeScheme{Name: link.Type},
		InwardIssue:  &atlassian.LinkedIssueScheme{Key: link.InwardKey},
		OutwardIssue: &atlassian.LinkedIssueScheme{Key: link.OutwardKey},
	}
	return t.call(ctx, "link-issues", false, func() (*atlassian.ResponseScheme, error) {
		return t.client.Issue.Link.Create(ctx, payload)
	})
}

// ProjectVersions lists the versions of a project.
func (t *AtlassianTransport) ProjectVersions(ctx context.Context, project string) ([]models.Version, error) {
	var versions []*atlassian.VersionScheme
	err := t.call(ctx, "project-versions", true, func() (*atlassian.ResponseScheme, error) {
		res, resp, err := t.client.Project.Version.Gets(ctx, project)
		versions = res
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Version, 0, len(versions))
	for _, v := range versions {
		out = append(out, models.Version{ID: v.ID, Name: v.Name, Released: v.Released})
	}
	return out, nil
}

// call rate-limits and instruments one remote operation. A 404 or a missing
// issue key becomes ErrNotFound. When retry is set, transient failures are retried until
// retryMaxElapsed.
func (t *AtlassianTransport) call(ctx context.Context, op string, retry bool, fn func() (*atlassian.ResponseScheme, error)) error {
	start := time.Now()
	attempt := func() error {
		if err := t.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		resp, err := fn()
		if err == nil {
			return nil
		}
		code := 0
		if resp != nil {
			code = resp.Code
		}
		if code == http.StatusNotFound || errors.Is(err, atlassian.ErrNoIssueKeyOrID) {
			return backoff.Permanent(fmt.Errorf("%w: %s: %v", ErrNotFound, op, err))
		}
		if retry && isRetryable(code, err) {
			log.Debugf("Retrying %s after status %d: %v", op, code, err)
			return err
		}
		return backoff.Permanent(err)
	}

	var err error
	if retry {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = t.retryMaxElapsed
		err = backoff.Retry(attempt, backoff.WithContext(bo, ctx))
	} else {
		err = attempt()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	}
	observeCall(op, start, err)
	return err
}

// isRetryable treats throttling, server errors and network failures as
// transient. An error without a response that did not come from the network
// was raised locally by the client and is permanent.
func isRetryable(code int, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case code == http.StatusTooManyRequests, code >= 500:
		return true
	case code == 0:
		var urlErr *url.Error
		var netErr net.Error
		return errors.As(err, &urlErr) || errors.As(err, &netErr)
	}
	return false
}
