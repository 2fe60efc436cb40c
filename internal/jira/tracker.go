package jira

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tuannvm/jira-tracker/internal/config"
	log "github.com/tuannvm/jira-tracker/internal/logging"
	"github.com/tuannvm/jira-tracker/internal/models"
)

// releaseScanPageSize is the page size used when scanning issues added to a version.
const releaseScanPageSize = 20

// cpVersionPattern accepts GA versions such as 7.1.2.GA only.
var cpVersionPattern = regexp.MustCompile(`^\d\.\d\.\d+\.GA$`)

// Options configures an IssueTracker.
type Options struct {
	BaseURL           string
	PageSize          int
	DefaultIssueLimit int
	MaxConcurrent     int
	ReleaseProject    string
}

// IssueTracker exposes the abstract tracker operations on top of a Transport.
type IssueTracker struct {
	transport         Transport
	host              string
	queries           QueryBuilder
	paginator         *Paginator
	releaseScanner    *Paginator
	reconciler        *Reconciler
	comments          *CommentDispatcher
	defaultIssueLimit int
	releaseProject    string
}

// NewIssueTracker wires the tracker components around transport.
func NewIssueTracker(transport Transport, opts Options) (*IssueTracker, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid tracker URL %q", opts.BaseURL)
	}
	return &IssueTracker{
		transport:         transport,
		host:              base.Host,
		paginator:         NewPaginator(transport, opts.PageSize),
		releaseScanner:    NewPaginator(transport, releaseScanPageSize),
		reconciler:        NewReconciler(transport),
		comments:          NewCommentDispatcher(transport, opts.MaxConcurrent),
		defaultIssueLimit: opts.DefaultIssueLimit,
		releaseProject:    opts.ReleaseProject,
	}, nil
}

// NewIssueTrackerFromConfig builds a tracker backed by the Jira REST API.
func NewIssueTrackerFromConfig(cfg *config.Config) (*IssueTracker, error) {
	transport, err := NewAtlassianTransport(cfg)
	if err != nil {
		return nil, err
	}
	return NewIssueTracker(transport, Options{
		BaseURL:           cfg.JiraBaseURL,
		PageSize:          cfg.PageSize,
		DefaultIssueLimit: cfg.DefaultIssueLimit,
		MaxConcurrent:     cfg.MaxConcurrent,
		ReleaseProject:    cfg.ReleaseProject,
	})
}

// GetIssue fetches the issue a browse or API URL points at.
func (t *IssueTracker) GetIssue(ctx context.Context, u *url.URL) (*models.Issue, error) {
	key, err := ResolveKey(u)
	if err != nil {
		return nil, err
	}
	if err := t.checkHost(u); err != nil {
		return nil, err
	}
	issue, err := t.transport.GetIssue(ctx, key)
	if err != nil {
		return nil, remoteErr("get-issue", err)
	}
	issue.URL = u
	return issue, nil
}

// GetIssues fetches many issues in one search. URLs on other hosts or that do
// not resolve to a key are skipped.
func (t *IssueTracker) GetIssues(ctx context.Context, urls []*url.URL) ([]*models.Issue, error) {
	var keys []string
	for _, u := range t.filterURLsByHost(urls) {
		key, err := ResolveKey(u)
		if err != nil {
			log.Warnf("Unable to extract trackerId from: %s", u)
			continue
		}
		keys = append(keys, key)
	}
	query := t.queries.MultiIssueQuery(keys)
	if query == MatchNothing {
		return []*models.Issue{}, nil
	}
	return t.paginator.FetchAll(ctx, query, AllFields, len(keys))
}

// SearchIssues returns the issues matching sc, capped at sc's max results or
// the configured default limit.
func (t *IssueTracker) SearchIssues(ctx context.Context, sc models.SearchCriteria) ([]*models.Issue, error) {
	if sc.IsEmpty() {
		log.Warnf("Searching without any filter; results are only bounded by the issue limit")
	}
	maxResults, ok := sc.MaxResults()
	if !ok {
		maxResults = t.defaultIssueLimit
	}
	return t.paginator.FetchAll(ctx, t.queries.SearchQuery(sc), AllFields, maxResults)
}

// SearchIssuesByFilter runs the JQL of a saved filter, e.g.
// https://issues.redhat.com/rest/api/latest/filter/12322199 or .../issues/?filter=12322199.
func (t *IssueTracker) SearchIssuesByFilter(ctx context.Context, filterURL *url.URL) ([]*models.Issue, error) {
	id, err := filterID(filterURL)
	if err != nil {
		return nil, err
	}
	jql, err := t.transport.GetFilterJQL(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("unable to retrieve filter with url %s: %w", filterURL, err)
		}
		return nil, remoteErr("get-filter", err)
	}
	return t.paginator.FetchAll(ctx, jql, AllFields, t.defaultIssueLimit)
}

// GetIssuesForRelease returns the issues of project targeted at version.
func (t *IssueTracker) GetIssuesForRelease(ctx context.Context, project, version string) ([]*models.Issue, error) {
	sc := models.NewSearchCriteria(
		models.WithProduct(project),
		models.WithRelease(models.Release{Version: strings.TrimSpace(version)}),
		models.WithMaxResults(t.defaultIssueLimit),
	)
	return t.SearchIssues(ctx, sc)
}

// GetIssuesAddedToVersion returns the issues whose fix version was set to
// version between from and to, with a reduced field set.
func (t *IssueTracker) GetIssuesAddedToVersion(ctx context.Context, project, version string, from, to time.Time) ([]*models.Issue, error) {
	sc := models.NewSearchCriteria(
		models.WithProduct(project),
		models.WithRelease(models.Release{Version: strings.TrimSpace(version)}),
		models.WithStartDate(from),
		models.WithEndDate(to),
	)
	return t.releaseScanner.FetchAll(ctx, t.queries.DateRangeQuery(sc), MinimalFields, 0)
}

// UpdateIssue reconciles the tracker's copy of issue with issue. Issue type
// and project changes are ignored.
func (t *IssueTracker) UpdateIssue(ctx context.Context, issue *models.Issue) (*AppliedOps, error) {
	if err := t.checkHost(issue.URL); err != nil {
		return nil, err
	}
	key, err := issueKey(issue)
	if err != nil {
		return nil, err
	}
	current, err := t.transport.GetIssue(ctx, key)
	if err != nil {
		return nil, remoteErr("get-issue", err)
	}
	current.URL = issue.URL
	return t.reconciler.Reconcile(ctx, issue, current)
}

// CreateIssue opens a new issue and returns it as read back from the tracker.
func (t *IssueTracker) CreateIssue(ctx context.Context, details models.IssueCreationDetails) (*models.Issue, error) {
	switch {
	case details.TrackerURL == nil:
		return nil, errors.New("tracker URL is required")
	case details.ProjectKey == "":
		return nil, errors.New("project key is required")
	case details.IssueType == "":
		return nil, errors.New("issue type is required")
	case details.Description == "":
		return nil, errors.New("description is required")
	}

	summary := details.Summary
	if summary == "" {
		summary = details.Description
	}
	newIssue := NewIssue{
		ProjectKey:  details.ProjectKey,
		IssueType:   details.IssueType,
		Summary:     summary,
		Description: details.Description,
		Labels:      details.Labels,
		Extra:       map[string]interface{}{},
	}
	if details.SecuritySensitiveIssue {
		newIssue.Extra[FieldSecuritySensitive] = []map[string]string{{"id": securitySensitiveValueTrue}}
	}
	if details.SecurityLevel != "" {
		id, ok := SecurityLevelID(details.SecurityLevel)
		if !ok {
			return nil, fmt.Errorf("unknown security level %q", details.SecurityLevel)
		}
		newIssue.Extra[FieldSecurity] = map[string]string{"id": id}
	}

	key, err := t.transport.CreateIssue(ctx, newIssue)
	if err != nil {
		return nil, remoteErr("create-issue", err)
	}
	log.Infof("Created issue %s in project %s", key, details.ProjectKey)
	return t.GetIssue(ctx, createdIssueURL(details.TrackerURL, key))
}

// AddComment posts comment on issue.
func (t *IssueTracker) AddComment(ctx context.Context, issue *models.Issue, comment models.Comment) error {
	if err := t.checkHost(issue.URL); err != nil {
		return err
	}
	return t.comments.Post(ctx, issue, comment)
}

// AddComments posts each comment on its issue and reports whether all succeeded.
func (t *IssueTracker) AddComments(ctx context.Context, comments map[*models.Issue]models.Comment) bool {
	targets := make([]CommentTarget, 0, len(comments))
	for issue, comment := range comments {
		if !t.sameHost(issue.URL) {
			log.Warnf("Skipping comment on %s: not hosted on %s", issueLabel(issue), t.host)
			continue
		}
		targets = append(targets, CommentTarget{Issue: issue, Comment: comment})
	}
	return t.comments.PostAll(ctx, targets)
}

// AddCommentToIssues posts the same comment on every issue.
func (t *IssueTracker) AddCommentToIssues(ctx context.Context, issues []*models.Issue, comment models.Comment) bool {
	comments := make(map[*models.Issue]models.Comment, len(issues))
	for _, issue := range issues {
		comments[issue] = comment
	}
	return t.AddComments(ctx, comments)
}

// LinkIssues links from to to with the named link type, e.g. "Blocks".
func (t *IssueTracker) LinkIssues(ctx context.Context, from, to *models.Issue, linkType string) error {
	fromKey, err := issueKey(from)
	if err != nil {
		return err
	}
	toKey, err := issueKey(to)
	if err != nil {
		return err
	}
	if err := t.transport.LinkIssues(ctx, IssueLink{InwardKey: fromKey, OutwardKey: toKey, Type: linkType}); err != nil {
		return remoteErr("link-issues", err)
	}
	return nil
}

// VersionsByProject lists the versions of project.
func (t *IssueTracker) VersionsByProject(ctx context.Context, project string) ([]models.Version, error) {
	versions, err := t.transport.ProjectVersions(ctx, project)
	if err != nil {
		return nil, remoteErr("project-versions", err)
	}
	return versions, nil
}

// IsCPReleased reports whether a GA cumulative patch version (x.y.z.GA) is
// released in the release project. Other version formats are never released.
func (t *IssueTracker) IsCPReleased(ctx context.Context, cpVersion string) (bool, error) {
	if !cpVersionPattern.MatchString(cpVersion) {
		return false, nil
	}
	versions, err := t.VersionsByProject(ctx, t.releaseProject)
	if err != nil {
		return false, err
	}
	for _, v := range versions {
		if v.Name == cpVersion {
			return v.Released, nil
		}
	}
	return false, nil
}

func (t *IssueTracker) sameHost(u *url.URL) bool {
	return u == nil || u.Host == t.host
}

func (t *IssueTracker) checkHost(u *url.URL) error {
	if !t.sameHost(u) {
		return notFoundf("the URL host %q does not match tracker host %q", u.Host, t.host)
	}
	return nil
}

func (t *IssueTracker) filterURLsByHost(urls []*url.URL) []*url.URL {
	out := make([]*url.URL, 0, len(urls))
	for _, u := range urls {
		if u != nil && u.Host == t.host {
			out = append(out, u)
		}
	}
	return out
}

// filterID reads the filter id from a REST filter URL or a ?filter= query.
func filterID(u *url.URL) (int, error) {
	if u == nil {
		return 0, notFoundf("nil filter URL")
	}
	raw := u.Query().Get("filter")
	if raw == "" {
		path := strings.TrimSuffix(u.Path, "/")
		if i := strings.LastIndex(path, "/filter/"); i >= 0 {
			raw = path[i+len("/filter/"):]
		}
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, notFoundf("unable to read filter id from %s", u)
	}
	return id, nil
}

func createdIssueURL(trackerURL *url.URL, key string) *url.URL {
	base := *trackerURL
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	rel := "browse/" + key
	if strings.HasSuffix(base.Path, "/browse/") {
		rel = key
	}
	return base.ResolveReference(&url.URL{Path: rel})
}
