package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannvm/jira-tracker/internal/config"
	"github.com/tuannvm/jira-tracker/internal/jira"
	"github.com/tuannvm/jira-tracker/internal/models"
)

type fakeService struct {
	mu        sync.Mutex
	issues    map[string]*models.Issue
	criteria  []models.SearchCriteria
	updated   []*models.Issue
	commented []*models.Issue
	updateErr error
	commentOK bool
}

func newFakeService() *fakeService {
	return &fakeService{issues: map[string]*models.Issue{}, commentOK: true}
}

func (f *fakeService) GetIssue(_ context.Context, u *url.URL) (*models.Issue, error) {
	key, err := jira.ResolveKey(u)
	if err != nil {
		return nil, err
	}
	issue, ok := f.issues[key]
	if !ok {
		return nil, jira.ErrNotFound
	}
	cp := *issue
	cp.URL = u
	return &cp, nil
}

func (f *fakeService) GetIssues(ctx context.Context, urls []*url.URL) ([]*models.Issue, error) {
	var out []*models.Issue
	for _, u := range urls {
		if issue, err := f.GetIssue(ctx, u); err == nil {
			out = append(out, issue)
		}
	}
	return out, nil
}

func (f *fakeService) SearchIssues(_ context.Context, sc models.SearchCriteria) ([]*models.Issue, error) {
	f.criteria = append(f.criteria, sc)
	return []*models.Issue{{TrackerID: "JBEAP-1"}}, nil
}

func (f *fakeService) UpdateIssue(_ context.Context, issue *models.Issue) (*jira.AppliedOps, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updated = append(f.updated, issue)
	return &jira.AppliedOps{}, nil
}

func (f *fakeService) AddCommentToIssues(_ context.Context, issues []*models.Issue, _ models.Comment) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commented = append(f.commented, issues...)
	return f.commentOK
}

func testConfig() *config.Config {
	return &config.Config{
		AgentName:   config.TrackerAgentName,
		JiraBaseURL: "https://issues.redhat.com",
		AuthType:    "apikey",
		APIKey:      "s3cret",
	}
}

func TestHandleGet(t *testing.T) {
	svc := newFakeService()
	svc.issues["WFLY-1"] = &models.Issue{TrackerID: "WFLY-1", Summary: "one"}
	agent := NewTrackerAgent(testConfig(), svc)

	resp, err := agent.Handle(context.Background(), &models.TrackerRequest{
		Action: ActionGet,
		URLs:   []string{"https://issues.redhat.com/browse/WFLY-1", "https://issues.redhat.com/browse/WFLY-2"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Succeeded)
	assert.Len(t, resp.Issues, 1)
	assert.Equal(t, "Fetched 1 of 2 issues", resp.Message)

	_, err = agent.Handle(context.Background(), &models.TrackerRequest{Action: ActionGet})
	assert.Error(t, err)
}

func TestHandleSearch(t *testing.T) {
	svc := newFakeService()
	agent := NewTrackerAgent(testConfig(), svc)

	resp, err := agent.Handle(context.Background(), &models.TrackerRequest{
		Action:     ActionSearch,
		Product:    "JBEAP",
		Release:    "7.4.1.GA",
		Status:     models.StatusOnQA,
		MaxResults: 5,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Issues, 1)

	require.Len(t, svc.criteria, 1)
	sc := svc.criteria[0]
	product, _ := sc.Product()
	release, _ := sc.Release()
	status, _ := sc.Status()
	limit, _ := sc.MaxResults()
	assert.Equal(t, "JBEAP", product)
	assert.Equal(t, "7.4.1.GA", release.Version)
	assert.Equal(t, models.StatusOnQA, status)
	assert.Equal(t, 5, limit)
}

func TestHandleComment(t *testing.T) {
	svc := newFakeService()
	agent := NewTrackerAgent(testConfig(), svc)

	resp, err := agent.Handle(context.Background(), &models.TrackerRequest{
		Action:  ActionComment,
		URLs:    []string{"https://issues.redhat.com/browse/WFLY-1", "https://issues.redhat.com/browse/WFLY-2"},
		Comment: &models.Comment{Body: "ping"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Succeeded)
	assert.Len(t, svc.commented, 2)

	svc.commentOK = false
	resp, err = agent.Handle(context.Background(), &models.TrackerRequest{
		Action:  ActionComment,
		URLs:    []string{"https://issues.redhat.com/browse/WFLY-1"},
		Comment: &models.Comment{Body: "ping"},
	})
	require.NoError(t, err)
	assert.False(t, resp.Succeeded)

	_, err = agent.Handle(context.Background(), &models.TrackerRequest{Action: ActionComment, URLs: []string{"https://issues.redhat.com/browse/WFLY-1"}})
	assert.Error(t, err)
}

func TestHandleUpdate(t *testing.T) {
	svc := newFakeService()
	svc.issues["WFLY-1"] = &models.Issue{TrackerID: "WFLY-1", Status: models.StatusNew}
	agent := NewTrackerAgent(testConfig(), svc)

	resp, err := agent.Handle(context.Background(), &models.TrackerRequest{
		Action: ActionUpdate,
		URLs:   []string{"https://issues.redhat.com/browse/WFLY-1", "https://issues.redhat.com/browse/WFLY-404"},
		Status: models.StatusAssigned,
	})
	require.NoError(t, err)
	assert.False(t, resp.Succeeded)
	assert.Contains(t, resp.Message, "Updated 1 of 2 issues")
	require.Len(t, svc.updated, 1)
	assert.Equal(t, models.StatusAssigned, svc.updated[0].Status)

	_, err = agent.Handle(context.Background(), &models.TrackerRequest{Action: ActionUpdate, URLs: []string{"https://issues.redhat.com/browse/WFLY-1"}})
	assert.Error(t, err)
}

func TestHandleUnknownAction(t *testing.T) {
	_, err := NewTrackerAgent(testConfig(), newFakeService()).Handle(context.Background(), &models.TrackerRequest{Action: "delete"})
	assert.Error(t, err)
}

const webhookBody = `{
  "timestamp": 1525698237764,
  "webhookEvent": "jira:issue_updated",
  "issue": {"self": "https://issues.redhat.com/rest/api/2/issue/WFLY-1", "key": "WFLY-1"},
  "user": {"name": "brollins"}
}`

func TestWebhookRoutes(t *testing.T) {
	svc := newFakeService()
	svc.issues["WFLY-1"] = &models.Issue{TrackerID: "WFLY-1", Summary: "one"}
	handler, err := NewTrackerAgent(testConfig(), svc).Routes()
	require.NoError(t, err)

	post := func(body, apiKey, contentType string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
		if apiKey != "" {
			req.Header.Set("X-API-Key", apiKey)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("unauthenticated", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, post(webhookBody, "", "application/json").Code)
	})

	t.Run("re-reads the issue", func(t *testing.T) {
		rec := post(webhookBody, "s3cret", "application/json")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "success", resp["status"])
		issue, ok := resp["issue"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "one", issue["summary"])
	})

	t.Run("unknown issue", func(t *testing.T) {
		body := strings.ReplaceAll(webhookBody, "WFLY-1", "WFLY-9")
		assert.Equal(t, http.StatusNotFound, post(body, "s3cret", "application/json").Code)
	})

	t.Run("bad content type", func(t *testing.T) {
		assert.Equal(t, http.StatusUnsupportedMediaType, post(webhookBody, "s3cret", "text/plain").Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, post("{", "s3cret", "application/json").Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
		req.Header.Set("X-API-Key", "s3cret")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("metrics and health", func(t *testing.T) {
		for _, path := range []string{"/metrics", "/healthz"} {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code, path)
		}
	})
}

func TestEventIssueURLFallback(t *testing.T) {
	agent := NewTrackerAgent(testConfig(), newFakeService())
	u := agent.eventIssueURL(&jira.IssueEvent{Key: "WFLY-3"})
	assert.Equal(t, "https://issues.redhat.com/browse/WFLY-3", u.String())
}

func TestTrackerSkills(t *testing.T) {
	skills := trackerSkills()
	require.Len(t, skills, 4)
	for _, s := range skills {
		require.NotEmpty(t, s.Examples)
		var req models.TrackerRequest
		require.NoError(t, json.Unmarshal([]byte(s.Examples[0]), &req))
		assert.Equal(t, s.ID, req.Action)
	}
}
