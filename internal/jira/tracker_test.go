package jira

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannvm/jira-tracker/internal/models"
)

const testBaseURL = "https://issues.redhat.com"

func newTestTracker(t *testing.T, fake *fakeTransport) *IssueTracker {
	t.Helper()
	tracker, err := NewIssueTracker(fake, Options{
		BaseURL:           testBaseURL,
		PageSize:          20,
		DefaultIssueLimit: 200,
		MaxConcurrent:     3,
		ReleaseProject:    "JBEAP",
	})
	require.NoError(t, err)
	return tracker
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNewIssueTrackerInvalidURL(t *testing.T) {
	_, err := NewIssueTracker(newFakeTransport(), Options{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestGetIssue(t *testing.T) {
	fake := newFakeTransport()
	fake.issues["WFLY-1"] = &models.Issue{TrackerID: "WFLY-1", Summary: "hello"}
	tracker := newTestTracker(t, fake)

	t.Run("found", func(t *testing.T) {
		u := mustURL(t, testBaseURL+"/browse/WFLY-1")
		issue, err := tracker.GetIssue(context.Background(), u)
		require.NoError(t, err)
		assert.Equal(t, "hello", issue.Summary)
		assert.Equal(t, u, issue.URL)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := tracker.GetIssue(context.Background(), mustURL(t, testBaseURL+"/browse/WFLY-404"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("other host", func(t *testing.T) {
		_, err := tracker.GetIssue(context.Background(), mustURL(t, "https://bugzilla.redhat.com/browse/WFLY-1"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("transient", func(t *testing.T) {
		failing := newFakeTransport()
		failing.getErr = errBoom
		_, err := newTestTracker(t, failing).GetIssue(context.Background(), mustURL(t, testBaseURL+"/browse/WFLY-1"))
		var transient *TransientError
		assert.True(t, errors.As(err, &transient))
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestGetIssues(t *testing.T) {
	t.Run("single query for all keys", func(t *testing.T) {
		fake := newFakeTransport()
		fake.total = 2
		tracker := newTestTracker(t, fake)

		urls := []*url.URL{
			mustURL(t, testBaseURL+"/browse/WFLY-2"),
			mustURL(t, testBaseURL+"/rest/api/2/issue/WFLY-1"),
			mustURL(t, testBaseURL+"/secure/Dashboard.jspa"),
			mustURL(t, "https://elsewhere.example.com/browse/X-1"),
		}
		issues, err := tracker.GetIssues(context.Background(), urls)
		require.NoError(t, err)
		assert.Len(t, issues, 2)
		require.Len(t, fake.searchCalls, 1)
		assert.Equal(t, Query(`key in ("WFLY-1", "WFLY-2")`), fake.searchCalls[0].Query)
		assert.Equal(t, 2, fake.searchCalls[0].MaxResults)
	})

	t.Run("nothing to fetch", func(t *testing.T) {
		fake := newFakeTransport()
		issues, err := newTestTracker(t, fake).GetIssues(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, issues)
		assert.Empty(t, fake.searchCalls)
	})
}

func TestSearchIssues(t *testing.T) {
	fake := newFakeTransport()
	fake.total = 1000
	tracker := newTestTracker(t, fake)

	issues, err := tracker.SearchIssues(context.Background(), models.NewSearchCriteria(models.WithProduct("EAP")))
	require.NoError(t, err)
	assert.Len(t, issues, 200)
	assert.Equal(t, Query(`project = "EAP"`), fake.searchCalls[0].Query)

	fake.searchCalls = nil
	issues, err = tracker.SearchIssues(context.Background(), models.NewSearchCriteria(models.WithProduct("EAP"), models.WithMaxResults(30)))
	require.NoError(t, err)
	assert.Len(t, issues, 30)
	assert.Len(t, fake.searchCalls, 2)
}

func TestSearchIssuesByFilter(t *testing.T) {
	fake := newFakeTransport()
	fake.total = 3
	fake.filters[12322199] = `project = "JBEAP" AND status = "New"`
	tracker := newTestTracker(t, fake)

	for _, raw := range []string{
		testBaseURL + "/rest/api/latest/filter/12322199",
		testBaseURL + "/issues/?filter=12322199",
	} {
		fake.searchCalls = nil
		issues, err := tracker.SearchIssuesByFilter(context.Background(), mustURL(t, raw))
		require.NoError(t, err, raw)
		assert.Len(t, issues, 3)
		assert.Equal(t, Query(`project = "JBEAP" AND status = "New"`), fake.searchCalls[0].Query)
	}

	_, err := tracker.SearchIssuesByFilter(context.Background(), mustURL(t, testBaseURL+"/rest/api/latest/filter/1"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tracker.SearchIssuesByFilter(context.Background(), mustURL(t, testBaseURL+"/rest/api/latest/filter/abc"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetIssuesAddedToVersion(t *testing.T) {
	fake := newFakeTransport()
	fake.total = 45
	tracker := newTestTracker(t, fake)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	issues, err := tracker.GetIssuesAddedToVersion(context.Background(), "JBEAP", " 7.4.1.GA ", from, to)
	require.NoError(t, err)
	assert.Len(t, issues, 45)
	assert.Equal(t, []int{0, 20, 40}, starts(fake.searchCalls))
	assert.Equal(t, MinimalFields, fake.searchCalls[0].Fields)
	assert.Contains(t, string(fake.searchCalls[0].Query), `CHANGED TO "7.4.1.GA"`)
}

func TestUpdateIssue(t *testing.T) {
	fake := newFakeTransport()
	fake.issues["WFLY-1"] = baseIssue()
	fake.transitions = []models.Transition{{ID: "11", Name: "Start Progress"}}
	tracker := newTestTracker(t, fake)

	desired := baseIssue()
	desired.URL = mustURL(t, testBaseURL+"/browse/WFLY-1")
	desired.TrackerID = ""
	desired.Status = models.StatusAssigned

	ops, err := tracker.UpdateIssue(context.Background(), desired)
	require.NoError(t, err)
	assert.Equal(t, []string{"WFLY-1"}, fake.getCalls)
	assert.Equal(t, "Start Progress", ops.Transition)

	desired.URL = mustURL(t, "https://elsewhere.example.com/browse/WFLY-1")
	_, err = tracker.UpdateIssue(context.Background(), desired)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateIssue(t *testing.T) {
	fake := newFakeTransport()
	tracker := newTestTracker(t, fake)

	issue, err := tracker.CreateIssue(context.Background(), models.IssueCreationDetails{
		TrackerURL:             mustURL(t, testBaseURL),
		ProjectKey:             "JBEAP",
		IssueType:              "Bug",
		Description:            "broken",
		SecuritySensitiveIssue: true,
		SecurityLevel:          "Red Hat Internal",
	})
	require.NoError(t, err)
	assert.Equal(t, "JBEAP-100", issue.TrackerID)
	assert.Equal(t, testBaseURL+"/browse/JBEAP-100", issue.URL.String())

	require.Len(t, fake.created, 1)
	created := fake.created[0]
	assert.Equal(t, "broken", created.Summary)
	assert.Equal(t, []map[string]string{{"id": "17611"}}, created.Extra[FieldSecuritySensitive])
	assert.Equal(t, map[string]string{"id": "11696"}, created.Extra[FieldSecurity])

	_, err = tracker.CreateIssue(context.Background(), models.IssueCreationDetails{
		TrackerURL:    mustURL(t, testBaseURL),
		ProjectKey:    "JBEAP",
		IssueType:     "Bug",
		Description:   "broken",
		SecurityLevel: "Top Secret",
	})
	assert.Error(t, err)

	_, err = tracker.CreateIssue(context.Background(), models.IssueCreationDetails{ProjectKey: "JBEAP"})
	assert.Error(t, err)
}

func TestCreatedIssueURL(t *testing.T) {
	assert.Equal(t, "https://h/browse/K-1", createdIssueURL(mustURL(t, "https://h"), "K-1").String())
	assert.Equal(t, "https://h/jira/browse/K-1", createdIssueURL(mustURL(t, "https://h/jira/"), "K-1").String())
	assert.Equal(t, "https://h/browse/K-1", createdIssueURL(mustURL(t, "https://h/browse"), "K-1").String())
}

func TestAddComments(t *testing.T) {
	fake := newFakeTransport()
	tracker := newTestTracker(t, fake)

	local := &models.Issue{URL: mustURL(t, testBaseURL+"/browse/WFLY-1")}
	remote := &models.Issue{URL: mustURL(t, "https://elsewhere.example.com/browse/WFLY-2")}

	ok := tracker.AddCommentToIssues(context.Background(), []*models.Issue{local, remote}, models.Comment{Body: "ping"})
	assert.True(t, ok)
	assert.Equal(t, 1, fake.commentAttempts)
	assert.Equal(t, []string{"ping"}, fake.comments["WFLY-1"])

	assert.ErrorIs(t, tracker.AddComment(context.Background(), remote, models.Comment{Body: "x"}), ErrNotFound)
}

func TestLinkIssues(t *testing.T) {
	fake := newFakeTransport()
	tracker := newTestTracker(t, fake)

	from := &models.Issue{TrackerID: "JBEAP-1"}
	to := &models.Issue{URL: mustURL(t, testBaseURL+"/browse/WFLY-2")}
	require.NoError(t, tracker.LinkIssues(context.Background(), from, to, "Blocks"))
	assert.Equal(t, []IssueLink{{InwardKey: "JBEAP-1", OutwardKey: "WFLY-2", Type: "Blocks"}}, fake.links)
}

func TestIsCPReleased(t *testing.T) {
	fake := newFakeTransport()
	fake.versions["JBEAP"] = []models.Version{
		{Name: "7.4.1.GA", Released: true},
		{Name: "7.4.2.GA", Released: false},
	}
	tracker := newTestTracker(t, fake)

	tests := map[string]bool{
		"7.4.1.GA":       true,
		"7.4.2.GA":       false,
		"7.4.3.GA":       false,
		"7.4.1.CR1":      false,
		"7.4.1.GA-extra": false,
	}
	for version, want := range tests {
		got, err := tracker.IsCPReleased(context.Background(), version)
		require.NoError(t, err, version)
		assert.Equal(t, want, got, version)
	}
}
