package jira

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tuannvm/jira-tracker/internal/models"
)

type searchCall struct {
	Query      Query
	Fields     []string
	StartAt    int
	MaxResults int
}

type updateCall struct {
	Key    string
	Update FieldUpdate
}

// fakeTransport is an in-memory Transport recording every call.
type fakeTransport struct {
	mu sync.Mutex

	// totals returns the Total reported for the n-th search call; defaults to total.
	total       int
	totals      func(call int) int
	searchErr   error
	searchCalls []searchCall

	issues    map[string]*models.Issue
	getCalls  []string
	getErr    error
	updates   []updateCall
	updateErr error

	transitions     []models.Transition
	listCalls       int
	listErr         error
	applied         []string
	applyErr        error
	comments        map[string][]string
	commentAttempts int
	commentErr      map[string]error

	created   []NewIssue
	createErr error
	filters   map[int]Query
	links     []IssueLink
	versions  map[string][]models.Version
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		issues:     map[string]*models.Issue{},
		comments:   map[string][]string{},
		commentErr: map[string]error{},
		filters:    map[int]Query{},
		versions:   map[string][]models.Version{},
	}
}

func (f *fakeTransport) Search(_ context.Context, query Query, fields []string, startAt, maxResults int) (*models.SearchResultPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, searchCall{query, fields, startAt, maxResults})
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	total := f.total
	if f.totals != nil {
		total = f.totals(len(f.searchCalls) - 1)
	}
	page := &models.SearchResultPage{Total: total}
	for i := startAt; i < startAt+maxResults && i < total; i++ {
		page.Issues = append(page.Issues, &models.Issue{TrackerID: issueKeyAt(i)})
	}
	return page, nil
}

func (f *fakeTransport) GetIssue(_ context.Context, key string) (*models.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls = append(f.getCalls, key)
	if f.getErr != nil {
		return nil, f.getErr
	}
	issue, ok := f.issues[key]
	if !ok {
		return nil, notFoundf("issue %s", key)
	}
	cp := *issue
	return &cp, nil
}

func (f *fakeTransport) UpdateIssue(_ context.Context, key string, update FieldUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{key, update})
	return f.updateErr
}

func (f *fakeTransport) ListTransitions(context.Context, string) ([]models.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.transitions, f.listErr
}

func (f *fakeTransport) ApplyTransition(_ context.Context, _, transitionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, transitionID)
	return f.applyErr
}

func (f *fakeTransport) AddComment(_ context.Context, key, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commentAttempts++
	if err := f.commentErr[key]; err != nil {
		return err
	}
	f.comments[key] = append(f.comments[key], body)
	return nil
}

func (f *fakeTransport) CreateIssue(_ context.Context, issue NewIssue) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, issue)
	key := issue.ProjectKey + "-100"
	f.issues[key] = &models.Issue{TrackerID: key, Product: issue.ProjectKey, Summary: issue.Summary}
	return key, nil
}

func (f *fakeTransport) GetFilterJQL(_ context.Context, filterID int) (Query, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	jql, ok := f.filters[filterID]
	if !ok {
		return "", notFoundf("filter %d", filterID)
	}
	return jql, nil
}

func (f *fakeTransport) LinkIssues(_ context.Context, link IssueLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, link)
	return nil
}

func (f *fakeTransport) ProjectVersions(_ context.Context, project string) ([]models.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.versions[project], nil
}

func issueKeyAt(i int) string {
	return fmt.Sprintf("FAKE-%d", i+1)
}

var errBoom = errors.New("boom")
