package models

import (
	"net/url"
	"time"
)

// IssueStatus is the tracker-independent lifecycle state of an issue.
type IssueStatus string

const (
	StatusNew       IssueStatus = "NEW"
	StatusAssigned  IssueStatus = "ASSIGNED"
	StatusPost      IssueStatus = "POST"
	StatusModified  IssueStatus = "MODIFIED"
	StatusOnQA      IssueStatus = "ON_QA"
	StatusVerified  IssueStatus = "VERIFIED"
	StatusClosed    IssueStatus = "CLOSED"
	StatusUndefined IssueStatus = "UNDEFINED"
)

// IssueType is the kind of issue. It cannot be changed once the issue exists.
type IssueType string

const (
	TypeBug         IssueType = "BUG"
	TypeFeature     IssueType = "FEATURE_REQUEST"
	TypeTask        IssueType = "TASK"
	TypeEnhancement IssueType = "ENHANCEMENT"
	TypeUpgrade     IssueType = "COMPONENT_UPGRADE"
	TypeUndefined   IssueType = "UNDEFINED"
)

// Flag is one of the acknowledgement flags carried in an issue's stage.
type Flag string

const (
	FlagPM  Flag = "PM"
	FlagDev Flag = "DEV"
	FlagQE  Flag = "QE"
)

// FlagStatus is the value of a single flag.
type FlagStatus string

const (
	FlagAccepted FlagStatus = "+"
	FlagRejected FlagStatus = "-"
	FlagSet      FlagStatus = "?"
	FlagNoSet    FlagStatus = " "
)

// Stage is the set of flags on an issue.
type Stage map[Flag]FlagStatus

// Release pairs a version with an optional target milestone.
type Release struct {
	Version   string `json:"version,omitempty"`
	Milestone string `json:"milestone,omitempty"`
}

// Issue is the tracker-independent view of an issue.
type Issue struct {
	URL         *url.URL    `json:"-"`
	TrackerID   string      `json:"trackerId,omitempty"`
	Product     string      `json:"product,omitempty"`
	Summary     string      `json:"summary"`
	Description string      `json:"description,omitempty"`
	Assignee    string      `json:"assignee,omitempty"`
	Reporter    string      `json:"reporter,omitempty"`
	Status      IssueStatus `json:"status"`
	Type        IssueType   `json:"type"`
	Components  []string    `json:"components,omitempty"`
	Labels      []string    `json:"labels,omitempty"`
	Releases    []Release   `json:"releases,omitempty"`
	Stage       Stage       `json:"stage,omitempty"`
}

// Comment is a comment on an issue.
type Comment struct {
	ID        string `json:"id,omitempty"`
	Body      string `json:"body"`
	IsPrivate bool   `json:"private,omitempty"`
}

// Transition is a workflow operation currently available on an issue.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchResultPage is one page of a paginated search.
type SearchResultPage struct {
	Issues []*Issue
	Total  int
}

// Version is a release version of a tracker project.
type Version struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Released bool   `json:"released"`
}

// IssueCreationDetails carries what is needed to open a new issue.
type IssueCreationDetails struct {
	TrackerURL             *url.URL
	ProjectKey             string
	IssueType              string
	Summary                string
	Description            string
	Labels                 []string
	SecuritySensitiveIssue bool
	SecurityLevel          string
}

// SearchCriteria is an immutable set of search filters. Build it with
// NewSearchCriteria and the With* options.
type SearchCriteria struct {
	product     string
	release     *Release
	status      IssueStatus
	assignee    string
	reporter    string
	component   string
	stage       Stage
	startDate   *time.Time
	endDate     *time.Time
	lastUpdated *time.Time
	maxResults  int
}

// SearchOption configures a SearchCriteria.
type SearchOption func(*SearchCriteria)

// NewSearchCriteria builds a SearchCriteria from options.
func NewSearchCriteria(opts ...SearchOption) SearchCriteria {
	var sc SearchCriteria
	for _, opt := range opts {
		opt(&sc)
	}
	return sc
}

func WithProduct(product string) SearchOption {
	return func(sc *SearchCriteria) { sc.product = product }
}

func WithRelease(r Release) SearchOption {
	return func(sc *SearchCriteria) { sc.release = &r }
}

func WithStatus(s IssueStatus) SearchOption {
	return func(sc *SearchCriteria) { sc.status = s }
}

func WithAssignee(a string) SearchOption {
	return func(sc *SearchCriteria) { sc.assignee = a }
}

func WithReporter(r string) SearchOption {
	return func(sc *SearchCriteria) { sc.reporter = r }
}

func WithComponent(c string) SearchOption {
	return func(sc *SearchCriteria) { sc.component = c }
}

// WithStage copies the stage so later changes by the caller are not observed.
func WithStage(stage Stage) SearchOption {
	return func(sc *SearchCriteria) {
		sc.stage = make(Stage, len(stage))
		for k, v := range stage {
			sc.stage[k] = v
		}
	}
}

func WithStartDate(t time.Time) SearchOption {
	return func(sc *SearchCriteria) { sc.startDate = &t }
}

func WithEndDate(t time.Time) SearchOption {
	return func(sc *SearchCriteria) { sc.endDate = &t }
}

func WithLastUpdated(t time.Time) SearchOption {
	return func(sc *SearchCriteria) { sc.lastUpdated = &t }
}

func WithMaxResults(n int) SearchOption {
	return func(sc *SearchCriteria) { sc.maxResults = n }
}

func (sc SearchCriteria) Product() (string, bool) { return sc.product, sc.product != "" }
func (sc SearchCriteria) Status() (IssueStatus, bool) { return sc.status, sc.status != "" }
func (sc SearchCriteria) Assignee() (string, bool) { return sc.assignee, sc.assignee != "" }
func (sc SearchCriteria) Reporter() (string, bool) { return sc.reporter, sc.reporter != "" }
func (sc SearchCriteria) Component() (string, bool) { return sc.component, sc.component != "" }
func (sc SearchCriteria) MaxResults() (int, bool) { return sc.maxResults, sc.maxResults > 0 }

func (sc SearchCriteria) Release() (Release, bool) {
	if sc.release == nil {
		return Release{}, false
	}
	return *sc.release, true
}

// Stage returns a copy of the flag filters.
func (sc SearchCriteria) Stage() Stage {
	out := make(Stage, len(sc.stage))
	for k, v := range sc.stage {
		out[k] = v
	}
	return out
}

func (sc SearchCriteria) StartDate() (time.Time, bool) { return derefTime(sc.startDate) }
func (sc SearchCriteria) EndDate() (time.Time, bool) { return derefTime(sc.endDate) }
func (sc SearchCriteria) LastUpdated() (time.Time, bool) { return derefTime(sc.lastUpdated) }

// IsEmpty reports whether no filter is set. An empty criteria matches every issue.
func (sc SearchCriteria) IsEmpty() bool {
	return sc.product == "" && sc.release == nil && sc.status == "" && sc.assignee == "" &&
		sc.reporter == "" && sc.component == "" && len(sc.stage) == 0 &&
		sc.startDate == nil && sc.endDate == nil && sc.lastUpdated == nil
}

func derefTime(t *time.Time) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// TrackerRequest is the JSON request the tracker agent accepts.
type TrackerRequest struct {
	Action     string      `json:"action"` // "get", "search", "comment", "update"
	URLs       []string    `json:"urls,omitempty"`
	Product    string      `json:"product,omitempty"`
	Release    string      `json:"release,omitempty"`
	MaxResults int         `json:"maxResults,omitempty"`
	Comment    *Comment    `json:"comment,omitempty"`
	Status     IssueStatus `json:"status,omitempty"`
}

// TrackerResponse is what the tracker agent returns for a TrackerRequest.
type TrackerResponse struct {
	Action    string   `json:"action"`
	Issues    []*Issue `json:"issues,omitempty"`
	Succeeded bool     `json:"succeeded"`
	Message   string   `json:"message,omitempty"`
}
