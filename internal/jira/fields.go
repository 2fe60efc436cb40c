package jira

import (
	"regexp"
	"strings"

	"github.com/tuannvm/jira-tracker/internal/models"
)

// URL path shapes understood by ResolveKey.
const (
	APIIssuePath    = "/rest/api/2/issue/"
	BrowseIssuePath = "/browse/"
)

var projectsIssuePattern = regexp.MustCompile(`/projects/[^/]+/issues/`)

// Field keys used in update payloads.
const (
	FieldSummary     = "summary"
	FieldDescription = "description"
	FieldAssignee    = "assignee"
	FieldComponents  = "components"
	FieldLabels      = "labels"
	FieldFixVersions = "fixVersions"
	FieldSecurity    = "security"

	customFieldPrefix = "customfield_"

	// FieldTargetRelease holds Release.Milestone.
	FieldTargetRelease = customFieldPrefix + "12311240"
	// FieldSecuritySensitive marks an issue as a security issue on creation.
	FieldSecuritySensitive     = customFieldPrefix + "12311640"
	securitySensitiveValueTrue = "17611"
)

// flagFields maps each stage flag to the custom field that stores it.
var flagFields = map[models.Flag]string{
	models.FlagPM:  customFieldPrefix + "12311242",
	models.FlagDev: customFieldPrefix + "12311243",
	models.FlagQE:  customFieldPrefix + "12311244",
}

// FlagField returns the custom field key of a flag.
func FlagField(f models.Flag) (string, bool) {
	key, ok := flagFields[f]
	return key, ok
}

// jqlField turns a custom field key into its JQL reference, customfield_123 -> cf[123].
func jqlField(key string) string {
	if id, ok := strings.CutPrefix(key, customFieldPrefix); ok {
		return "cf[" + id + "]"
	}
	return key
}

var securityLevels = map[string]string{
	"Security Issue":   "11694",
	"Red Hat Internal": "11696",
	"Red Hat Employee": "11697",
}

// SecurityLevelID resolves a security level name to the tracker id.
func SecurityLevelID(name string) (string, bool) {
	id, ok := securityLevels[name]
	return id, ok
}

// statusNames maps tracker status names to abstract statuses.
var statusNames = map[string]models.IssueStatus{
	"New":                models.StatusNew,
	"Open":               models.StatusNew,
	"Reopened":           models.StatusNew,
	"To Do":              models.StatusNew,
	"Assigned":           models.StatusAssigned,
	"In Progress":        models.StatusAssigned,
	"Coding In Progress": models.StatusAssigned,
	"Pull Request Sent":  models.StatusPost,
	"Resolved":           models.StatusModified,
	"Ready for QA":       models.StatusOnQA,
	"Verified":           models.StatusVerified,
	"Closed":             models.StatusClosed,
	"Done":               models.StatusClosed,
}

// jqlStatusNames is the reverse direction used when building queries.
var jqlStatusNames = map[models.IssueStatus]string{
	models.StatusNew:      "New",
	models.StatusAssigned: "Coding In Progress",
	models.StatusPost:     "Pull Request Sent",
	models.StatusModified: "Resolved",
	models.StatusOnQA:     "Ready for QA",
	models.StatusVerified: "Verified",
	models.StatusClosed:   "Closed",
}

// StatusFromName maps a tracker status name to an abstract status.
func StatusFromName(name string) models.IssueStatus {
	if s, ok := statusNames[name]; ok {
		return s
	}
	return models.StatusUndefined
}

var issueTypeNames = map[string]models.IssueType{
	"Bug":               models.TypeBug,
	"Feature Request":   models.TypeFeature,
	"Task":              models.TypeTask,
	"Enhancement":       models.TypeEnhancement,
	"Component Upgrade": models.TypeUpgrade,
}

// TypeFromName maps a tracker issue type name to an abstract type.
func TypeFromName(name string) models.IssueType {
	if t, ok := issueTypeNames[name]; ok {
		return t
	}
	return models.TypeUndefined
}

type statusPair struct {
	from, to models.IssueStatus
}

// transitionsByPair overrides transitionsByTarget for specific moves.
var transitionsByPair = map[statusPair]string{
	{models.StatusAssigned, models.StatusNew}:      "Stop Progress",
	{models.StatusPost, models.StatusAssigned}:     "Back to Coding",
	{models.StatusModified, models.StatusAssigned}: "Reopen Issue",
	{models.StatusOnQA, models.StatusAssigned}:     "Reopen Issue",
}

var transitionsByTarget = map[models.IssueStatus]string{
	models.StatusNew:      "Reopen Issue",
	models.StatusAssigned: "Start Progress",
	models.StatusPost:     "Link Pull Request",
	models.StatusModified: "Resolve Issue",
	models.StatusOnQA:     "Ready for QA",
	models.StatusVerified: "Verify Issue",
	models.StatusClosed:   "Close Issue",
}

// TransitionName returns the workflow transition that moves an issue from
// one status to another, or false when no transition is known.
func TransitionName(from, to models.IssueStatus) (string, bool) {
	if from == to {
		return "", false
	}
	if name, ok := transitionsByPair[statusPair{from, to}]; ok {
		return name, true
	}
	name, ok := transitionsByTarget[to]
	return name, ok
}
