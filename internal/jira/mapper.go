package jira

import (
	"net/url"

	atlassian "github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
	"github.com/tidwall/gjson"

	"github.com/tuannvm/jira-tracker/internal/models"
)

// issueFromScheme converts a go-atlassian issue into the abstract Issue. Custom
// fields are not part of the typed scheme and are read from the raw fields
// object instead.
func issueFromScheme(baseURL string, ji *atlassian.IssueSchemeV2, raw gjson.Result) *models.Issue {
	issue := &models.Issue{
		TrackerID: ji.Key,
		URL:       browseURL(baseURL, ji.Key),
		Status:    models.StatusUndefined,
		Type:      models.TypeUndefined,
	}
	f := ji.Fields
	if f == nil {
		return issue
	}

	issue.Summary = f.Summary
	issue.Description = f.Description
	issue.Labels = f.Labels
	if f.Project != nil {
		issue.Product = f.Project.Key
	}
	if f.Status != nil {
		issue.Status = StatusFromName(f.Status.Name)
	}
	if f.IssueType != nil {
		issue.Type = TypeFromName(f.IssueType.Name)
	}
	if f.Assignee != nil {
		issue.Assignee = userName(f.Assignee)
	}
	if f.Reporter != nil {
		issue.Reporter = userName(f.Reporter)
	}
	for _, c := range f.Components {
		if c != nil {
			issue.Components = append(issue.Components, c.Name)
		}
	}
	for _, v := range f.FixVersions {
		if v != nil {
			issue.Releases = append(issue.Releases, models.Release{Version: v.Name})
		}
	}

	if milestone := raw.Get(FieldTargetRelease + ".name").String(); milestone != "" {
		if len(issue.Releases) > 0 {
			issue.Releases[0].Milestone = milestone
		} else {
			issue.Releases = append(issue.Releases, models.Release{Milestone: milestone})
		}
	}

	for flag, key := range flagFields {
		if value := raw.Get(key + ".value").String(); value != "" {
			if issue.Stage == nil {
				issue.Stage = models.Stage{}
			}
			issue.Stage[flag] = models.FlagStatus(value)
		}
	}
	return issue
}

func userName(u *atlassian.UserScheme) string {
	if u.Name != "" {
		return u.Name
	}
	return u.AccountID
}

func browseURL(baseURL, key string) *url.URL {
	u, err := url.Parse(baseURL + BrowseIssuePath + key)
	if err != nil {
		return nil
	}
	return u
}

// wireValue converts a FieldUpdate value into the JSON shape the tracker
// expects for that field.
func wireValue(field string, value interface{}) interface{} {
	if value == nil {
		return nil
	}
	switch field {
	case FieldAssignee:
		return map[string]interface{}{"name": value}
	case FieldComponents, FieldFixVersions:
		names, _ := value.([]string)
		out := make([]map[string]interface{}, 0, len(names))
		for _, n := range names {
			out = append(out, map[string]interface{}{"name": n})
		}
		return out
	case FieldTargetRelease:
		return map[string]interface{}{"name": value}
	}
	for _, key := range flagFields {
		if key == field {
			return map[string]interface{}{"value": value}
		}
	}
	return value
}
