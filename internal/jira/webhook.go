package jira

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// webhookPayload is the subset of a Jira webhook body the tracker reads.
type webhookPayload struct {
	Timestamp    int64          `json:"timestamp"`
	WebhookEvent string         `json:"webhookEvent"`
	Issue        webhookIssue   `json:"issue"`
	User         webhookUser    `json:"user"`
	Changelog    *webhookChange `json:"changelog,omitempty"`
	Comment      *webhookNote   `json:"comment,omitempty"`
}

type webhookIssue struct {
	Self string `json:"self"`
	Key  string `json:"key"`
}

type webhookUser struct {
	Name         string `json:"name"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
}

type webhookChange struct {
	Items []struct {
		Field      string `json:"field"`
		FromString string `json:"fromString"`
		ToString   string `json:"toString"`
	} `json:"items"`
}

type webhookNote struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// IssueEvent is a tracker notification about one issue.
type IssueEvent struct {
	Key        string            `json:"key"`
	IssueURL   *url.URL          `json:"-"`
	Event      string            `json:"event"` // created, updated, commented, deleted
	UserName   string            `json:"userName"`
	UserEmail  string            `json:"userEmail"`
	ProjectKey string            `json:"projectKey"`
	Changes    map[string]string `json:"changes,omitempty"`
	Comment    string            `json:"comment,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// ParseWebhook decodes a Jira webhook body into an IssueEvent. The issue key
// comes from the issue's self link when present so the event can be re-read
// through the same path as any other issue URL.
func ParseWebhook(body []byte) (*IssueEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	event := &IssueEvent{
		Key:       payload.Issue.Key,
		Event:     eventType(payload.WebhookEvent),
		UserName:  payload.User.Name,
		UserEmail: payload.User.EmailAddress,
		Timestamp: time.Now().UTC(),
	}
	if payload.Timestamp > 0 {
		event.Timestamp = time.UnixMilli(payload.Timestamp).UTC()
	}

	if payload.Issue.Self != "" {
		u, err := url.Parse(payload.Issue.Self)
		if err != nil {
			return nil, fmt.Errorf("invalid issue link %q: %w", payload.Issue.Self, err)
		}
		event.IssueURL = u
		if key, err := ResolveKey(u); err == nil && !isNumeric(key) {
			event.Key = key
		}
	}
	if event.Key == "" {
		return nil, notFoundf("webhook payload carries no issue key")
	}
	if i := strings.Index(event.Key, "-"); i > 0 {
		event.ProjectKey = event.Key[:i]
	}

	if payload.Changelog != nil && len(payload.Changelog.Items) > 0 {
		event.Changes = make(map[string]string, len(payload.Changelog.Items))
		for _, item := range payload.Changelog.Items {
			event.Changes[item.Field] = item.ToString
		}
	}
	if payload.Comment != nil {
		event.Comment = payload.Comment.Body
	}
	return event, nil
}

// eventType maps jira:issue_updated style names to their short form.
func eventType(webhookEvent string) string {
	switch webhookEvent {
	case "jira:issue_created":
		return "created"
	case "jira:issue_updated":
		return "updated"
	case "jira:issue_commented", "comment_created":
		return "commented"
	case "jira:issue_deleted":
		return "deleted"
	}
	if i := strings.LastIndex(webhookEvent, ":"); i >= 0 {
		return webhookEvent[i+1:]
	}
	return webhookEvent
}

// isNumeric reports whether s is an issue id rather than a key.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
