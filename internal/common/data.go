package common

import (
	"encoding/json"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	log "github.com/tuannvm/jira-tracker/internal/logging"
	"github.com/tuannvm/jira-tracker/internal/models"
)

// ExtractTrackerRequest reads a TrackerRequest from the first data or text
// part of message that carries one.
func ExtractTrackerRequest(message protocol.Message) (*models.TrackerRequest, error) {
	if len(message.Parts) == 0 {
		return nil, fmt.Errorf("message has no parts")
	}

	for _, part := range message.Parts {
		var raw []byte
		switch v := part.(type) {
		case protocol.DataPart:
			raw, _ = json.Marshal(v.Data)
		case *protocol.DataPart:
			raw, _ = json.Marshal(v.Data)
		case *protocol.TextPart:
			raw = []byte(v.Text)
		}
		if len(raw) == 0 {
			continue
		}

		var req models.TrackerRequest
		if err := json.Unmarshal(raw, &req); err == nil && req.Action != "" {
			req.Action = strings.ToLower(req.Action)
			return &req, nil
		}

		var dataMap map[string]interface{}
		if err := json.Unmarshal(raw, &dataMap); err == nil {
			if req, err := ExtractFromMap(dataMap); err == nil {
				return req, nil
			}
		}
		log.Debugf("Skipping message part without a tracker request")
	}

	return nil, fmt.Errorf("could not extract tracker request from message")
}

// ExtractFromMap builds a TrackerRequest from loosely keyed data, accepting
// a single url in place of the urls list.
func ExtractFromMap(data map[string]interface{}) (*models.TrackerRequest, error) {
	action, ok := GetStringValue(data, "action", "operation", "op")
	if !ok {
		return nil, fmt.Errorf("no action found in data")
	}
	req := &models.TrackerRequest{Action: strings.ToLower(action)}

	if u, ok := GetStringValue(data, "url", "issueUrl", "issue"); ok {
		req.URLs = append(req.URLs, u)
	}
	if urls, ok := data["urls"].([]interface{}); ok {
		for _, u := range urls {
			if s, ok := u.(string); ok && s != "" {
				req.URLs = append(req.URLs, s)
			}
		}
	}
	if product, ok := GetStringValue(data, "product", "project"); ok {
		req.Product = product
	}
	if release, ok := GetStringValue(data, "release", "version"); ok {
		req.Release = release
	}
	if status, ok := GetStringValue(data, "status"); ok {
		req.Status = models.IssueStatus(strings.ToUpper(status))
	}
	if body, ok := GetStringValue(data, "comment", "body"); ok {
		req.Comment = &models.Comment{Body: body}
	}
	if n, ok := data["maxResults"].(float64); ok {
		req.MaxResults = int(n)
	}
	return req, nil
}
