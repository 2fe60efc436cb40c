package jira

import (
	"context"

	log "github.com/tuannvm/jira-tracker/internal/logging"
	"github.com/tuannvm/jira-tracker/internal/models"
)

// AllFields requests every field of each issue.
var AllFields = []string{"*all"}

// MinimalFields is the reduced field set used for release scans.
var MinimalFields = []string{"summary", "issuetype", "created", "updated", "project", "status", "priority", "components"}

// PageWindow is the offset and length of one fetch.
type PageWindow struct {
	Start  int
	Length int
}

// Paginator drives bounded search fetches until a result set is exhausted.
type Paginator struct {
	transport Transport
	pageSize  int
}

// NewPaginator creates a Paginator fetching at most pageSize issues per call.
func NewPaginator(transport Transport, pageSize int) *Paginator {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Paginator{transport: transport, pageSize: pageSize}
}

// FetchAll returns every issue matching query, capped at maxResults when
// maxResults > 0. The total reported by the first page governs termination;
// totals reported by later pages are ignored. Pages are fetched in order and
// any failure aborts the run: ErrNotFound as is, anything else as a
// *TransientError.
func (p *Paginator) FetchAll(ctx context.Context, query Query, fields []string, maxResults int) ([]*models.Issue, error) {
	var issues []*models.Issue
	total := -1
	window := PageWindow{}

	for {
		window.Length = p.pageSize
		if maxResults > 0 {
			remaining := maxResults - window.Start
			if remaining <= 0 {
				break
			}
			if remaining < window.Length {
				window.Length = remaining
			}
		}

		log.Debugf("Fetching page at %d (length %d) for %q", window.Start, window.Length, query)
		page, err := p.transport.Search(ctx, query, fields, window.Start, window.Length)
		if err != nil {
			return nil, remoteErr("search", err)
		}
		if total < 0 {
			total = page.Total
			log.Debugf("Total issues in result: %d", total)
		}
		issues = append(issues, page.Issues...)

		window.Start += window.Length
		if window.Start >= total {
			break
		}
	}

	log.Debugf("Fetched %d issues for %q", len(issues), query)
	return issues, nil
}
