package jira

import (
	"net/url"
	"strings"
)

// ResolveKey extracts the issue key from an API or browse URL, e.g.
// https://issues.redhat.com/browse/WFLY-1 or .../rest/api/2/issue/WFLY-1.
// A /projects/P/issues/ path is treated as a browse path. Any other path
// fails with ErrNotFound.
func ResolveKey(u *url.URL) (string, error) {
	if u == nil {
		return "", notFoundf("nil URL")
	}
	path := correctPath(u.Path)

	key, found := "", false
	if i := strings.Index(path, APIIssuePath); i >= 0 {
		key, found = path[i+len(APIIssuePath):], true
	} else if i := strings.Index(path, BrowseIssuePath); i >= 0 {
		key, found = path[i+len(BrowseIssuePath):], true
	}
	if !found {
		return "", notFoundf("the URL path must be of the form '%s' OR '%s': %s", APIIssuePath, BrowseIssuePath, u)
	}
	if key == "" {
		return "", notFoundf("no issue key in %s", u)
	}
	return key, nil
}

func correctPath(path string) string {
	if loc := projectsIssuePattern.FindStringIndex(path); loc != nil {
		return path[:loc[0]] + BrowseIssuePath + path[loc[1]:]
	}
	return path
}
