package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/steveyegge/issuetag/internal/types"
)

// DefaultAPIVersion is the REST API version used when none is configured.
const DefaultAPIVersion = 2

// searchFields is the set of fields requested by search.
const searchFields = "summary,description,assignee,reporter,created,updated,issuetype,priority," +
	"resolution,status,watches,versions,fixVersions,issuelinks,labels,subtasks,worklog"

// issueFields adds the per-issue comment and attachment lists.
const issueFields = searchFields + ",comment,attachment"

// APIError is a non-2xx response from Jira.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira API returned %d: %s", e.StatusCode, e.Body)
}

// Client provides read-only HTTP access to a Jira instance.
type Client struct {
	URL        string
	Username   string
	APIToken   string
	APIVersion int
	HTTPClient *http.Client
}

// NewClient creates a new Jira client for REST API version 2.
func NewClient(url, username, apiToken string) *Client {
	return &Client{
		URL:        strings.TrimSuffix(url, "/"),
		Username:   username,
		APIToken:   apiToken,
		APIVersion: DefaultAPIVersion,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) apiBase() string {
	v := c.APIVersion
	if v == 0 {
		v = DefaultAPIVersion
	}
	return fmt.Sprintf("%s/rest/api/%d", c.URL, v)
}

// Search runs one JQL search page of at most limit issues starting at
// offset. The server may return fewer issues than limit.
func (c *Client) Search(ctx context.Context, jql string, limit, offset int) (*types.SearchPage, error) {
	params := url.Values{
		"jql":        {jql},
		"fields":     {searchFields},
		"expand":     {"changelog"},
		"startAt":    {strconv.Itoa(offset)},
		"maxResults": {strconv.Itoa(limit)},
	}
	apiURL := c.apiBase() + "/search?" + params.Encode()

	body, err := c.doRequest(ctx, http.MethodGet, apiURL)
	if err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}

	var result wireSearch
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	page := &types.SearchPage{Total: result.Total, Issues: make([]*types.Issue, 0, len(result.Issues))}
	for i := range result.Issues {
		issue, err := result.Issues[i].toIssue()
		if err != nil {
			return nil, fmt.Errorf("parse search response: %w", err)
		}
		page.Issues = append(page.Issues, issue)
	}
	return page, nil
}

// GetIssue fetches a single issue by key (e.g., "PROJ-123") including its
// comments and attachments.
func (c *Client) GetIssue(ctx context.Context, key string) (*types.Issue, error) {
	apiURL := fmt.Sprintf("%s/issue/%s?fields=%s", c.apiBase(), url.PathEscape(key), issueFields)

	body, err := c.doRequest(ctx, http.MethodGet, apiURL)
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}

	var wire wireIssue
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}
	issue, err := wire.toIssue()
	if err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}
	if issue.Comments == nil {
		issue.Comments = []*types.Comment{}
	}
	return issue, nil
}

// doRequest executes a request and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, apiURL string) ([]byte, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("jira URL not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "issuetag/1.0")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

// setAuth sets Basic auth when a username is configured, Bearer when only a
// token is, and nothing for anonymous access.
func (c *Client) setAuth(req *http.Request) {
	switch {
	case c.APIToken == "":
	case c.Username != "":
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	default:
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}
