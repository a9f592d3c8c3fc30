package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golovatskygroup/mcp-chat/internal/httpcache"
)

// Config carries everything the Jira REST client needs. Built once at
// process start and passed in; the client never reads the environment.
type Config struct {
	BaseURL    string
	APIVersion int // 2 or 3; 0 picks by base URL (Cloud=3, DC/Server=2)
	Email      string
	APIToken   string
	PAT        string // Data Center / Server personal access token
	Timeout    time.Duration
	Cache      httpcache.Config
}

// Valid reports whether the config is complete enough to build a client.
func (c Config) Valid() bool {
	if strings.TrimSpace(c.BaseURL) == "" {
		return false
	}
	return strings.TrimSpace(c.PAT) != "" ||
		(strings.TrimSpace(c.Email) != "" && strings.TrimSpace(c.APIToken) != "")
}

type client struct {
	baseURL    string
	apiVersion int
	authHeader string
	c          *http.Client
}

func newClient(cfg Config) (*client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("missing Jira base URL")
	}

	apiVersion := cfg.APIVersion
	if apiVersion == 0 {
		// Many DC instances redirect /rest/api/3 to an HTML login page,
		// so default v2 off-Cloud.
		if isCloudBaseURL(baseURL) {
			apiVersion = 3
		} else {
			apiVersion = 2
		}
	}
	if apiVersion != 2 && apiVersion != 3 {
		return nil, errors.New("api version must be 2 or 3")
	}

	var authHeader string
	switch {
	case strings.TrimSpace(cfg.PAT) != "":
		authHeader = "Bearer " + strings.TrimSpace(cfg.PAT)
	case strings.TrimSpace(cfg.Email) != "" && strings.TrimSpace(cfg.APIToken) != "":
		enc := base64.StdEncoding.EncodeToString([]byte(cfg.Email + ":" + cfg.APIToken))
		authHeader = "Basic " + enc
	default:
		return nil, errors.New("missing Jira auth: provide a PAT or email + API token")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &client{
		baseURL:    baseURL,
		apiVersion: apiVersion,
		authHeader: authHeader,
		c: &http.Client{
			Timeout:   timeout,
			Transport: httpcache.NewTransport(nil, cfg.Cache),
			// Jira DC commonly redirects API paths to login pages.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

func (j *client) apiBase() string {
	return j.baseURL + "/rest/api/" + strconv.Itoa(j.apiVersion)
}

func isCloudBaseURL(baseURL string) bool {
	u := strings.ToLower(baseURL)
	return strings.Contains(u, ".atlassian.net") ||
		strings.HasPrefix(u, "https://api.atlassian.com/ex/jira/")
}

var errHTMLOrRedirect = errors.New("jira api returned html/redirect (likely login page)")

// statusError is a non-2xx JSON response from Jira. The adapter decides
// which of these are business errors and which are hard failures.
type statusError struct {
	Status int
	Body   []byte
}

func (e *statusError) Error() string {
	msg := fmt.Sprintf("Jira API error (%d): %s", e.Status, strings.TrimSpace(string(e.Body)))
	if hint := authHint(e.Status, e.Body); hint != "" {
		msg += "\n" + hint
	}
	return msg
}

func looksLikeHTML(b []byte) bool {
	s := strings.TrimSpace(strings.ToLower(string(b)))
	if s == "" {
		return false
	}
	return strings.HasPrefix(s, "<!doctype html") || strings.HasPrefix(s, "<html") ||
		(strings.Contains(s, "<html") && strings.Contains(s, "<body"))
}

func authHint(status int, body []byte) string {
	switch status {
	case http.StatusUnauthorized:
		return "Jira returned 401. Check the configured email/API token (Cloud) or PAT (DC/Server)."
	case http.StatusForbidden:
		return "Jira returned 403. Likely missing permissions or scopes for this user."
	case http.StatusNotFound:
		return "Jira returned 404. The issue/project may not exist, or access is masked as 404."
	case http.StatusTooManyRequests:
		return "Jira returned 429 (rate limited). Respect Retry-After before retrying."
	default:
		if bytes.Contains(bytes.ToLower(body), []byte("captcha")) {
			return "Jira reported a CAPTCHA denial; interactive login may be required to clear it."
		}
		return ""
	}
}

func (j *client) do(ctx context.Context, method, apiPath string, query url.Values, body []byte) ([]byte, error) {
	u := j.apiBase() + apiPath
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "mcp-chat")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", j.authHeader)

	resp, err := j.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return nil, errHTMLOrRedirect
	}
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") || looksLikeHTML(b) {
		return nil, errHTMLOrRedirect
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{Status: resp.StatusCode, Body: b}
	}
	return b, nil
}

// --- operations ---

func (j *client) myself(ctx context.Context) ([]byte, error) {
	return j.do(ctx, http.MethodGet, "/myself", nil, nil)
}

func (j *client) getIssue(ctx context.Context, key string, fields []string) ([]byte, error) {
	q := url.Values{}
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}
	return j.do(ctx, http.MethodGet, "/issue/"+url.PathEscape(key), q, nil)
}

func (j *client) searchIssues(ctx context.Context, jql string, maxResults int, fields []string) ([]byte, error) {
	if maxResults <= 0 {
		maxResults = 50
	}
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", strconv.Itoa(maxResults))
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}
	return j.do(ctx, http.MethodGet, "/search", q, nil)
}

func (j *client) getComments(ctx context.Context, key string, maxResults int) ([]byte, error) {
	if maxResults <= 0 {
		maxResults = 50
	}
	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(maxResults))
	return j.do(ctx, http.MethodGet, "/issue/"+url.PathEscape(key)+"/comment", q, nil)
}

func (j *client) getTransitions(ctx context.Context, key string) ([]byte, error) {
	return j.do(ctx, http.MethodGet, "/issue/"+url.PathEscape(key)+"/transitions", nil, nil)
}

func (j *client) transitionIssue(ctx context.Context, key, transitionID string) ([]byte, error) {
	b, err := json.Marshal(map[string]any{
		"transition": map[string]any{"id": transitionID},
	})
	if err != nil {
		return nil, err
	}
	return j.do(ctx, http.MethodPost, "/issue/"+url.PathEscape(key)+"/transitions", nil, b)
}

func (j *client) updateIssue(ctx context.Context, key string, fields map[string]any) ([]byte, error) {
	b, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}
	return j.do(ctx, http.MethodPut, "/issue/"+url.PathEscape(key), nil, b)
}

func (j *client) createIssue(ctx context.Context, fields map[string]any) ([]byte, error) {
	b, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}
	return j.do(ctx, http.MethodPost, "/issue", nil, b)
}

func (j *client) addComment(ctx context.Context, key, body string) ([]byte, error) {
	var payload map[string]any
	if j.apiVersion == 3 {
		payload = map[string]any{"body": adfDocFromText(body)}
	} else {
		payload = map[string]any{"body": body}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return j.do(ctx, http.MethodPost, "/issue/"+url.PathEscape(key)+"/comment", nil, b)
}

func (j *client) listProjects(ctx context.Context) ([]byte, error) {
	if j.apiVersion == 3 {
		q := url.Values{}
		q.Set("maxResults", "50")
		return j.do(ctx, http.MethodGet, "/project/search", q, nil)
	}
	return j.do(ctx, http.MethodGet, "/project", nil, nil)
}

// adfDocFromText wraps plain text in the minimal Atlassian Document
// Format body that v3 write endpoints require.
func adfDocFromText(text string) map[string]any {
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": text},
				},
			},
		},
	}
}
