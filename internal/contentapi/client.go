package contentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultEndpoint is the content API root for the us1 deployment. It also answers
// discovery requests with a redirect to the caller's own deployment.
const DefaultEndpoint = "https://api.sumologic.com/api"

const discoveryPath = "/v1/collectors"

var ErrEndpointSlash = errors.New("endpoint should not end with a slash character")

// Options configures a Client.
type Options struct {
	Endpoint     string
	Deployment   string
	DiscoveryURL string
	AccessID     string
	AccessKey    string
	UserAgent    string
	AdminMode    bool
	Overwrite    bool
	Timeout      time.Duration
	// Interval is the minimum spacing between two calls. Zero disables pacing.
	Interval   time.Duration
	Burst      int
	HTTPClient *http.Client
}

// Client talks to the content service over HTTP. Calls are paced by a shared limiter
// and are safe to use from a single goroutine.
type Client struct {
	endpoint  string
	accessID  string
	accessKey string
	userAgent string
	adminMode bool
	overwrite bool
	http      *http.Client
	limiter   *rate.Limiter
}

// New builds a client and resolves its endpoint. When neither Endpoint nor Deployment is
// set, the endpoint is discovered from the redirect the default deployment answers with.
func New(ctx context.Context, opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = time.Minute
		}
		httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}
	c := &Client{
		accessID:  opts.AccessID,
		accessKey: opts.AccessKey,
		userAgent: opts.UserAgent,
		adminMode: opts.AdminMode,
		overwrite: opts.Overwrite,
		http:      httpClient,
		limiter:   NewLimiter(opts.Interval, opts.Burst),
	}

	endpoint := opts.Endpoint
	switch {
	case endpoint != "":
	case opts.Deployment != "":
		endpoint = EndpointFor(opts.Deployment)
	default:
		discovery := opts.DiscoveryURL
		if discovery == "" {
			discovery = DefaultEndpoint
		}
		resolved, err := c.discover(ctx, discovery)
		if err != nil {
			return nil, fmt.Errorf("resolve endpoint: %w", err)
		}
		endpoint = resolved
	}
	if strings.HasSuffix(endpoint, "/") {
		return nil, ErrEndpointSlash
	}
	c.endpoint = endpoint
	return c, nil
}

// NewLimiter returns a limiter allowing one call per interval. A non-positive interval
// yields an unlimited limiter.
func NewLimiter(interval time.Duration, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(interval), burst)
}

// EndpointFor maps a deployment code such as "us2" or "eu" to its API root.
func EndpointFor(deployment string) string {
	code := strings.ToLower(strings.TrimSpace(deployment))
	if code == "" || code == "us1" || code == "prod" {
		return DefaultEndpoint
	}
	return "https://api." + code + ".sumologic.com/api"
}

// Endpoint returns the resolved API root.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) discover(ctx context.Context, base string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/")+discoveryPath, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.accessID, c.accessKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	final := resp.Request.URL.String()
	if i := strings.Index(final, discoveryPath); i >= 0 {
		final = final[:i]
	}
	return final, nil
}

// PersonalFolder reads the caller's personal folder.
func (c *Client) PersonalFolder(ctx context.Context) (Folder, error) {
	var folder Folder
	err := c.do(ctx, http.MethodGet, "/v2/content/folders/personal", nil, nil, nil, &folder)
	return folder, err
}

// GetFolder reads a folder and its direct children.
func (c *Client) GetFolder(ctx context.Context, id string) (Folder, error) {
	var folder Folder
	err := c.do(ctx, http.MethodGet, "/v2/content/folders/"+url.PathEscape(id), nil, nil, nil, &folder)
	return folder, err
}

// CreateFolder creates a folder named name under parentID.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (Folder, error) {
	var folder Folder
	in := createFolderRequest{Name: name, Description: name, ParentID: parentID}
	err := c.do(ctx, http.MethodPost, "/v2/content/folders", nil, nil, in, &folder)
	return folder, err
}

// StartImport submits an exported content document into parentID.
func (c *Client) StartImport(ctx context.Context, parentID string, payload json.RawMessage) (ImportJob, error) {
	var job ImportJob
	query := url.Values{"overwrite": {strconv.FormatBool(c.overwrite)}}
	path := "/v2/content/folders/" + url.PathEscape(parentID) + "/import"
	err := c.do(ctx, http.MethodPost, path, query, c.adminHeader(), payload, &job)
	return job, err
}

// GetImportStatus reads the current state of an import job.
func (c *Client) GetImportStatus(ctx context.Context, parentID, jobID string) (ImportStatus, error) {
	var status ImportStatus
	path := "/v2/content/folders/" + url.PathEscape(parentID) + "/import/" + url.PathEscape(jobID) + "/status"
	err := c.do(ctx, http.MethodGet, path, nil, c.adminHeader(), nil, &status)
	return status, err
}

func (c *Client) adminHeader() http.Header {
	h := http.Header{}
	h.Set("isAdminMode", strconv.FormatBool(c.adminMode))
	return h
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, header http.Header, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.SetBasicAuth(c.accessID, c.accessKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
