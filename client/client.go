package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tpgarc/arc-conformance-tests/framework"
	"github.com/tpgarc/arc-conformance-tests/servicedef"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public ARC API endpoint.
const DefaultBaseURL = "https://api.tpgarc.com/"

const (
	headerAccountCode     = "arc-account-code"
	headerSubscriptionKey = "arc-subscription-key"

	defaultRequestTimeout = time.Minute
	maxErrorBodyLength    = 512
)

// Client makes calls to the ARC web API on behalf of one account.
//
// All methods take a Context; cancelling it aborts both the rate limiter wait and the HTTP request.
type Client struct {
	baseURL         string
	accountCode     string
	subscriptionKey string
	httpClient      *http.Client
	limiter         *rate.Limiter
	logger          framework.Logger
}

// Options contains the parameters for New.
type Options struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL         string
	AccountCode     string
	SubscriptionKey string

	// HTTPClient defaults to a client with a one-minute timeout.
	HTTPClient *http.Client

	// RequestsPerSecond limits the rate of outgoing requests. Zero means no limit.
	RequestsPerSecond float64

	Logger framework.Logger
}

// New creates a Client. It does not contact the service.
func New(opts Options) (*Client, error) {
	if opts.AccountCode == "" || opts.SubscriptionKey == "" {
		return nil, ErrMissingCredentials
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid ARC base URL %q: %w", baseURL, err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	logger := opts.Logger
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Client{
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		accountCode:     opts.AccountCode,
		subscriptionKey: opts.SubscriptionKey,
		httpClient:      httpClient,
		limiter:         limiter,
		logger:          logger,
	}, nil
}

// BaseURL returns the service URL this client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Domains lists the domains registered in the account.
func (c *Client) Domains(ctx context.Context) ([]servicedef.Domain, error) {
	return getResult[[]servicedef.Domain](ctx, c, "/v1/Account/Domains")
}

// Initiatives lists the initiative policies that apply to a domain.
func (c *Client) Initiatives(ctx context.Context, domainID int) ([]servicedef.TestInitiativePolicy, error) {
	return getResult[[]servicedef.TestInitiativePolicy](ctx, c,
		"/v1/AccessibilityPolicy/Domain/"+strconv.Itoa(domainID)+"/Initiatives")
}

// AssetConformanceReport lists the domain's policies broken down per digital asset.
func (c *Client) AssetConformanceReport(ctx context.Context, domainID int) ([]servicedef.PolicyAssetConformance, error) {
	return getResult[[]servicedef.PolicyAssetConformance](ctx, c,
		"/v1/AccessibilityPolicy/Domain/"+strconv.Itoa(domainID)+"/Initiatives/AssetConformanceReport")
}

// Asset fetches the details of one digital asset.
func (c *Client) Asset(ctx context.Context, assetID int) (servicedef.Asset, error) {
	return getResult[servicedef.Asset](ctx, c, "/v1/Assets/"+strconv.Itoa(assetID))
}

// NewSession asks the service for a new automation session. The session is usually not ready yet.
func (c *Client) NewSession(ctx context.Context) (servicedef.AutomationSession, error) {
	return getResult[servicedef.AutomationSession](ctx, c, "/v1/Automation/Session/New")
}

// SessionStatus re-reads the state of an automation session.
func (c *Client) SessionStatus(ctx context.Context, sessionID string) (servicedef.AutomationSession, error) {
	query := url.Values{"sessionId": []string{sessionID}}
	return getResult[servicedef.AutomationSession](ctx, c, "/v1/Automation/Session/Status?"+query.Encode())
}

// OpenBrowser starts the browser of a ready session.
func (c *Client) OpenBrowser(ctx context.Context, sessionID string) error {
	_, err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "/Browser/Open"), nil)
	return err
}

// CloseBrowser releases the browser of a session.
func (c *Client) CloseBrowser(ctx context.Context, sessionID string) error {
	_, err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "/Browser/Close"), nil)
	return err
}

// RunScriptStep sends one scripted instruction to the session's browser.
func (c *Client) RunScriptStep(ctx context.Context, sessionID string, step servicedef.AnalysisScriptStep) error {
	_, err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "/Script/Step/Run"), step)
	return err
}

// AnalyzePage scans the page currently open in the session's browser.
func (c *Client) AnalyzePage(ctx context.Context, sessionID string) (servicedef.AssetAnalytics, error) {
	return getResult[servicedef.AssetAnalytics](ctx, c, sessionPath(sessionID, "/Analyze/Page"))
}

func sessionPath(sessionID, suffix string) string {
	return "/v1/Automation/Session/" + url.PathEscape(sessionID) + suffix
}

// truncateBody shortens an error response body to at most maxErrorBodyLength bytes plus an
// ellipsis, without splitting a UTF-8 sequence.
func truncateBody(body string) string {
	body = strings.TrimSpace(body)
	if len(body) <= maxErrorBodyLength {
		return body
	}
	cut := maxErrorBodyLength
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}

func getResult[T any](ctx context.Context, c *Client, path string) (T, error) {
	var resp servicedef.Response[T]
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return resp.Result, err
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return resp.Result, fmt.Errorf("malformed JSON response from %s: %w", path, err)
	}
	return resp.Result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		c.logger.Printf("%s %s %s", method, path, string(data))
		reqBody = bytes.NewReader(data)
	} else {
		c.logger.Printf("%s %s", method, path)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerAccountCode, c.accountCode)
	req.Header.Set(headerSubscriptionKey, c.subscriptionKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response from %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: truncateBody(string(data))}
	}
	c.logger.Printf("%s %s -> %d", method, path, resp.StatusCode)
	return data, nil
}
