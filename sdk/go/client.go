package hirelinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Hireline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// VacancyKey addresses a vacancy within its tenant.
type VacancyKey struct {
	TenantID  string
	VacancyID string
}

type Member struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Verified  bool   `json:"verified"`
	CreatedAt string `json:"created_at"`
}

type Fact struct {
	SubjectID         string   `json:"subject_id"`
	ID                string   `json:"id"`
	AuthorID          string   `json:"author_id"`
	Payload           string   `json:"payload"`
	ConfirmationCount uint64   `json:"confirmation_count"`
	Confirmers        []string `json:"confirmers,omitempty"`
}

type Stage struct {
	Name       string `json:"name"`
	Amount     int64  `json:"amount"`
	Approvable bool   `json:"approvable"`
}

type Position struct {
	MemberID     string `json:"member_id"`
	CurrentIndex int64  `json:"current_index"`
	Passed       bool   `json:"passed"`
}

// Settlement is one paid pipeline step.
type Settlement struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	VacancyID   string `json:"vacancy_id"`
	MemberID    string `json:"member_id"`
	StageIndex  int64  `json:"stage_index"`
	StageName   string `json:"stage_name"`
	Amount      int64  `json:"amount"`
	Fee         int64  `json:"fee"`
	Net         int64  `json:"net"`
	Beneficiary string `json:"beneficiary"`
	Gate        string `json:"gate"`
	ActorID     string `json:"actor_id"`
	Passed      bool   `json:"passed"`
	CreatedAt   string `json:"created_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

type WhoAmI struct {
	ActorID       string   `json:"actor_id"`
	Source        string   `json:"source"`
	PlatformOwner bool     `json:"platform_owner"`
	Member        *Member  `json:"member,omitempty"`
	Tenants       []string `json:"tenants"`
}

// APIError wraps non-2xx responses. Code is the machine readable error code
// from the {error:{code,message}} envelope when the server sent one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Me returns the identity the server resolved for this client.
func (c *Client) Me(ctx context.Context) (WhoAmI, error) {
	var resp WhoAmI
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// RegisterMember registers the caller.
func (c *Client) RegisterMember(ctx context.Context) (Member, error) {
	var resp Member
	err := c.do(ctx, http.MethodPost, "members", nil, &resp)
	return resp, err
}

// SetStatus sets the caller's own job search status.
func (c *Client) SetStatus(ctx context.Context, memberID, status string) (Member, error) {
	var resp Member
	endpoint := fmt.Sprintf("members/%s/status", url.PathEscape(memberID))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// SubmitFact adds a fact about a member.
func (c *Client) SubmitFact(ctx context.Context, memberID, factID, payload string) (Fact, error) {
	var resp Fact
	endpoint := fmt.Sprintf("members/%s/facts", url.PathEscape(memberID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"id": factID, "payload": payload}, &resp)
	return resp, err
}

// ConfirmFact confirms a fact as the caller.
func (c *Client) ConfirmFact(ctx context.Context, memberID, factID string) (Fact, error) {
	var resp Fact
	endpoint := fmt.Sprintf("members/%s/facts/%s/confirm", url.PathEscape(memberID), url.PathEscape(factID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Pipeline returns the stages of a vacancy.
func (c *Client) Pipeline(ctx context.Context, key VacancyKey) ([]Stage, error) {
	var resp []Stage
	err := c.do(ctx, http.MethodGet, key.path("stages"), nil, &resp)
	return resp, err
}

// Subscribe subscribes the caller to a vacancy.
func (c *Client) Subscribe(ctx context.Context, key VacancyKey) error {
	return c.do(ctx, http.MethodPost, key.path("subscribe"), nil, nil)
}

// Position returns the member's current stage index, -1 when not subscribed.
func (c *Client) Position(ctx context.Context, key VacancyKey, memberID string) (Position, error) {
	var resp Position
	err := c.do(ctx, http.MethodGet, key.path("subscribers/"+url.PathEscape(memberID)), nil, &resp)
	return resp, err
}

// ApproveLevelUp settles an approvable stage as tenant staff.
func (c *Client) ApproveLevelUp(ctx context.Context, key VacancyKey, memberID string) (Settlement, error) {
	var resp Settlement
	err := c.do(ctx, http.MethodPost, key.path("subscribers/"+url.PathEscape(memberID)+"/approve-level-up"), nil, &resp)
	return resp, err
}

// LevelUp settles a platform-gated stage as a platform owner.
func (c *Client) LevelUp(ctx context.Context, key VacancyKey, memberID string) (Settlement, error) {
	var resp Settlement
	err := c.do(ctx, http.MethodPost, key.path("subscribers/"+url.PathEscape(memberID)+"/level-up"), nil, &resp)
	return resp, err
}

// Balance returns the token balance of an account.
func (c *Client) Balance(ctx context.Context, account string) (int64, error) {
	var resp struct {
		Balance int64 `json:"balance"`
	}
	err := c.do(ctx, http.MethodGet, "token/balances/"+url.PathEscape(account), nil, &resp)
	return resp.Balance, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing, newest first.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (k VacancyKey) path(p string) string {
	return fmt.Sprintf("tenants/%s/vacancies/%s/%s", url.PathEscape(k.TenantID), url.PathEscape(k.VacancyID), p)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
