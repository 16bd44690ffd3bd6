// Package crm is the client for the back-office case management API. Every
// endpoint answers {code, msg, data}; code 0 is success.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	commonhttp "lead-intake/internal/common/http"
)

const (
	pathCreateCase   = "/case/create"
	pathListCases    = "/case/list"
	pathListManagers = "/manager/list"

	defaultPageSize = 20
)

// ID accepts both JSON strings and numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// CreateCaseRequest is one prospective client.
type CreateCaseRequest struct {
	CaseType    string `json:"case_type"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	LivingPlace string `json:"living_place"`
	Memo        string `json:"memo"`
}

type CreateCaseResult struct {
	CaseID ID `json:"case_id"`
}

type Case struct {
	CaseID      ID     `json:"case_id"`
	Manager     ID     `json:"manager"`
	ManagerName string `json:"manager_name"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
	CreateDT    string `json:"create_dt"`
}

// CreatedAt parses CreateDT. The CRM emits local time without zone.
func (c Case) CreatedAt() (time.Time, bool) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, c.CreateDT, seoul); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type CaseList struct {
	Total int    `json:"total"`
	List  []Case `json:"list"`
}

type Manager struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// APIError is a well-formed response whose code is not 0.
type APIError struct {
	Endpoint string
	Code     int
	Msg      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crm %s: code %d: %s", e.Endpoint, e.Code, e.Msg)
}

// Client talks to the CRM over HTTP with a bearer token.
type Client struct {
	http *commonhttp.Client
}

func NewClient(baseURL, token string, timeout time.Duration, opts ...commonhttp.Option) *Client {
	opts = append([]commonhttp.Option{commonhttp.WithBearerToken(token)}, opts...)
	return &Client{http: commonhttp.NewClient(baseURL, timeout, opts...)}
}

func (c *Client) CreateCase(ctx context.Context, req CreateCaseRequest) (*CreateCaseResult, error) {
	var result CreateCaseResult
	if err := c.call(ctx, http.MethodPost, pathCreateCase, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListCases searches cases by client phone.
func (c *Client) ListCases(ctx context.Context, phone string) (*CaseList, error) {
	body := map[string]interface{}{
		"client_phone": phone,
		"page":         1,
		"page_size":    defaultPageSize,
	}
	var result CaseList
	if err := c.call(ctx, http.MethodPost, pathListCases, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListCaseOwners(ctx context.Context) ([]Manager, error) {
	var result struct {
		List []Manager `json:"list"`
	}
	if err := c.call(ctx, http.MethodGet, pathListManagers, nil, &result); err != nil {
		return nil, err
	}
	return result.List, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var env envelope
	if err := c.http.DoJSON(ctx, method, path, body, &env); err != nil {
		return fmt.Errorf("crm %s: %w", path, err)
	}
	if env.Code != 0 {
		return &APIError{Endpoint: path, Code: env.Code, Msg: env.Msg}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("crm %s: failed to decode data: %w", path, err)
	}
	return nil
}

var seoul = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}()

// Seoul is the business time zone used for memos and CRM timestamps.
func Seoul() *time.Location {
	return seoul
}

// FormatPhone keeps digits only.
func FormatPhone(phone string) string {
	out := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			out = append(out, phone[i])
		}
	}
	return string(out)
}
