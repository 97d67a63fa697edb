// Package frontdesk holds the front-desk enrollment form logic: the API client,
// debounced phone lookup, material selection, image compression and submit flow.
package frontdesk

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

	"hcsc-backend/internal/directory/students"
	"hcsc-backend/internal/directory/users"
	"hcsc-backend/internal/inventory/materials"
	"hcsc-backend/internal/lending/enrollments"
	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/storage"
)

// APIError: サーバーが success=false を返したとき
type APIError struct {
	Status  int
	Code    api.Code
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    api.Code        `json:"code"`
}

type Client struct {
	base  string
	http  *http.Client
	token string
}

// NewClient: base は "https://host:8443" のようにスキーマ付き
func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any, hdr http.Header, out any) error {
	u := c.base + "/api/v1" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return &APIError{Status: res.StatusCode, Message: "unexpected response: " + err.Error()}
	}
	if !env.Success || res.StatusCode >= 400 {
		return &APIError{Status: res.StatusCode, Code: env.Code, Message: env.Error}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) CheckPhone(ctx context.Context, phone string) (students.CheckPhoneResponse, error) {
	var out students.CheckPhoneResponse
	err := c.do(ctx, http.MethodGet, "/students/check-phone", url.Values{"phone": {phone}}, nil, nil, &out)
	return out, err
}

type MaterialQuery struct {
	Level   string
	Type    string
	Search  string
	InStock bool
}

// Materials: ページを辿って全件取る
func (c *Client) Materials(ctx context.Context, mq MaterialQuery) ([]materials.Material, error) {
	q := url.Values{"limit": {fmt.Sprint(api.MaxLimit)}}
	if mq.Level != "" {
		q.Set("level", mq.Level)
	}
	if mq.Type != "" {
		q.Set("type", mq.Type)
	}
	if mq.Search != "" {
		q.Set("search", mq.Search)
	}
	if mq.InStock {
		q.Set("in_stock", "true")
	}
	var all []materials.Material
	for {
		var page api.ListResult[materials.Material]
		if err := c.do(ctx, http.MethodGet, "/materials", q, nil, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.NextOffset == nil {
			return all, nil
		}
		q.Set("offset", fmt.Sprint(*page.NextOffset))
	}
}

func (c *Client) SalesStaff(ctx context.Context) ([]users.User, error) {
	var out users.SalesStaffResponse
	err := c.do(ctx, http.MethodGet, "/users/sales", nil, nil, nil, &out)
	return out.Staff, err
}

func idemHeader(key string) http.Header {
	if key == "" {
		return nil
	}
	return http.Header{"Idempotency-Key": {key}}
}

func (c *Client) Borrow(ctx context.Context, in enrollments.EnrollmentRequest, idemKey string) (enrollments.BorrowResponse, error) {
	in.Type = "borrow"
	var out enrollments.BorrowResponse
	err := c.do(ctx, http.MethodPost, "/enrollment", nil, in, idemHeader(idemKey), &out)
	return out, err
}

func (c *Client) Return(ctx context.Context, phone, materialID, idemKey string) (enrollments.ReturnResponse, error) {
	in := enrollments.EnrollmentRequest{Type: "return", Phone: phone, MaterialID: materialID}
	var out enrollments.ReturnResponse
	err := c.do(ctx, http.MethodPost, "/enrollment", nil, in, idemHeader(idemKey), &out)
	return out, err
}

func (c *Client) SignUpload(ctx context.Context, path string) (storage.SignedUpload, error) {
	var out storage.SignedUpload
	err := c.do(ctx, http.MethodPost, "/storage/sign-upload", nil, map[string]string{"path": path}, nil, &out)
	return out, err
}

// Upload: 署名付き URL にそのまま PUT する
func (c *Client) Upload(ctx context.Context, signedURL string, data []byte) (storage.Uploaded, error) {
	var out storage.Uploaded
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, bytes.NewReader(data))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	err = c.send(req, &out)
	return out, err
}

func (c *Client) AddImages(ctx context.Context, in []enrollments.ImageInput) error {
	return c.do(ctx, http.MethodPost, "/enrollment-images", nil, in, nil, nil)
}
