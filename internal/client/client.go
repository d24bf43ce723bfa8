// Package client is the typed REST client for the MedVault backend. Every
// call carries the Session it was built with; there is no ambient token.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/platform/auth"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

type Client struct {
	base    string
	session *auth.Session
	http    *http.Client
	logger  zerolog.Logger
}

// New returns a client for the backend at baseURL. session may be nil for
// the unauthenticated auth endpoints.
func New(baseURL string, session *auth.Session, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/") + "/api",
		session: session,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithSession returns a copy of c that authenticates as s.
func (c *Client) WithSession(s *auth.Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

func (c *Client) Session() *auth.Session { return c.session }

// role is the path segment of the session's dashboard.
func (c *Client) role() (auth.Role, error) {
	r := c.session.Role()
	if r == "" {
		return "", &Error{Kind: KindValidation, Message: "not logged in"}
	}
	return r, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if tok := c.session.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// send executes req and converts transport failures and non-2xx responses
// into *Error. The caller owns the returned body on success.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	evt := c.logger.Debug().
		Str("request_id", req.Header.Get("X-Request-ID")).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Dur("latency", time.Since(start))
	if err != nil {
		evt.Err(err).Msg("request failed")
		return nil, &Error{Kind: KindTransport, Message: "request failed", Err: err}
	}
	evt.Int("status", resp.StatusCode).Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(resp.StatusCode, resp.Header.Get("Content-Type"), raw)
	}
	return resp, nil
}

// do sends a JSON request. out may be nil, a *string (plain text or the
// {message} of a JSON reply) or any JSON target.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := c.newRequest(ctx, method, path, query, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func decode(resp *http.Response, out interface{}) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	isJSON := strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json")

	if s, ok := out.(*string); ok {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &Error{Kind: KindTransport, Status: resp.StatusCode, Message: "read response", Err: err}
		}
		*s = strings.TrimSpace(string(raw))
		if isJSON {
			var m struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(raw, &m) == nil && m.Message != "" {
				*s = m.Message
			}
		}
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindTransport, Status: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// FilePart is one file of a multipart upload.
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Data        io.Reader
}

// doMultipart sends text fields and files as multipart/form-data.
func (c *Client) doMultipart(ctx context.Context, method, path string, fields map[string]string, files []FilePart, out interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	for _, f := range files {
		if f.Data == nil {
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.FileName))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Data); err != nil {
			return fmt.Errorf("copy %s: %w", f.FileName, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, method, path, nil, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

// Blob is a downloaded document.
type Blob struct {
	FileName    string
	ContentType string
	Data        []byte
}

func (c *Client) doBlob(ctx context.Context, path string) (*Blob, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Status: resp.StatusCode, Message: "read document", Err: err}
	}
	b := &Blob{ContentType: resp.Header.Get("Content-Type"), Data: data}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		b.FileName = params["filename"]
	}
	return b, nil
}
