// Package veriftools talks to the document generation API: submit a form,
// poll the task, pay for the result when the deployment asks for it and
// download the rendered image.
package veriftools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"docbot/internal/domain"
	"docbot/internal/infra"
)

const (
	DefaultPollInterval   = 2 * time.Second
	DefaultPollTimeout    = 3 * time.Minute
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxImageBytes  = 20 << 20

	maxResponseBytes = 1 << 20
)

// Options configures a Client.
type Options struct {
	Profile        Profile
	Login          string
	Password       string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	MaxImageBytes  int64
}

// Attachment is an image part sent along with a submission.
type Attachment struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Client performs the remote calls of one deployment profile.
type Client struct {
	profile        Profile
	login          string
	password       string
	httpClient     *http.Client
	logger         *infra.Logger
	requestTimeout time.Duration
	maxImageBytes  int64
}

// NewClient validates the profile and credentials and applies defaults.
func NewClient(opts Options) (*Client, error) {
	profile := opts.Profile
	if profile.SubmitEncoding == "" {
		profile.SubmitEncoding = EncodingMultipart
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	login := strings.TrimSpace(opts.Login)
	if login == "" || opts.Password == "" {
		return nil, fmt.Errorf("%w: veriftools: login and password are required", domain.ErrConfiguration)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	maxImage := opts.MaxImageBytes
	if maxImage <= 0 {
		maxImage = DefaultMaxImageBytes
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{
		profile:        profile,
		login:          login,
		password:       opts.Password,
		httpClient:     httpClient,
		logger:         logger,
		requestTimeout: timeout,
		maxImageBytes:  maxImage,
	}, nil
}

// Profile returns the deployment profile the client was built with.
func (c *Client) Profile() Profile {
	return c.profile
}

// Submit sends the generator id, the field mapping and the optional image and
// returns the remote task id.
func (c *Client) Submit(ctx context.Context, generator string, fields map[string]string, image *Attachment) (string, error) {
	generator = GeneratorSlug(generator)
	if generator == "" {
		return "", &domain.RemoteError{Kind: domain.ErrSubmit, Op: "submit", Err: errors.New("generator is required")}
	}
	if fields == nil {
		fields = map[string]string{}
	}
	var (
		body        io.Reader
		contentType string
		err         error
	)
	if c.profile.SubmitEncoding == EncodingJSON {
		body, contentType, err = encodeJSONSubmission(generator, fields, image)
	} else {
		body, contentType, err = encodeMultipartSubmission(generator, fields, image)
	}
	if err != nil {
		return "", &domain.RemoteError{Kind: domain.ErrSubmit, Op: "submit", Err: err}
	}

	status, raw, _, err := c.do(ctx, http.MethodPost, c.profile.endpoint(c.profile.SubmitPath), body, func(h http.Header) {
		h.Set("Content-Type", contentType)
	})
	if err != nil {
		return "", &domain.RemoteError{Kind: domain.ErrSubmit, Op: "submit", Err: err}
	}
	if status < 200 || status >= 300 {
		return "", &domain.RemoteError{Kind: domain.ErrSubmit, Op: "submit", StatusCode: status, Payload: raw}
	}
	if !gjson.ValidBytes(raw) {
		return "", &domain.RemoteError{Kind: domain.ErrSubmit, Op: "submit", StatusCode: status, Payload: raw, Err: errors.New("malformed response body")}
	}
	taskID := firstString(raw, c.profile.TaskIDFields)
	if taskID == "" {
		return "", &domain.RemoteError{Kind: domain.ErrSubmit, Op: "submit", StatusCode: status, Payload: raw, Err: errors.New("missing task id")}
	}
	c.logger.Debug().
		Str("profile", c.profile.Name).
		Str("generator", generator).
		Str("task_id", taskID).
		Msg("veriftools: task submitted")
	return taskID, nil
}

// AwaitCompletion polls the status endpoint every interval until the task is
// ready, reports an error, or timeout elapses. It performs no calls after it
// returns.
func (c *Client) AwaitCompletion(ctx context.Context, taskID string, interval, timeout time.Duration) (domain.TaskSnapshot, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := domain.TaskSnapshot{TaskID: taskID, Status: domain.TaskStatusSubmitted}
	for attempt := 1; ; attempt++ {
		snap, err := c.pollOnce(pollCtx, taskID)
		var transient *transientError
		switch {
		case err == nil:
			last = snap
			switch snap.Status {
			case domain.TaskStatusReady:
				c.logger.Debug().Str("task_id", taskID).Int("attempt", attempt).Msg("veriftools: task ready")
				return snap, nil
			case domain.TaskStatusError:
				return snap, &domain.RemoteError{
					Kind:    domain.ErrRemoteTask,
					Op:      "status",
					Payload: snap.Payload,
					Err:     fmt.Errorf("task %s reported %q", taskID, snap.RawStatus),
				}
			}
		case errors.As(err, &transient):
			c.logger.Warn().Err(err).Str("task_id", taskID).Int("attempt", attempt).Msg("veriftools: status poll failed, retrying")
		default:
			return last, err
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, &domain.RemoteError{
				Kind:    domain.ErrTimeout,
				Op:      "status",
				Payload: last.Payload,
				Err:     fmt.Errorf("task %s not ready after %s", taskID, timeout),
			}
		case <-ticker.C:
		}
	}
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (c *Client) pollOnce(ctx context.Context, taskID string) (domain.TaskSnapshot, error) {
	status, raw, _, err := c.do(ctx, http.MethodGet, c.profile.statusURL(taskID), nil, nil)
	if err != nil {
		return domain.TaskSnapshot{}, &transientError{err: fmt.Errorf("veriftools: status: %w", err)}
	}
	if status >= 500 {
		return domain.TaskSnapshot{}, &transientError{err: fmt.Errorf("veriftools: status: http %d", status)}
	}
	if status < 200 || status >= 300 {
		return domain.TaskSnapshot{}, &domain.RemoteError{Kind: domain.ErrRemoteTask, Op: "status", StatusCode: status, Payload: raw}
	}
	if !gjson.ValidBytes(raw) {
		return domain.TaskSnapshot{}, &transientError{err: errors.New("veriftools: status: malformed response body")}
	}
	return c.profile.Interpret(taskID, raw), nil
}

// Interpret maps one status response onto a TaskSnapshot. An error token wins
// over everything else, including a populated result field.
func (p Profile) Interpret(taskID string, raw []byte) domain.TaskSnapshot {
	snap := domain.TaskSnapshot{
		TaskID:    taskID,
		RawStatus: firstString(raw, p.StatusFields),
		ResultURL: firstString(raw, p.ResultFields),
		Payload:   raw,
	}
	switch {
	case matchToken(snap.RawStatus, p.ErrorTokens):
		snap.Status = domain.TaskStatusError
	case matchToken(snap.RawStatus, p.ReadyTokens):
		snap.Status = domain.TaskStatusReady
	case p.ReadyOnResult && snap.ResultURL != "":
		snap.Status = domain.TaskStatusReady
	case snap.RawStatus != "":
		snap.Status = domain.TaskStatusInProgress
	default:
		snap.Status = domain.TaskStatusSubmitted
	}
	return snap
}

// PayForResult performs the payment call, preceded by the CSRF probe when the
// profile requires it, and returns the released result location.
func (c *Client) PayForResult(ctx context.Context, taskID string) (string, error) {
	var csrf *http.Cookie
	if c.profile.TokenFetch {
		cookie, err := c.fetchCSRF(ctx)
		if err != nil {
			return "", &domain.RemoteError{Kind: domain.ErrPayment, Op: "csrf", Err: err}
		}
		csrf = cookie
	}
	form := url.Values{"task_id": {taskID}}
	status, raw, _, err := c.do(ctx, http.MethodPost, c.profile.endpoint(c.profile.PayPath), strings.NewReader(form.Encode()), func(h http.Header) {
		h.Set("Content-Type", "application/x-www-form-urlencoded")
		if csrf != nil {
			h.Set(c.profile.CSRFHeader, csrf.Value)
			h.Set("Referer", strings.TrimRight(c.profile.BaseURL, "/")+"/")
			h.Add("Cookie", (&http.Cookie{Name: csrf.Name, Value: csrf.Value}).String())
		}
	})
	if err != nil {
		return "", &domain.RemoteError{Kind: domain.ErrPayment, Op: "pay", Err: err}
	}
	if status < 200 || status >= 300 {
		return "", &domain.RemoteError{Kind: domain.ErrPayment, Op: "pay", StatusCode: status, Payload: raw}
	}
	resultURL := firstString(raw, c.profile.ResultFields)
	if resultURL == "" {
		return "", &domain.RemoteError{Kind: domain.ErrPayment, Op: "pay", StatusCode: status, Payload: raw, Err: errors.New("missing result location")}
	}
	c.logger.Debug().Str("task_id", taskID).Msg("veriftools: result paid")
	return resultURL, nil
}

func (c *Client) fetchCSRF(ctx context.Context) (*http.Cookie, error) {
	status, _, header, err := c.do(ctx, http.MethodGet, c.profile.endpoint(c.profile.TokenPath), nil, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("token probe: http %d", status)
	}
	resp := http.Response{Header: header}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == c.profile.CSRFCookie && cookie.Value != "" {
			return cookie, nil
		}
	}
	return nil, fmt.Errorf("token probe: cookie %s not set", c.profile.CSRFCookie)
}

// FetchImage downloads the rendered image. Credentials are only sent to the
// profile's own host.
func (c *Client) FetchImage(ctx context.Context, rawURL string) (domain.RenderedImage, error) {
	u, err := c.resolve(rawURL)
	if err != nil {
		return domain.RenderedImage{}, &domain.RemoteError{Kind: domain.ErrDownload, Op: "download", Err: err}
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.RenderedImage{}, &domain.RemoteError{Kind: domain.ErrDownload, Op: "download", Err: err}
	}
	if c.sameHost(u) {
		req.SetBasicAuth(c.login, c.password)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RenderedImage{}, &domain.RemoteError{Kind: domain.ErrDownload, Op: "download", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.RenderedImage{}, &domain.RemoteError{Kind: domain.ErrDownload, Op: "download", StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxImageBytes+1))
	if err != nil {
		return domain.RenderedImage{}, &domain.RemoteError{Kind: domain.ErrDownload, Op: "download", Err: err}
	}
	if int64(len(data)) > c.maxImageBytes {
		return domain.RenderedImage{}, &domain.RemoteError{Kind: domain.ErrDownload, Op: "download", Err: fmt.Errorf("image exceeds %d bytes", c.maxImageBytes)}
	}
	if len(data) == 0 {
		return domain.RenderedImage{}, &domain.RemoteError{Kind: domain.ErrDownload, Op: "download", Err: errors.New("empty image")}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return domain.RenderedImage{
		Data:        data,
		Filename:    filenameHint(u),
		ContentType: contentType,
	}, nil
}

func (c *Client) resolve(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("result location is empty")
	}
	base, err := url.Parse(c.profile.BaseURL)
	if err != nil {
		return nil, err
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid result location %q: %w", rawURL, err)
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported result location %q", rawURL)
	}
	return u, nil
}

func (c *Client) sameHost(u *url.URL) bool {
	base, err := url.Parse(c.profile.BaseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(base.Host, u.Host)
}

// do runs one authenticated call bounded by the per-call timeout and returns
// the status, a capped body and the response headers.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, decorate func(http.Header)) (int, []byte, http.Header, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.login, c.password)
	req.Header.Set("Accept", "application/json")
	if decorate != nil {
		decorate(req.Header)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, resp.Header, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, raw, resp.Header, nil
}

func encodeMultipartSubmission(generator string, fields map[string]string, image *Attachment) (io.Reader, string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, "", fmt.Errorf("encode fields: %w", err)
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("generator", generator); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("data", string(data)); err != nil {
		return nil, "", err
	}
	if image != nil && len(image.Data) > 0 {
		field, filename, contentType := attachmentMeta(image)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(image.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func encodeJSONSubmission(generator string, fields map[string]string, image *Attachment) (io.Reader, string, error) {
	payload := map[string]any{
		"generator": generator,
		"data":      fields,
	}
	if image != nil && len(image.Data) > 0 {
		field, _, _ := attachmentMeta(image)
		payload["images"] = map[string]string{field: base64.StdEncoding.EncodeToString(image.Data)}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("encode submission: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

func attachmentMeta(a *Attachment) (field, filename, contentType string) {
	field = a.Field
	if field == "" {
		field = domain.DefaultImageField
	}
	filename = a.Filename
	if filename == "" {
		filename = "photo.jpg"
	}
	contentType = a.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(a.Data)
	}
	return field, filename, contentType
}

func firstString(raw []byte, paths []string) string {
	for _, p := range paths {
		res := gjson.GetBytes(raw, p)
		if !res.Exists() {
			continue
		}
		if v := strings.TrimSpace(res.String()); v != "" {
			return v
		}
	}
	return ""
}

func matchToken(value string, tokens []string) bool {
	if value == "" {
		return false
	}
	for _, t := range tokens {
		if strings.EqualFold(value, t) {
			return true
		}
	}
	return false
}

func filenameHint(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "result.jpg"
	}
	return name
}
