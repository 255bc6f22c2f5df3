package onadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/h4ev/formgate/internal/metrics"
)

// ErrNotFound is returned when the provider answers 404.
var ErrNotFound = errors.New("not found upstream")

// UnavailableError reports a failed call to the forms provider: a transport
// failure (Status is 0), a non-2xx answer or an undecodable body.
type UnavailableError struct {
	Op     string
	Status int
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream returned %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the Ona data API. Each call is a single attempt.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	log        *logrus.Entry
}

type loggingTransport struct {
	log  *logrus.Entry
	base http.RoundTripper
}

func NewClient(logger *logrus.Logger, cfg Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &loggingTransport{
				log:  logger.WithField("component", "onadata_transport"),
				base: http.DefaultTransport,
			},
		},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		log:     logger.WithField("component", "onadata_client"),
	}
}

// FetchForms lists the forms owned by username.
func (c *Client) FetchForms(ctx context.Context, username string) ([]any, int, error) {
	params := url.Values{}
	params.Set("owner", username)

	var forms []any
	status, err := c.getJSON(ctx, "fetch_forms", "/api/v1/forms?"+params.Encode(), &forms)
	if err != nil {
		return nil, status, err
	}
	return forms, status, nil
}

// FetchSubmissions returns the submitted data of formID.
func (c *Client) FetchSubmissions(ctx context.Context, formID string) (any, int, error) {
	var data any
	status, err := c.getJSON(ctx, "fetch_submissions", "/api/v1/data/"+url.PathEscape(formID), &data)
	if err != nil {
		return nil, status, err
	}
	return data, status, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, dst any) (status int, err error) {
	start := time.Now()
	log := c.log.WithFields(logrus.Fields{
		"operation": op,
		"path":      path,
	})
	defer func() {
		outcome := "ok"
		switch {
		case errors.Is(err, ErrNotFound):
			outcome = "not_found"
		case err != nil:
			outcome = "unavailable"
		}
		metrics.UpstreamRequestDurationSeconds.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, &UnavailableError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "formgate/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Error("Upstream request failed")
		return 0, &UnavailableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"body":        string(body),
		}).Warn("Upstream returned an error status")
		return resp.StatusCode, &UnavailableError{Op: op, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		log.WithError(err).Error("Invalid response from upstream")
		return resp.StatusCode, &UnavailableError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	log.WithField("duration", time.Since(start)).Debug("Upstream request completed")
	return resp.StatusCode, nil
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	log := t.log.WithFields(logrus.Fields{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		log.WithError(err).Error("HTTP request failed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"duration":    time.Since(start),
	}).Debug("HTTP request completed")
	return resp, nil
}
