package todoist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/choregate/internal/clock"
	"git.home.luguber.info/inful/choregate/internal/config"
	"git.home.luguber.info/inful/choregate/internal/foundation/errors"
	"git.home.luguber.info/inful/choregate/internal/logfields"
	"git.home.luguber.info/inful/choregate/internal/retry"
)

const pageLimit = 200

// Client talks to the Todoist API with a bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	policy     retry.Policy
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client. A nil httpClient gets a 10s timeout client.
func NewClient(httpClient *http.Client, baseURL, token string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.DefaultHTTPTimeout}
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		policy:     retry.DefaultPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the resolved configuration.
func NewFromConfig(cfg config.TodoistConfig, logger *slog.Logger) *Client {
	return NewClient(&http.Client{Timeout: cfg.Timeout}, cfg.BaseURL, cfg.APIKey,
		WithRetryPolicy(retry.FromConfig(cfg.Retry)),
		WithLogger(logger),
	)
}

// HasIncompleteTasks reports whether the section holds an unfinished task due
// on or before asOf (YYYY-MM-DD). Tasks without a due date never count.
func (c *Client) HasIncompleteTasks(ctx context.Context, sectionID, asOf string) (bool, error) {
	if strings.TrimSpace(sectionID) == "" {
		return false, errors.ValidationError("section id cannot be empty").Build()
	}
	today, err := time.Parse(clock.DateLayout, asOf)
	if err != nil {
		return false, errors.ValidationError("invalid reference date").
			WithCause(err).
			WithContext("date", asOf).
			Build()
	}

	tasks, err := c.ListTasks(ctx, sectionID)
	if err != nil {
		return false, err
	}

	for _, t := range tasks {
		if t.Done() || t.Due == nil || t.Due.Date == "" {
			continue
		}
		due, perr := parseDueDate(t.Due.Date)
		if perr != nil {
			c.logger.Warn("Skipping task with unparsable due date",
				logfields.Section(sectionID),
				slog.String("task_id", t.ID),
				slog.String("due", t.Due.Date))
			continue
		}
		if !due.After(today) {
			c.logger.Info("Found incomplete task due",
				logfields.Section(sectionID),
				slog.String("task_id", t.ID),
				slog.String("task", t.Content),
				slog.String("due", t.Due.Date))
			return true, nil
		}
	}
	return false, nil
}

// parseDueDate accepts YYYY-MM-DD and timestamps that start with it.
func parseDueDate(raw string) (time.Time, error) {
	if len(raw) > len(clock.DateLayout) {
		raw = raw[:len(clock.DateLayout)]
	}
	return time.Parse(clock.DateLayout, raw)
}

// ListTasks returns every active task of a section, following pagination.
// The whole listing is retried on transient failures.
func (c *Client) ListTasks(ctx context.Context, sectionID string) ([]Task, error) {
	q := url.Values{}
	q.Set("section_id", sectionID)
	return listAll[Task](ctx, c, "tasks", q)
}

// ListProjects returns every project visible to the token.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	return listAll[Project](ctx, c, "projects", nil)
}

// ListSections returns the sections of a project, or of all projects when
// projectID is empty.
func (c *Client) ListSections(ctx context.Context, projectID string) ([]Section, error) {
	q := url.Values{}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	return listAll[Section](ctx, c, "sections", q)
}

func listAll[T any](ctx context.Context, c *Client, endpoint string, query url.Values) ([]T, error) {
	var out []T
	err := c.policy.Do(ctx, transient, func(attempt int) error {
		out = out[:0]
		cursor := ""
		for {
			q := url.Values{}
			for k, v := range query {
				q[k] = v
			}
			q.Set("limit", strconv.Itoa(pageLimit))
			if cursor != "" {
				q.Set("cursor", cursor)
			}

			var p page[T]
			if err := c.get(ctx, endpoint, q, &p); err != nil {
				c.logger.Warn("Todoist request failed",
					slog.String("endpoint", endpoint),
					logfields.Attempt(attempt),
					logfields.Error(err))
				return err
			}
			out = append(out, p.Results...)
			if p.NextCursor == nil || *p.NextCursor == "" {
				return nil
			}
			cursor = *p.NextCursor
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// transient limits retries to network failures, rate limiting and server errors.
func transient(err error) bool {
	return errors.HasCategory(err, errors.CategoryNetwork)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, result any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.ConfigError("invalid Todoist API URL").
			WithCause(err).
			WithContext("api_url", c.baseURL).
			Build()
	}
	u.Path = path.Join(u.Path, endpoint)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return errors.TasksError("failed to create request").
			WithCause(err).
			WithContext("url", u.String()).
			Build()
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "choregate/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NetworkError("failed to execute Todoist request").
			WithCause(err).
			WithContext("url", u.Redacted()).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		limitedBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return statusError(resp, strings.ReplaceAll(string(limitedBody), "\n", " "))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return errors.TasksError("failed to decode Todoist response").
			WithCause(err).
			WithContext("url", u.String()).
			Build()
	}
	return nil
}

func statusError(resp *http.Response, body string) error {
	var b *errors.ErrorBuilder
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		b = errors.AuthError("Todoist rejected the API token")
	case resp.StatusCode == http.StatusNotFound:
		b = errors.NotFoundError("Todoist resource")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		b = errors.NetworkError(fmt.Sprintf("Todoist API error: %s", resp.Status))
	default:
		b = errors.TasksError(fmt.Sprintf("Todoist API error: %s", resp.Status))
	}
	return b.
		WithContext("status", resp.Status).
		WithContext("code", resp.StatusCode).
		WithContext("url", resp.Request.URL.String()).
		WithContext("response", body).
		Build()
}
