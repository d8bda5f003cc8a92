package teachable

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	errpkg "github.com/coursefetch/coursefetch/internal/errors"
	"github.com/coursefetch/coursefetch/internal/metrics"
	"github.com/coursefetch/coursefetch/internal/ratelimit"
)

const coursesPerPage = 20

// Client talks to the course platform's JSON API. All requests go through
// the shared rate limiter, so metadata fetches and attachment downloads
// honor a single rate-limit state.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	maxRetries int
}

func NewClient(baseURL, apiKey string, timeout time.Duration, limiter *ratelimit.Limiter, maxRetries int) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		maxRetries: maxRetries,
	}
}

// get performs a rate-limited GET and decodes the JSON payload into out.
// A 429 response advances the shared limiter and the request is retried
// after the reset instant, up to the retry bound.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return errpkg.Classify(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("accept", "application/json")
		req.Header.Set("apiKey", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errpkg.Classify(err)
		}

		if c.limiter.Observe(resp.StatusCode, resp.Header) {
			metrics.RateLimitHits.Inc()
			resp.Body.Close()
			lastErr = errpkg.FromStatus(resp.StatusCode)
			slog.Warn("metadata request rate limited", "path", path, "attempt", attempt)
			continue
		}

		if err := errpkg.FromStatus(resp.StatusCode); err != nil {
			resp.Body.Close()
			return err
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
		return nil
	}

	return fmt.Errorf("metadata request %s exhausted %d attempts: %w", path, c.maxRetries, lastErr)
}

// ListCourses fetches every course, following the API's page-based
// pagination until the last page is reached.
func (c *Client) ListCourses(ctx context.Context) ([]CourseSummary, error) {
	var all []CourseSummary

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("per", strconv.Itoa(coursesPerPage))

		var resp coursesResponse
		if err := c.get(ctx, "/courses", params, &resp); err != nil {
			return nil, fmt.Errorf("list courses page %d: %w", page, err)
		}

		all = append(all, resp.Courses...)

		if resp.Meta.NumberOfPages == 0 || page >= resp.Meta.NumberOfPages {
			return all, nil
		}
	}
}

// GetCourse fetches a course with its full section tree.
func (c *Client) GetCourse(ctx context.Context, courseID int64) (*Course, error) {
	var resp courseResponse
	if err := c.get(ctx, fmt.Sprintf("/courses/%d", courseID), nil, &resp); err != nil {
		return nil, fmt.Errorf("get course %d: %w", courseID, err)
	}
	return &resp.Course, nil
}

// GetLecture fetches a lecture with its attachments.
func (c *Client) GetLecture(ctx context.Context, courseID, lectureID int64) (*Lecture, error) {
	var resp lectureResponse
	if err := c.get(ctx, fmt.Sprintf("/courses/%d/lectures/%d", courseID, lectureID), nil, &resp); err != nil {
		return nil, fmt.Errorf("get lecture %d of course %d: %w", lectureID, courseID, err)
	}
	return &resp.Lecture, nil
}
