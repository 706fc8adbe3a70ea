package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const BaseURL = "https://www.strava.com/api/v3"

// ErrNotFound is returned for 404 responses
var ErrNotFound = errors.New("not found on Strava")

// APIError is a non-200 response from the API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Client is a Strava API client
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *RateLimiter
}

// NewClient creates a Strava API client authorized by tokenSource
func NewClient(tokenSource oauth2.TokenSource) *Client {
	return NewClientWithHTTP(oauth2.NewClient(context.Background(), tokenSource), BaseURL)
}

// NewClientWithHTTP creates a client against baseURL using httpClient as is
func NewClientWithHTTP(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		rateLimiter: NewRateLimiter(),
	}
}

// GetAthlete fetches the authenticated athlete
func (c *Client) GetAthlete(ctx context.Context) (*AthleteProfile, error) {
	var athlete AthleteProfile
	if _, err := c.getJSON(ctx, "/athlete", nil, &athlete); err != nil {
		return nil, fmt.Errorf("fetching athlete: %w", err)
	}
	return &athlete, nil
}

// GetActivities fetches one page of activities started after 'after'
func (c *Client) GetActivities(ctx context.Context, after time.Time, page, perPage int) ([]Activity, error) {
	params := url.Values{}
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	var activities []Activity
	if _, err := c.getJSON(ctx, "/athlete/activities", params, &activities); err != nil {
		return nil, fmt.Errorf("fetching activities: %w", err)
	}
	return activities, nil
}

// GetAllActivities fetches all activities after a given time,
// following pagination
func (c *Client) GetAllActivities(ctx context.Context, after time.Time, onProgress func(fetched int)) ([]Activity, error) {
	var all []Activity
	perPage := 100 // Max allowed by Strava

	for page := 1; ; page++ {
		activities, err := c.GetActivities(ctx, after, page, perPage)
		if err != nil {
			return all, fmt.Errorf("fetching page %d: %w", page, err)
		}
		all = append(all, activities...)
		if onProgress != nil && len(activities) > 0 {
			onProgress(len(all))
		}
		if len(activities) < perPage {
			return all, nil
		}
	}
}

// GetActivity fetches the detailed activity. The raw payload is returned
// alongside the decoded summary.
func (c *Client) GetActivity(ctx context.Context, activityID int64) (*Activity, json.RawMessage, error) {
	var a Activity
	raw, err := c.getJSON(ctx, fmt.Sprintf("/activities/%d", activityID), nil, &a)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching activity %d: %w", activityID, err)
	}
	return &a, raw, nil
}

// GetActivityStreams fetches every stream type of an activity, keyed by type
func (c *Client) GetActivityStreams(ctx context.Context, activityID int64) (Streams, json.RawMessage, error) {
	params := url.Values{}
	params.Set("keys", strings.Join(StreamKeys, ","))
	params.Set("key_by_type", "true")

	var streams Streams
	raw, err := c.getJSON(ctx, fmt.Sprintf("/activities/%d/streams", activityID), params, &streams)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching streams of %d: %w", activityID, err)
	}
	return streams, raw, nil
}

// RateLimitStatus returns the current rate limit status
func (c *Client) RateLimitStatus() (shortRemaining, dailyRemaining int) {
	return c.rateLimiter.Status()
}

// getJSON decodes the response into v and returns the raw body
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, v any) (json.RawMessage, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.rateLimiter.UpdateFromHeaders(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return body, nil
}
