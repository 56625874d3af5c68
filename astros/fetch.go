package astros

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/humblenginr/astros_dag/xcom"
)

type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
}

type Option func(*Client)

func WithURL(u string) Option { return func(c *Client) { c.url = u } }

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithTimeout bounds a single request. Zero leaves it unbounded.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

func NewClient(opts ...Option) *Client {
	c := &Client{url: DefaultURL, http: http.DefaultClient}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Roster performs one GET against the endpoint and decodes the payload.
// There is no retry here; that is the orchestrator's call.
func (c *Client) Roster(ctx context.Context) (*Roster, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{URL: c.url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var payload struct {
		Number *int      `json:"number"`
		People *[]Person `json:"people"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.url, err)
	}
	if payload.Number == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, "number")
	}
	if payload.People == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, "people")
	}
	return &Roster{Number: *payload.Number, People: *payload.People}, nil
}

// FetchAstronauts loads the roster, publishes the head count to sink and
// returns the people shaped for fan-out. Nothing is published on failure.
func (c *Client) FetchAstronauts(ctx context.Context, sink xcom.ResultSink) ([][]Person, error) {
	r, err := c.Roster(ctx)
	if err != nil {
		return nil, err
	}
	if err := sink.Push(ctx, NumberKey, r.Number); err != nil {
		return nil, fmt.Errorf("publish %s: %w", NumberKey, err)
	}
	return Expand(r.People), nil
}

// Expand wraps every person in its own one-element argument list.
func Expand(people []Person) [][]Person {
	out := make([][]Person, 0, len(people))
	for _, p := range people {
		out = append(out, []Person{p})
	}
	return out
}
