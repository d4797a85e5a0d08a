package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hupe1980/toolmesh/logging"
)

// DefaultBaseURL is the public wttr.in endpoint.
const DefaultBaseURL = "https://wttr.in"

// StatusError is returned when wttr.in answers with a non-200 status.
type StatusError struct {
	City       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("weather lookup for %s returned status %d", e.City, e.StatusCode)
}

// Options configure a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Logger  logging.Logger
}

// Client looks up the weather for a city.
type Client struct {
	client *resty.Client
	opts   Options
}

// NewClient creates a wttr.in client.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL: DefaultBaseURL,
		Timeout: 30 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", "curl/8.5.0")

	return &Client{client: client, opts: opts}
}

// Lookup returns the trimmed format=3 line for city, e.g. "Paris: ☀️ +15°C".
func (c *Client) Lookup(ctx context.Context, city string) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("city", city).
		SetQueryParam("format", "3").
		Get("/{city}")
	if err != nil {
		return "", fmt.Errorf("weather lookup for %s: %w", city, err)
	}

	if resp.StatusCode() != 200 {
		return "", &StatusError{City: city, StatusCode: resp.StatusCode()}
	}

	return strings.TrimSpace(resp.String()), nil
}

// Report is the string form of Lookup handed to agents. It never fails.
func (c *Client) Report(ctx context.Context, city string) string {
	result, err := c.Lookup(ctx, city)
	if err == nil {
		c.opts.Logger.Info("weather.lookup.success", "city", city, "result", result)
		return result
	}

	c.opts.Logger.Error("weather.lookup.error", "city", city, "error", err.Error())

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("Could not retrieve weather data for %s.", city)
	}

	return fmt.Sprintf("An error occurred while fetching the weather %s.", city)
}
