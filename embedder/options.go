package embedder

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type config struct {
	model      string
	token      string
	dim        int
	rps        float64
	httpClient *http.Client
	logger     logrus.FieldLogger
}

// Option configures the HTTP embedder.
type Option func(*config)

// WithModel sets the model name sent with each request.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithToken sets a bearer token for the service.
func WithToken(token string) Option {
	return func(c *config) { c.token = token }
}

// WithDimension sets the expected vector width. Responses of any other
// width are rejected.
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithRateLimit caps requests per second; zero or negative disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *config) { c.rps = rps }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *config) { c.logger = logger }
}

func defaultConfig() config {
	return config{
		model:      "openai/clip-vit-base-patch32",
		dim:        DefaultDimension,
		rps:        5,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logrus.StandardLogger(),
	}
}
