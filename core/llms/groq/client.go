// Package groq is a chat completions client for Groq's OpenAI compatible
// API.
package groq

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultURL   = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel = "meta-llama/llama-4-scout-17b-16e-instruct"
)

type Client struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithURL points the client at another chat completions endpoint.
func WithURL(url string) ClientOption {
	return func(c *Client) {
		c.url = url
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey: apiKey,
		model:  DefaultModel,
		url:    DefaultURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) modelFor(requested string) string {
	if requested != "" {
		return requested
	}
	return c.model
}
