// Package openai talks to OpenAI chat completions for streamed responses,
// one-shot requests and image captions.
package openai

import (
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultModel        = "gpt-4o"
	DefaultCaptionModel = "gpt-4o-mini"
)

type Client struct {
	client openai.Client
	model  string
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithModel sets the model used when a request does not name one.
func WithModel(model string) ClientOption {
	return func(o *clientOptions) {
		o.model = model
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient replaces the default traced HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	options := clientOptions{
		model:      DefaultModel,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(&options)
	}

	requestOptions := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(options.httpClient),
	}
	if options.baseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(options.baseURL))
	}

	return &Client{
		client: openai.NewClient(requestOptions...),
		model:  options.model,
	}
}

func (c *Client) modelFor(requested string) openai.ChatModel {
	if requested != "" {
		return openai.ChatModel(requested)
	}
	return openai.ChatModel(c.model)
}
