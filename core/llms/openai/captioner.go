package openai

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/koscakluka/ema-vision/core/llms"
)

const (
	captionSystemPrompt = "You create detailed descriptions of images for future lookup."
	captionUserPrompt   = "Please describe the image in detail. Only respond with the description."
)

var ErrEmptyCaption = errors.New("empty caption")

// Captioner describes images with a vision model.
type Captioner struct {
	client *Client
	model  string
}

func NewCaptioner(client *Client, model string) *Captioner {
	if model == "" {
		model = DefaultCaptionModel
	}
	return &Captioner{client: client, model: model}
}

func (c *Captioner) Caption(ctx context.Context, png []byte) (string, error) {
	response, err := c.client.Prompt(ctx,
		llms.WithModel(c.model),
		llms.WithSystemPrompt(captionSystemPrompt),
		llms.WithMessages(llms.Message{
			Role: llms.RoleUser,
			Content: []llms.ContentPart{
				llms.TextPart(captionUserPrompt),
				llms.ImagePart("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)),
			},
		}),
	)
	if err != nil {
		return "", err
	}
	if response.Content == "" {
		return "", ErrEmptyCaption
	}
	return response.Content, nil
}
