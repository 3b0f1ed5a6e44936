package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Endpoint is the chat completions URL.
const Endpoint = "https://api.openai.com/v1/chat/completions"

type OpenAI struct {
	apiKey     string
	model      string
	httpClient HTTPClient
}

func NewOpenAI(apiKey string, httpClient HTTPClient) *OpenAI {
	return &OpenAI{
		apiKey:     apiKey,
		model:      DefaultModel,
		httpClient: httpClient,
	}
}

// WithModel overrides DefaultModel.
func (c *OpenAI) WithModel(model string) *OpenAI {
	if model != "" {
		c.model = model
	}
	return c
}

func (c *OpenAI) GetJSONCompletion(ctx context.Context, system, user string, rf ResponseFormat, result any) (*Usage, error) {
	request := Request{
		Model: c.model,
		Messages: []Message{
			{
				Role:    RoleSystem,
				Content: system,
			},
			{
				Role:    RoleUser,
				Content: user,
			},
		},
		ReasoningEffort: ReasoningEffortLow,
		ResponseFormat:  rf,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		Endpoint,
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("doing request: %w", err)
	}

	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != 200 {
		resBody, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("unexpected status code: %d: %s", res.StatusCode, resBody)
	}

	body, err = io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var response Response
	if err = json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(response.Choices) == 0 {
		return &response.Usage, fmt.Errorf("empty choices in response")
	}

	choice := response.Choices[0]

	if choice.FinishReason != FinishReasonStop {
		return &response.Usage, fmt.Errorf("unexpected finish reason: %v", choice.FinishReason)
	}

	if err = json.Unmarshal([]byte(choice.Message.Content), result); err != nil {
		return &response.Usage, fmt.Errorf("unmarshal response content: %w", err)
	}

	return &response.Usage, nil
}

// TrackName is the structured answer of a name suggestion.
type TrackName struct {
	Artist string `json:"artist"`
	Track  string `json:"track"`
}

var TrackNameFormat ResponseFormat = `{
  "type": "json_schema",
  "json_schema": {
    "name": "track_name_response",
    "schema": {
      "type": "object",
      "properties": {
        "artist": {
          "type": "string",
          "description": "performing artist(s) of the track, empty if unknown"
        },
        "track": {
          "type": "string",
          "description": "track title without artist, version tags like (Official Video) removed"
        }
      },
      "required": ["artist", "track"],
      "additionalProperties": false
    },
    "strict": true
  }
}`

const DefaultModel = "gpt-5-mini"
