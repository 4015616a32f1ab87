package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"occtitles/pkg/config"
	"occtitles/pkg/request"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// APIError is an error object returned by the remote API.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("openai api error: %s (%s)", e.Message, e.Type)
	}
	return fmt.Sprintf("openai api error: %s", e.Message)
}

// Client talks to the assistants endpoints of an OpenAI-compatible API.
type Client struct {
	rc      *request.Client
	baseURL string
	beta    string
	log     *slog.Logger
}

// NewClient creates a new assistants client.
func NewClient(cfg config.AssistantConfig, rc *request.Client) (*Client, error) {
	if rc == nil {
		return nil, errors.New("request client is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	beta := cfg.BetaHeader
	if beta == "" {
		beta = "assistants=v2"
	}
	return &Client{
		rc:      rc,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		beta:    beta,
		log:     slog.With("component", "assistant_client"),
	}, nil
}

func (c *Client) headers(apiKey string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
		"OpenAI-Beta":   c.beta,
	}
}

func (c *Client) threadURL(threadID string, parts ...string) string {
	u := c.baseURL + "/threads/" + url.PathEscape(threadID)
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

// CreateThread creates an empty thread.
func (c *Client) CreateThread(ctx context.Context, creds Credentials) (*Thread, error) {
	var th Thread
	if err := c.post(ctx, "threads.create", creds.APIKey, c.baseURL+"/threads", struct{}{}, &th); err != nil {
		return nil, err
	}
	if th.ID == "" {
		return nil, errors.New("thread response carried no id")
	}
	return &th, nil
}

// AddMessage appends a message to a thread.
func (c *Client) AddMessage(ctx context.Context, creds Credentials, threadID, role, content string) (*Message, error) {
	body := map[string]string{"role": role, "content": content}
	var msg Message
	if err := c.post(ctx, "messages.create", creds.APIKey, c.threadURL(threadID, "messages"), body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CreateRun starts the credentials' assistant on a thread.
func (c *Client) CreateRun(ctx context.Context, creds Credentials, threadID string) (*Run, error) {
	body := map[string]string{"assistant_id": creds.AssistantID}
	var run Run
	if err := c.post(ctx, "runs.create", creds.APIKey, c.threadURL(threadID, "runs"), body, &run); err != nil {
		return nil, err
	}
	if run.ID == "" {
		return nil, errors.New("run response carried no id")
	}
	return &run, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, creds Credentials, threadID, runID string) (*Run, error) {
	var run Run
	if err := c.get(ctx, "runs.get", creds.APIKey, c.threadURL(threadID, "runs", url.PathEscape(runID)), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// SubmitToolOutputs answers every pending tool call of a run in one batch.
func (c *Client) SubmitToolOutputs(ctx context.Context, creds Credentials, threadID, runID string, outputs []ToolOutput) (*Run, error) {
	body := struct {
		ToolOutputs []ToolOutput `json:"tool_outputs"`
	}{ToolOutputs: outputs}
	var run Run
	u := c.threadURL(threadID, "runs", url.PathEscape(runID), "submit_tool_outputs")
	if err := c.post(ctx, "runs.submit_tool_outputs", creds.APIKey, u, body, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// CancelRun asks the API to cancel a run.
func (c *Client) CancelRun(ctx context.Context, creds Credentials, threadID, runID string) error {
	u := c.threadURL(threadID, "runs", url.PathEscape(runID), "cancel")
	return c.post(ctx, "runs.cancel", creds.APIKey, u, struct{}{}, nil)
}

// ListMessages returns the raw messages list of a thread, newest first.
func (c *Client) ListMessages(ctx context.Context, creds Credentials, threadID string) ([]byte, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "messages.list", creds.APIKey, c.threadURL(threadID, "messages"), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ListModels returns the model ids visible to apiKey.
func (c *Client) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	var mresp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.get(ctx, "models.list", apiKey, c.baseURL+"/models", &mresp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(mresp.Data))
	for _, m := range mresp.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// GetAssistant retrieves the configured assistant.
func (c *Client) GetAssistant(ctx context.Context, creds Credentials) (*Assistant, error) {
	var a Assistant
	u := c.baseURL + "/assistants/" + url.PathEscape(creds.AssistantID)
	if err := c.get(ctx, "assistants.get", creds.APIKey, u, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ValidateKey checks that apiKey can list models and, if model is set, that it is available.
func (c *Client) ValidateKey(ctx context.Context, apiKey, model string) error {
	if apiKey == "" {
		return errors.New("api key is missing")
	}
	ids, err := c.ListModels(ctx, apiKey)
	if err != nil {
		return fmt.Errorf("invalid api key: %w", err)
	}
	if model == "" {
		return nil
	}
	for _, id := range ids {
		if id == model {
			return nil
		}
	}
	return fmt.Errorf("model %q not available for this key", model)
}

// ValidateAssistant checks that the assistant id resolves for the key.
func (c *Client) ValidateAssistant(ctx context.Context, creds Credentials) error {
	if creds.APIKey == "" || creds.AssistantID == "" {
		return errors.New("api key and assistant id are required")
	}
	a, err := c.GetAssistant(ctx, creds)
	if err != nil {
		return fmt.Errorf("invalid assistant id: %w", err)
	}
	if a.ID != creds.AssistantID {
		return fmt.Errorf("assistant id mismatch: got %q", a.ID)
	}
	return nil
}

// --- transport helpers ---

func (c *Client) post(ctx context.Context, op, apiKey, u string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	respBody, err := c.rc.Post(request.WithOperation(ctx, op), u, body, c.headers(apiKey))
	if err != nil {
		return c.wrap(op, err)
	}
	return decode(respBody, out)
}

func (c *Client) get(ctx context.Context, op, apiKey, u string, out any) error {
	respBody, err := c.rc.Get(request.WithOperation(ctx, op), u, c.headers(apiKey))
	if err != nil {
		return c.wrap(op, err)
	}
	return decode(respBody, out)
}

// wrap turns a transport StatusError carrying an API error object into *APIError.
func (c *Client) wrap(op string, err error) error {
	var se *request.StatusError
	if errors.As(err, &se) {
		if apiErr := parseAPIError(se.Body); apiErr != nil {
			apiErr.StatusCode = se.StatusCode
			c.log.Debug("API error", "op", op, "status", se.StatusCode, "message", apiErr.Message)
			return apiErr
		}
	}
	return err
}

func parseAPIError(body []byte) *APIError {
	var eb apiErrorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error == nil {
		return nil
	}
	return &APIError{Message: eb.Error.Message, Type: eb.Error.Type}
}

func decode(body []byte, out any) error {
	if apiErr := parseAPIError(body); apiErr != nil {
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
