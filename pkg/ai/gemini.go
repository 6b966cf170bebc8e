package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Google AI Studio (Gemini) API with function
// calling enabled.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// GeminiOption customizes the client.
type GeminiOption func(*GeminiClient)

// WithBaseURL overrides the API endpoint. Tests point this at a local
// httptest server.
func WithBaseURL(url string) GeminiOption {
	return func(c *GeminiClient) {
		if strings.TrimSpace(url) != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// NewGeminiClient constructs a client for the given model with the provided
// API key.
func NewGeminiClient(apiKey, model string, opts ...GeminiOption) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	model = normalizeModel(model)
	if model == "" {
		return nil, fmt.Errorf("gemini model required")
	}
	c := &GeminiClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate sends the conversation and tool catalog, returning either final
// text or the tool calls the model requested.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (Reply, error) {
	reqBody := generateRequest{
		Contents: contentsFromMessages(req.Messages),
	}
	if strings.TrimSpace(req.SystemPrompt) != "" {
		reqBody.SystemInstruction = &content{
			Parts: []part{{Text: req.SystemPrompt}},
		}
	}
	if len(req.Tools) > 0 {
		decls := make([]functionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, functionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		reqBody.Tools = []toolSpec{{FunctionDeclarations: decls}}
	}

	var resp generateResponse
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	if err := c.doJSON(ctx, url, reqBody, &resp); err != nil {
		return Reply{}, err
	}
	if len(resp.Candidates) == 0 {
		return Reply{}, fmt.Errorf("empty response from gemini")
	}

	var reply Reply
	var text strings.Builder
	callSeq := 0
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.FunctionCall != nil {
			callSeq++
			id := p.FunctionCall.ID
			if id == "" {
				// The API does not always assign call ids; synthesize
				// stable ones so results stay correlated.
				id = fmt.Sprintf("%s-%d", p.FunctionCall.Name, callSeq)
			}
			args := p.FunctionCall.Args
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{
				ID:   id,
				Name: p.FunctionCall.Name,
				Args: args,
			})
			continue
		}
		text.WriteString(p.Text)
	}
	reply.Text = text.String()
	if reply.Text == "" && len(reply.ToolCalls) == 0 {
		return Reply{}, fmt.Errorf("empty response from gemini")
	}
	return reply, nil
}

func contentsFromMessages(messages []Message) []content {
	contents := make([]content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleModel:
			c := content{Role: "model"}
			if msg.Text != "" {
				c.Parts = append(c.Parts, part{Text: msg.Text})
			}
			for _, call := range msg.ToolCalls {
				c.Parts = append(c.Parts, part{
					FunctionCall: &functionCall{ID: call.ID, Name: call.Name, Args: call.Args},
				})
			}
			contents = append(contents, c)
		case RoleTool:
			if msg.ToolResult == nil {
				continue
			}
			// Function responses travel in a user-role content with the
			// serialized tool output wrapped in a response object.
			contents = append(contents, content{
				Role: "user",
				Parts: []part{{
					FunctionResponse: &functionResponse{
						ID:   msg.ToolResult.CallID,
						Name: msg.ToolResult.Name,
						Response: map[string]string{
							"content": msg.ToolResult.Content,
						},
					},
				}},
			})
		default:
			contents = append(contents, content{
				Role:  "user",
				Parts: []part{{Text: msg.Text}},
			})
		}
	}
	return contents
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	model = strings.TrimPrefix(model, "models/")
	return model
}

func (c *GeminiClient) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("gemini api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("gemini api error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type functionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type functionResponse struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Response any    `json:"response"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type functionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

type toolSpec struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type generateRequest struct {
	Contents          []content  `json:"contents"`
	SystemInstruction *content   `json:"systemInstruction,omitempty"`
	Tools             []toolSpec `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
