// Package chatclient talks to an OpenAI-compatible /v1/chat/completions
// endpoint for the `chat` command. Grounded on internal/llm.OpenAIProvider's
// request/response shape and internal/agent.Stream's channel-based chunk
// delivery, combined into a single blocking call since taskline's chat
// command has no use for a live-updating transcript — it only needs the
// finished text.
package chatclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tallowoak/taskline/internal/value"
)

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// Request is everything the chat command gathers before calling out: the
// conversation plus the program's completion_args merged with any
// task-level overrides and extra_body, already flattened into Body.
type Request struct {
	Messages []Message
	Body     *value.OrderedMap
	NOutputs int

	// CorrelationID identifies this chat task's invocation across its
	// retry round trips (see HTTPClient.Chat); the caller stamps one
	// uuid.NewString() per `chat` command execution, not per HTTP attempt,
	// so every retry sent while topping up NOutputs carries the same ID.
	CorrelationID string
}

// Response holds one string per requested completion.
type Response struct {
	Outputs []string
}

// Client is the interpreter-facing seam; HTTPClient wraps the real HTTP
// transport, and tests substitute a fake.
type Client interface {
	Chat(ctx context.Context, req *Request) (*Response, error)
}

// HTTPClient is the concrete OpenAI-compatible implementation.
type HTTPClient struct {
	APIKey  string
	BaseURL string
	Model   string
	client  *http.Client

	// MaxRetries bounds how many extra requests are made to top up a
	// response that came back with fewer choices than NOutputs asked for.
	MaxRetries int
}

// NewHTTPClient builds a client against baseURL (defaulting to taskline's
// own local chat server per spec.md §6 when empty) and apiKey (defaulting
// to the placeholder "unused" local servers generally ignore).
func NewHTTPClient(apiKey, baseURL, model string) *HTTPClient {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if apiKey == "" {
		apiKey = "unused"
	}
	return &HTTPClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Model:      model,
		client:     &http.Client{Timeout: 120 * time.Second},
		MaxRetries: 2,
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireChoice struct {
	Index   int         `json:"index"`
	Message wireMessage `json:"message"`
}

type wireResponse struct {
	Choices []wireChoice `json:"choices"`
}

// Chat sends req.Messages plus req.Body (model, temperature, n, any
// extra_body fields already merged in) to BaseURL/v1/chat/completions and
// retries while the response carries fewer choices than NOutputs, up to
// MaxRetries additional round trips.
func (c *HTTPClient) Chat(ctx context.Context, req *Request) (*Response, error) {
	n := req.NOutputs
	if n <= 0 {
		n = 1
	}
	var outputs []string
	for attempt := 0; len(outputs) < n && attempt <= c.MaxRetries; attempt++ {
		want := n - len(outputs)
		resp, err := c.doRequest(ctx, req, want)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, resp...)
	}
	return &Response{Outputs: outputs}, nil
}

func (c *HTTPClient) doRequest(ctx context.Context, req *Request, n int) ([]string, error) {
	payload := value.NewOrderedMap()
	if req.Body != nil {
		for _, k := range req.Body.Keys() {
			v, _ := req.Body.Get(k)
			payload.Set(k, v)
		}
	}
	if _, ok := payload.Get("model"); !ok && c.Model != "" {
		payload.Set("model", value.String(c.Model))
	}
	payload.Set("n", value.Int(int64(n)))

	messages := make([]wireMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = wireMessage{Role: m.Role, Content: m.Content}
	}

	body, err := marshalPayload(payload, messages)
	if err != nil {
		return nil, fmt.Errorf("chatclient: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(c.BaseURL, "/")+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("chatclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if req.CorrelationID != "" {
		httpReq.Header.Set("X-Correlation-Id", req.CorrelationID)
	}
	if strings.Contains(string(body), `"stream":true`) {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chatclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Type") == "text/event-stream" {
		return readSSE(resp.Body)
	}

	var decoded wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("chatclient: decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("chatclient: http %d", resp.StatusCode)
	}
	out := make([]string, len(decoded.Choices))
	for i, ch := range decoded.Choices {
		out[i] = ch.Message.Content
	}
	return out, nil
}

// marshalPayload builds the final JSON body: every field already in
// payload, plus "messages".
func marshalPayload(payload *value.OrderedMap, messages []wireMessage) ([]byte, error) {
	raw := make(map[string]any, payload.Len()+1)
	for _, k := range payload.Keys() {
		v, _ := payload.Get(k)
		raw[k] = toJSONAny(v)
	}
	raw["messages"] = messages
	return json.Marshal(raw)
}

func toJSONAny(v value.Value) any {
	switch v.Kind {
	case value.KindNull:
		return nil
	case value.KindBool:
		return v.Bool
	case value.KindInt:
		return v.Int
	case value.KindFloat:
		return v.Float
	case value.KindString:
		return v.Str
	case value.KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = toJSONAny(item)
		}
		return out
	case value.KindMap:
		out := make(map[string]any, v.Map.Len())
		for _, k := range v.Map.Keys() {
			item, _ := v.Map.Get(k)
			out[k] = toJSONAny(item)
		}
		return out
	}
	return nil
}

// readSSE reads an OpenAI-style streaming response, concatenating each
// choice's delta content into the final string per choice index.
func readSSE(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var builders []strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" || data == "" {
			continue
		}
		var chunk struct {
			Choices []struct {
				Index int `json:"index"`
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		for _, ch := range chunk.Choices {
			for len(builders) <= ch.Index {
				builders = append(builders, strings.Builder{})
			}
			builders[ch.Index].WriteString(ch.Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("chatclient: reading stream: %w", err)
	}
	out := make([]string, len(builders))
	for i := range builders {
		out[i] = builders[i].String()
	}
	return out, nil
}
