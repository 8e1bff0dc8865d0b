// Package ai provides the last-resort field extractor backed by the
// Anthropic API. It is invoked only for records where rule-based matching
// and fallbacks both failed on required fields, and every value it returns
// is marked with ai-matched provenance by the caller.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"

	"dex/pkg/records"
)

const (
	defaultModel   = "claude-3-5-haiku-20241022"
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxDocumentLen = 20000
)

// ErrAPIKeyRequired is returned when an API key is needed but not provided.
var ErrAPIKeyRequired = errors.New("API key required")

// Client asks the model for field values rule matching could not find.
// It implements extract.AIFallback.
type Client struct {
	client         anthropic.Client
	model          anthropic.Model
	promptTemplate *template.Template
	maxRetries     int
	initialBackoff time.Duration
	callTimeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = anthropic.Model(model) }
}

// WithCallTimeout bounds each individual API call. Zero means the caller's
// context is the only bound.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.callTimeout = d }
}

// New creates an extraction fallback client. Env var ANTHROPIC_API_KEY takes
// precedence over the explicit apiKey.
func New(apiKey string, opts ...Option) (*Client, error) {
	envKey := os.Getenv("ANTHROPIC_API_KEY")
	if envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or provide via config", ErrAPIKeyRequired)
	}

	tmpl, err := template.New("extract").Parse(extractPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}

	c := &Client{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:          defaultModel,
		promptTemplate: tmpl,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ExtractRecord asks the model for the named fields given the document text.
// Fields the model cannot find come back absent; callers keep those null.
// One call covers all missing fields of a record, never one call per field.
func (c *Client) ExtractRecord(ctx context.Context, text string, fields []string) (records.Record, error) {
	if len(fields) == 0 {
		return records.Record{}, nil
	}
	if len(text) > maxDocumentLen {
		text = text[:maxDocumentLen]
	}

	prompt, err := c.renderPrompt(text, fields)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	resp, err := c.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseRecord(resp, fields)
}

func (c *Client) callWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) > 0 {
				content := message.Content[0]
				if content.Type == "text" {
					return content.Text, nil
				}
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return "", fmt.Errorf("unexpected response format: no content blocks")
		}

		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}

	return "", fmt.Errorf("failed after %d retries: %w", c.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		statusCode := apiErr.StatusCode
		return statusCode == 429 || statusCode >= 500
	}
	return false
}

// parseRecord pulls the requested fields out of the model's JSON reply.
// The reply may wrap the object in a markdown fence or surrounding prose;
// only the first JSON object is considered. Fields the model answered with
// JSON null are treated as absent.
func parseRecord(resp string, fields []string) (records.Record, error) {
	body := extractJSONObject(resp)
	if body == "" || !gjson.Valid(body) {
		return nil, fmt.Errorf("response is not a JSON object: %.120q", resp)
	}
	root := gjson.Parse(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("response is not a JSON object: %.120q", resp)
	}

	rec := records.Record{}
	for _, f := range fields {
		v := root.Get(f)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		rec[f] = v.Value()
	}
	return rec, nil
}

func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func (c *Client) renderPrompt(text string, fields []string) (string, error) {
	names, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	data := promptData{
		Fields:   string(names),
		Document: text,
	}
	if err := c.promptTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

type promptData struct {
	Fields   string
	Document string
}

const extractPromptTemplate = `Extract the following fields from the document below: {{.Fields}}

Rules:
- Respond with a single JSON object whose keys are exactly the requested field names.
- Use the literal value as written in the document; do not invent or compute values.
- If a field is not present in the document, set its value to null.
- Respond with JSON only, no commentary.

Document:
{{.Document}}`
