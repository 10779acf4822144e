// Package llm is the HTTP client for the summarization endpoint. Every call
// goes through the shared circuit breaker; when the circuit is open, callers
// get ErrUnavailable immediately and fall back to basic summaries.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sevigo/code-atlas/internal/config"
	"github.com/sevigo/code-atlas/internal/quality"
)

// ErrUnavailable is returned without issuing a request when the circuit
// breaker is open.
var ErrUnavailable = errors.New("llm unavailable: circuit breaker is open")

// Input size limits per summarization level, in characters.
const (
	maxSymbolCodeChars     = 4000
	maxFilePreviewChars    = 6000
	maxSymbolsContextChars = 3000
	maxModuleContextChars  = 6000
	maxRepoContextChars    = 8000
	maxChunkContentChars   = 6000
)

// Summary is the result of one summarization call.
type Summary struct {
	Text   string
	Tokens int
}

// Client talks to an OpenAI-style /v1/responses endpoint.
type Client struct {
	cfg        config.LLMConfig
	httpClient *http.Client
	prompts    *PromptManager
	tracker    *quality.Tracker
	logger     *slog.Logger

	sleep func(time.Duration)
}

// NewClient builds the client. The tracker's circuit breaker gates every
// request.
func NewClient(cfg config.LLMConfig, tracker *quality.Tracker, logger *slog.Logger) (*Client, error) {
	prompts, err := NewPromptManager()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		prompts:    prompts,
		tracker:    tracker,
		logger:     logger.With("component", "llm"),
		sleep:      time.Sleep,
	}, nil
}

// SummarizeSymbol produces a natural-language summary for one code symbol.
func (c *Client) SummarizeSymbol(ctx context.Context, name, kind, code, path, lang string) (Summary, error) {
	prompt, err := c.prompts.Render(SymbolSummaryPrompt, map[string]string{
		"Name":     name,
		"Kind":     kind,
		"Code":     clamp(code, maxSymbolCodeChars),
		"Path":     path,
		"Language": lang,
	})
	if err != nil {
		return Summary{}, err
	}
	return c.generate(ctx, prompt)
}

// SummarizeFile produces a file-level summary from a content preview and the
// rendered symbol list.
func (c *Client) SummarizeFile(ctx context.Context, path, preview, symbolsContext string) (Summary, error) {
	prompt, err := c.prompts.Render(FileSummaryPrompt, map[string]string{
		"Path":           path,
		"Preview":        clamp(preview, maxFilePreviewChars),
		"SymbolsContext": clamp(symbolsContext, maxSymbolsContextChars),
	})
	if err != nil {
		return Summary{}, err
	}
	return c.generate(ctx, prompt)
}

// SummarizeModule produces a folder-level summary from its child file
// summaries.
func (c *Client) SummarizeModule(ctx context.Context, modulePath, filesContext, repoID string) (Summary, error) {
	prompt, err := c.prompts.Render(ModuleSummaryPrompt, map[string]string{
		"ModulePath":   modulePath,
		"FilesContext": clamp(filesContext, maxModuleContextChars),
		"RepoID":       repoID,
	})
	if err != nil {
		return Summary{}, err
	}
	return c.generate(ctx, prompt)
}

// SummarizeRepo produces the repository overview from its module summaries.
func (c *Client) SummarizeRepo(ctx context.Context, repoID, modulesContext string) (Summary, error) {
	prompt, err := c.prompts.Render(RepoSummaryPrompt, map[string]string{
		"RepoID":         repoID,
		"ModulesContext": clamp(modulesContext, maxRepoContextChars),
	})
	if err != nil {
		return Summary{}, err
	}
	return c.generate(ctx, prompt)
}

type responseBody struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	// Legacy single-field shape.
	Text  string `json:"text"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// generate posts the prompt and retries transient failures with linear
// backoff. Client-class errors are terminal. Every attempt feeds the circuit
// breaker.
func (c *Client) generate(ctx context.Context, prompt string) (Summary, error) {
	if !c.tracker.AllowLLMCall() {
		return Summary{}, ErrUnavailable
	}

	payload, err := json.Marshal(map[string]any{
		"model":             c.cfg.Model,
		"input":             prompt,
		"temperature":       c.cfg.Temperature,
		"max_output_tokens": c.cfg.MaxOutputTokens,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to encode request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/v1/responses"

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying llm call", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return Summary{}, ctx.Err()
			default:
			}
			c.sleep(time.Duration(attempt) * time.Second)
		}

		summary, retryable, err := c.doRequest(ctx, url, payload)
		if err == nil {
			c.tracker.RecordLLMCall(true, summary.Tokens)
			return summary, nil
		}
		c.tracker.RecordLLMCall(false, 0)
		lastErr = err
		if !retryable {
			return Summary{}, err
		}
	}
	return Summary{}, fmt.Errorf("llm call failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) doRequest(ctx context.Context, url string, payload []byte) (Summary, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Summary{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors and timeouts are retryable.
		return Summary{}, true, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("llm returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return Summary{}, resp.StatusCode >= 500, err
	}

	var body responseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Summary{}, false, fmt.Errorf("failed to decode llm response: %w", err)
	}

	var text, reasoning strings.Builder
	for _, item := range body.Output {
		for _, part := range item.Content {
			switch part.Type {
			case "output_text":
				text.WriteString(part.Text)
			case "reasoning_text":
				reasoning.WriteString(part.Text)
			}
		}
	}
	if text.Len() == 0 && body.Text != "" {
		text.WriteString(body.Text)
	}
	if reasoning.Len() > 0 {
		c.logger.Debug("llm reasoning captured", "chars", reasoning.Len())
	}

	result := strings.TrimSpace(text.String())
	if result == "" {
		return Summary{}, false, errors.New("llm response contained no output text")
	}

	tokens := body.Usage.TotalTokens
	if tokens == 0 {
		tokens = body.Usage.InputTokens + body.Usage.OutputTokens
	}
	if tokens == 0 {
		tokens = estimateTokens(result)
	}
	return Summary{Text: result, Tokens: tokens}, false, nil
}

// estimateTokens is the usual four-characters-per-token approximation, used
// when the endpoint reports no usage.
func estimateTokens(text string) int {
	return len(text)/4 + 1
}

func clamp(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
