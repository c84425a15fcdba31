package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
	"github.com/liliganster/tp-companion/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, apiKey, model string, timeout time.Duration, exec *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
	}
}

func (c *Client) ExtractExpense(ctx context.Context, expenseType domain.ExpenseType, artifact ports.Artifact) (string, error) {
	return c.generate(ctx, "extract expense", buildExpensePrompt(expenseType), artifact)
}

func (c *Client) ExtractCallSheet(ctx context.Context, artifact ports.Artifact) (string, error) {
	return c.generate(ctx, "extract call sheet", callSheetPrompt, artifact)
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string  `json:"responseMimeType"`
		Temperature      float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func buildRequest(prompt string, artifact ports.Artifact) generateRequest {
	parts := []part{{Text: prompt}}
	if strings.TrimSpace(artifact.Text) != "" {
		parts = append(parts, part{Text: "Document text:\n" + artifact.Text})
	} else {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: artifact.MimeType,
			Data:     base64.StdEncoding.EncodeToString(artifact.Data),
		}})
	}

	var req generateRequest
	req.Contents = []content{{Role: "user", Parts: parts}}
	req.GenerationConfig.ResponseMimeType = "application/json"
	return req
}

func (c *Client) generate(ctx context.Context, operation, prompt string, artifact ports.Artifact) (string, error) {
	if c.apiKey == "" {
		return "", domain.WrapError(domain.ErrConfiguration, operation, errors.New("gemini api key not set"))
	}
	body, err := json.Marshal(buildRequest(prompt, artifact))
	if err != nil {
		return "", fmt.Errorf("marshal %s request: %w", operation, err)
	}
	endpoint := c.baseURL + "/v1beta/models/" + url.PathEscape(c.model) + ":generateContent"

	resp, err := resilience.Call(ctx, c.exec, "gemini.generate", func(ctx context.Context) (generateResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return generateResponse{}, fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)

		var out generateResponse
		err = resilience.DoJSON(c.httpClient, req, "gemini", operation, &out)
		return out, err
	}, classifyGeminiError)
	if err != nil {
		return "", resilience.WrapUpstream(operation, err)
	}
	return answerText(operation, resp)
}

func answerText(operation string, resp generateResponse) (string, error) {
	if reason := resp.PromptFeedback.BlockReason; reason != "" {
		return "", domain.WrapError(domain.ErrUpstream, operation, fmt.Errorf("prompt blocked: %s", reason))
	}
	if len(resp.Candidates) == 0 {
		return "", domain.WrapError(domain.ErrUpstream, operation, errors.New("no candidates returned"))
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", domain.WrapError(domain.ErrParse, operation, fmt.Errorf("empty answer (finish reason %s)", resp.Candidates[0].FinishReason))
	}
	return text, nil
}
