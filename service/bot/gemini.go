package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ChitChat/logger"
	"ChitChat/service/chat"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// GeminiConfig configures the generateContent endpoint and HTTP behavior.
type GeminiConfig struct {
	APIKey     string
	Model      string // e.g. gemini-1.5-flash
	BaseURL    string
	HTTPClient *http.Client
}

// Gemini calls the Google Gemini API. It honors the BotResponder contract:
// any transport error, bad status, or empty candidate is reported as an
// empty reply, never as an error.
type Gemini struct {
	cfg GeminiConfig
}

func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.APIKey == "" {
		logger.Warnf("[gemini] no api key configured, bot replies disabled")
	}
	return &Gemini{cfg: cfg}
}

var _ chat.BotResponder = (*Gemini)(nil)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type generateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Generate(ctx context.Context, prompt string, history []chat.HistoryEntry) string {
	if g.cfg.APIKey == "" {
		return ""
	}

	contents := make([]geminiContent, 0, len(history)+1)
	for _, h := range history {
		role := "user"
		if h.Role == chat.RoleBot {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: h.Text}}})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: prompt}}})

	body, err := json.Marshal(generateRequest{Contents: contents})
	if err != nil {
		logger.Errorf("[gemini] marshal request err=%v", err)
		return ""
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(g.cfg.BaseURL, "/"), g.cfg.Model, g.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logger.Errorf("[gemini] build request err=%v", err)
		return ""
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.cfg.HTTPClient.Do(req)
	if err != nil {
		logger.Errorf("[gemini] request failed err=%v", err)
		return ""
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		logger.Errorf("[gemini] read response err=%v", err)
		return ""
	}
	if resp.StatusCode != http.StatusOK {
		sample := raw
		if len(sample) > 256 {
			sample = sample[:256]
		}
		logger.Errorf("[gemini] bad status=%d body=%q", resp.StatusCode, sample)
		return ""
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		logger.Errorf("[gemini] decode response err=%v", err)
		return ""
	}
	if len(parsed.Candidates) == 0 {
		logger.Warnf("[gemini] no candidates in response")
		return ""
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String())
}
