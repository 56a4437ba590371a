package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"media-organizer/pkg/logging"
)

const (
	geminiBaseURL  = "https://generativelanguage.googleapis.com"
	geminiModel    = "gemini-1.5-flash"
	geminiProvider = "gemini"

	// Bumping this invalidates cached responses when the prompt changes.
	geminiPromptVersion = "v1"
)

// ParsedMetadata is what the model extracts from a messy filename.
type ParsedMetadata struct {
	Title       string  `json:"title,omitempty"`
	Author      string  `json:"author,omitempty"`
	Narrator    string  `json:"narrator,omitempty"`
	Series      string  `json:"series,omitempty"`
	SeriesIndex float64 `json:"series_index,omitempty"`
	Year        int     `json:"year,omitempty"`
	SearchQuery string  `json:"search_query,omitempty"`
	Confidence  float64 `json:"confidence"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?```")
	braceJSONPattern  = regexp.MustCompile(`(?s)\{[^{}]*\}`)
)

// GeminiClient asks Gemini Flash to parse audiobook filenames into
// structured metadata. Responses are cached by file hash so a library
// rescan never repeats a model call.
type GeminiClient struct {
	http    *resty.Client
	limiter *rate.Limiter
	cache   *ResponseCache
	apiKey  string
	log     *logging.Logger
}

// NewGeminiClient creates a client. An empty API key yields a client
// that answers nothing, mirroring the other providers.
func NewGeminiClient(apiKey string, cache *ResponseCache, log *logging.Logger) *GeminiClient {
	return &GeminiClient{
		http: resty.New().
			SetBaseURL(geminiBaseURL).
			SetTimeout(30 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		cache:   cache,
		apiKey:  apiKey,
		log:     log,
	}
}

// SetBaseURL overrides the API endpoint, for tests.
func (c *GeminiClient) SetBaseURL(url string) {
	c.http.SetBaseURL(url)
}

// ParseFilename extracts metadata from a filename, with the parent
// folder as extra context. Returns nil when the client has no key or
// the model produced nothing usable.
func (c *GeminiClient) ParseFilename(ctx context.Context, filename, folderName, fileHash string) (*ParsedMetadata, error) {
	if c.apiKey == "" || filename == "" {
		return nil, nil
	}

	cacheKey := ""
	if fileHash != "" {
		cacheKey = fmt.Sprintf("parse_filename:%s:%s", geminiPromptVersion, fileHash)
		var cached ParsedMetadata
		if c.cache.Get(geminiProvider, cacheKey, &cached) {
			return &cached, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	prompt := "Parse this audiobook filename and extract metadata.\n\n" +
		"Filename: " + filename
	if folderName != "" {
		prompt += "\nFolder: " + folderName
	}
	prompt += "\n\nRules:\n" +
		"- Extract title, author, narrator, series, series_index, and year if present\n" +
		"- Generate a good search query to find this audiobook\n" +
		"- Rate your confidence from 0 to 1\n\n" +
		"Respond with ONLY a JSON object with keys: title, author, narrator, " +
		"series, series_index, year, search_query, confidence."

	var out geminiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}).
		SetResult(&out).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", geminiModel))
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gemini returned status %d", resp.StatusCode())
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, nil
	}

	parsed := extractParsedMetadata(out.Candidates[0].Content.Parts[0].Text)
	if parsed == nil {
		c.log.Warn("Gemini response had no parseable JSON", map[string]interface{}{
			"filename": filename,
		})
		return nil, nil
	}

	if cacheKey != "" {
		if err := c.cache.Put(geminiProvider, cacheKey, parsed); err != nil {
			c.log.Warn("Failed to cache Gemini response", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return parsed, nil
}

// extractParsedMetadata pulls a JSON object out of the model's text,
// tolerating markdown code fences and surrounding prose.
func extractParsedMetadata(text string) *ParsedMetadata {
	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	// Confidence defaults to 0.5 when the model omits it.
	parsed := ParsedMetadata{Confidence: 0.5}
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return &parsed
	}

	if m := braceJSONPattern.FindString(text); m != "" {
		parsed = ParsedMetadata{Confidence: 0.5}
		if err := json.Unmarshal([]byte(m), &parsed); err == nil {
			return &parsed
		}
	}
	return nil
}
