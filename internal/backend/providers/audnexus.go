package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"media-organizer/internal/backend/models"
	"media-organizer/pkg/logging"
)

const audnexusProvider = "audnexus"

// AudiobookResult is one match from the Audnexus API.
type AudiobookResult struct {
	ASIN           string   `json:"asin"`
	Title          string   `json:"title"`
	Authors        []string `json:"authors"`
	Narrators      []string `json:"narrators"`
	Series         string   `json:"series,omitempty"`
	SeriesPosition float64  `json:"series_position,omitempty"`
	Publisher      string   `json:"publisher,omitempty"`
	ReleaseDate    string   `json:"release_date,omitempty"`
	Description    string   `json:"description,omitempty"`
	RuntimeMinutes int      `json:"runtime_minutes,omitempty"`
	CoverURL       string   `json:"cover_url,omitempty"`
	Genres         []string `json:"genres,omitempty"`
	Language       string   `json:"language,omitempty"`
}

// Author returns the primary author.
func (r AudiobookResult) Author() string {
	if len(r.Authors) > 0 {
		return r.Authors[0]
	}
	return ""
}

// Narrator returns the primary narrator.
func (r AudiobookResult) Narrator() string {
	if len(r.Narrators) > 0 {
		return r.Narrators[0]
	}
	return ""
}

// Year extracts the release year.
func (r AudiobookResult) Year() int {
	m := leadingYearPattern.FindString(r.ReleaseDate)
	if m == "" {
		return 0
	}
	year, _ := strconv.Atoi(m)
	return year
}

// ProviderResult converts the match into the normalized provider shape.
func (r AudiobookResult) ProviderResult() models.ProviderResult {
	return models.ProviderResult{
		Provider:    audnexusProvider,
		ID:          r.ASIN,
		Title:       r.Title,
		Author:      r.Author(),
		Narrator:    r.Narrator(),
		Series:      r.Series,
		SeriesIndex: r.SeriesPosition,
		Year:        r.Year(),
		Description: r.Description,
		CoverURL:    r.CoverURL,
	}
}

// Wire format of the Audnexus books endpoints.
type audnexusName struct {
	Name string `json:"name"`
}

type audnexusBook struct {
	ASIN          string         `json:"asin"`
	Title         string         `json:"title"`
	Authors       []audnexusName `json:"authors"`
	Narrators     []audnexusName `json:"narrators"`
	SeriesPrimary *struct {
		Name     string      `json:"name"`
		Position json.Number `json:"position"`
	} `json:"seriesPrimary"`
	PublisherName    string         `json:"publisherName"`
	ReleaseDate      string         `json:"releaseDate"`
	Summary          string         `json:"summary"`
	RuntimeLengthMin int            `json:"runtimeLengthMin"`
	Image            string         `json:"image"`
	Genres           []audnexusName `json:"genres"`
	Language         string         `json:"language"`
}

func names(list []audnexusName) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		if n.Name != "" {
			out = append(out, n.Name)
		}
	}
	return out
}

func (b audnexusBook) toResult() AudiobookResult {
	result := AudiobookResult{
		ASIN:           b.ASIN,
		Title:          b.Title,
		Authors:        names(b.Authors),
		Narrators:      names(b.Narrators),
		Publisher:      b.PublisherName,
		ReleaseDate:    b.ReleaseDate,
		Description:    b.Summary,
		RuntimeMinutes: b.RuntimeLengthMin,
		CoverURL:       b.Image,
		Genres:         names(b.Genres),
		Language:       b.Language,
	}
	if result.Title == "" {
		result.Title = "Unknown Title"
	}
	if b.SeriesPrimary != nil {
		result.Series = b.SeriesPrimary.Name
		if pos, err := b.SeriesPrimary.Position.Float64(); err == nil {
			result.SeriesPosition = pos
		}
	}
	return result
}

// AudnexusClient queries the public Audnexus API for Audible-based
// audiobook metadata. No API key is needed.
type AudnexusClient struct {
	http    *resty.Client
	limiter *rate.Limiter
	cache   *ResponseCache
	log     *logging.Logger
}

// NewAudnexusClient creates a client against the given base URL.
func NewAudnexusClient(baseURL string, cache *ResponseCache, log *logging.Logger) *AudnexusClient {
	return &AudnexusClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(2), 2),
		cache:   cache,
		log:     log,
	}
}

// GetBook fetches audiobook details by ASIN. A 404 is not an error; it
// returns nil.
func (c *AudnexusClient) GetBook(ctx context.Context, asin, region string) (*AudiobookResult, error) {
	if region == "" {
		region = "us"
	}

	cacheKey := fmt.Sprintf("asin:%s:%s", asin, region)
	var cached AudiobookResult
	if c.cache.Get(audnexusProvider, cacheKey, &cached) {
		return &cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var book audnexusBook
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("region", region).
		SetResult(&book).
		Get("/books/" + asin)
	if err != nil {
		return nil, fmt.Errorf("audnexus request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("audnexus returned %s", resp.Status())
	}

	result := book.toResult()
	if err := c.cache.Put(audnexusProvider, cacheKey, result); err != nil {
		c.log.Warn("Failed to cache Audnexus response", map[string]interface{}{"error": err.Error()})
	}
	return &result, nil
}

// SearchBooks searches by name. The endpoint may return either a single
// book or a list.
func (c *AudnexusClient) SearchBooks(ctx context.Context, query, region string, maxResults int) ([]AudiobookResult, error) {
	if region == "" {
		region = "us"
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	cacheKey := NormalizeQuery(fmt.Sprintf("search:%s:%s", query, region))
	var cached []AudiobookResult
	if c.cache.Get(audnexusProvider, cacheKey, &cached) {
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"name":   query,
			"region": region,
		}).
		Get("/books")
	if err != nil {
		return nil, fmt.Errorf("audnexus search failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("audnexus returned %s", resp.Status())
	}

	var books []audnexusBook
	if err := json.Unmarshal(resp.Body(), &books); err != nil {
		var single audnexusBook
		if err := json.Unmarshal(resp.Body(), &single); err != nil {
			return nil, fmt.Errorf("audnexus search returned unexpected body: %w", err)
		}
		books = []audnexusBook{single}
	}

	results := make([]AudiobookResult, 0, min(len(books), maxResults))
	for _, book := range books {
		if len(results) == maxResults {
			break
		}
		results = append(results, book.toResult())
	}

	if len(results) > 0 {
		if err := c.cache.Put(audnexusProvider, cacheKey, results); err != nil {
			c.log.Warn("Failed to cache Audnexus response", map[string]interface{}{"error": err.Error()})
		}
	}
	return results, nil
}

// GetAuthorBooks lists an author's books by author ASIN.
func (c *AudnexusClient) GetAuthorBooks(ctx context.Context, authorASIN, region string) ([]AudiobookResult, error) {
	if region == "" {
		region = "us"
	}

	cacheKey := fmt.Sprintf("author:%s:%s", authorASIN, region)
	var cached []AudiobookResult
	if c.cache.Get(audnexusProvider, cacheKey, &cached) {
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var author struct {
		Books []audnexusBook `json:"books"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("region", region).
		SetResult(&author).
		Get("/authors/" + authorASIN)
	if err != nil {
		return nil, fmt.Errorf("audnexus author lookup failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("audnexus returned %s", resp.Status())
	}

	results := make([]AudiobookResult, 0, len(author.Books))
	for _, book := range author.Books {
		results = append(results, book.toResult())
	}

	if len(results) > 0 {
		if err := c.cache.Put(audnexusProvider, cacheKey, results); err != nil {
			c.log.Warn("Failed to cache Audnexus response", map[string]interface{}{"error": err.Error()})
		}
	}
	return results, nil
}
