package providers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"media-organizer/internal/backend/models"
	"media-organizer/pkg/logging"
)

const (
	googleBooksBaseURL  = "https://www.googleapis.com/books/v1/volumes"
	googleBooksProvider = "google_books"
)

var leadingYearPattern = regexp.MustCompile(`^(\d{4})`)

// BookResult is one match from the Google Books volumes API.
type BookResult struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Description   string   `json:"description,omitempty"`
	PageCount     int      `json:"page_count,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
	ISBN10        string   `json:"isbn_10,omitempty"`
	ISBN13        string   `json:"isbn_13,omitempty"`
}

// Author returns the primary author.
func (r BookResult) Author() string {
	if len(r.Authors) > 0 {
		return r.Authors[0]
	}
	return ""
}

// Year extracts the publication year from the published date.
func (r BookResult) Year() int {
	m := leadingYearPattern.FindString(r.PublishedDate)
	if m == "" {
		return 0
	}
	year, _ := strconv.Atoi(m)
	return year
}

// ProviderResult converts the match into the normalized provider shape.
func (r BookResult) ProviderResult() models.ProviderResult {
	return models.ProviderResult{
		Provider:    googleBooksProvider,
		ID:          r.ID,
		Title:       r.Title,
		Author:      r.Author(),
		Year:        r.Year(),
		Description: r.Description,
		CoverURL:    r.CoverURL,
	}
}

// Wire format of the volumes endpoint.
type googleVolumeList struct {
	TotalItems int            `json:"totalItems"`
	Items      []googleVolume `json:"items"`
}

type googleVolume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title         string   `json:"title"`
		Authors       []string `json:"authors"`
		Publisher     string   `json:"publisher"`
		PublishedDate string   `json:"publishedDate"`
		Description   string   `json:"description"`
		PageCount     int      `json:"pageCount"`
		Categories    []string `json:"categories"`
		ImageLinks    struct {
			Thumbnail      string `json:"thumbnail"`
			SmallThumbnail string `json:"smallThumbnail"`
		} `json:"imageLinks"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
	} `json:"volumeInfo"`
}

func (v googleVolume) toBookResult() BookResult {
	info := v.VolumeInfo
	result := BookResult{
		ID:            v.ID,
		Title:         info.Title,
		Authors:       info.Authors,
		Publisher:     info.Publisher,
		PublishedDate: info.PublishedDate,
		Description:   info.Description,
		PageCount:     info.PageCount,
		Categories:    info.Categories,
	}
	// Prefer the larger thumbnail
	result.CoverURL = info.ImageLinks.Thumbnail
	if result.CoverURL == "" {
		result.CoverURL = info.ImageLinks.SmallThumbnail
	}
	for _, ident := range info.IndustryIdentifiers {
		switch ident.Type {
		case "ISBN_10":
			result.ISBN10 = ident.Identifier
		case "ISBN_13":
			result.ISBN13 = ident.Identifier
		}
	}
	return result
}

// GoogleBooksClient queries the Google Books volumes API with rate
// limiting and a store-backed response cache.
type GoogleBooksClient struct {
	http    *resty.Client
	limiter *rate.Limiter
	cache   *ResponseCache
	apiKey  string
	log     *logging.Logger
}

// NewGoogleBooksClient creates a client. An empty API key disables
// lookups; every search returns no results.
func NewGoogleBooksClient(apiKey string, cache *ResponseCache, log *logging.Logger) *GoogleBooksClient {
	return &GoogleBooksClient{
		http: resty.New().
			SetBaseURL(googleBooksBaseURL).
			SetTimeout(10 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		cache:   cache,
		apiKey:  apiKey,
		log:     log,
	}
}

// SetBaseURL points the client at a different endpoint.
func (c *GoogleBooksClient) SetBaseURL(url string) {
	c.http.SetBaseURL(url)
}

// SearchBooks runs a free-form volumes query.
func (c *GoogleBooksClient) SearchBooks(ctx context.Context, query string, maxResults int) ([]BookResult, error) {
	if c.apiKey == "" {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	cacheKey := NormalizeQuery(query)
	var cached []BookResult
	if c.cache.Get(googleBooksProvider, cacheKey, &cached) {
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var list googleVolumeList
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":          query,
			"maxResults": strconv.Itoa(maxResults),
			"key":        c.apiKey,
			"printType":  "books",
		}).
		SetResult(&list).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("google books request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("google books returned %s", resp.Status())
	}

	results := make([]BookResult, 0, len(list.Items))
	for _, item := range list.Items {
		results = append(results, item.toBookResult())
	}

	if len(results) > 0 {
		if err := c.cache.Put(googleBooksProvider, cacheKey, results); err != nil {
			c.log.Warn("Failed to cache Google Books response", map[string]interface{}{"error": err.Error()})
		}
	}
	return results, nil
}

var isbnCleanPattern = regexp.MustCompile(`[^0-9X]`)

// SearchByISBN looks up a single volume by ISBN-10 or ISBN-13.
func (c *GoogleBooksClient) SearchByISBN(ctx context.Context, isbn string) (*BookResult, error) {
	clean := isbnCleanPattern.ReplaceAllString(strings.ToUpper(isbn), "")
	if clean == "" {
		return nil, nil
	}
	results, err := c.SearchBooks(ctx, "isbn:"+clean, 1)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return &results[0], nil
}

// SearchByTitleAuthor runs a structured intitle/inauthor query.
func (c *GoogleBooksClient) SearchByTitleAuthor(ctx context.Context, title, author string, maxResults int) ([]BookResult, error) {
	var parts []string
	if title != "" {
		parts = append(parts, "intitle:"+title)
	}
	if author != "" {
		parts = append(parts, "inauthor:"+author)
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return c.SearchBooks(ctx, strings.Join(parts, "+"), maxResults)
}
