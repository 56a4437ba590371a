package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-organizer/internal/backend/store"
	"media-organizer/pkg/logging"
)

func testCache() *ResponseCache {
	return NewResponseCache(store.NewMemoryStore())
}

func testLogger() *logging.Logger {
	return logging.New(logging.ERROR, false)
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "the way of kings", NormalizeQuery("  The   Way of\tKings "))
	assert.Equal(t, "", NormalizeQuery("   "))
}

func TestGoogleBooksSearchParsesAndCaches(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "intitle:Dune+inauthor:Frank Herbert", r.URL.Query().Get("q"))
		assert.Equal(t, "books", r.URL.Query().Get("printType"))
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"totalItems": 1,
			"items": [{
				"id": "vol-1",
				"volumeInfo": {
					"title": "Dune",
					"authors": ["Frank Herbert"],
					"publisher": "Chilton Books",
					"publishedDate": "1965-08-01",
					"pageCount": 412,
					"imageLinks": {"thumbnail": "http://img/big", "smallThumbnail": "http://img/small"},
					"industryIdentifiers": [
						{"type": "ISBN_10", "identifier": "0441172717"},
						{"type": "ISBN_13", "identifier": "9780441172719"}
					]
				}
			}]
		}`))
	}))
	defer srv.Close()

	client := NewGoogleBooksClient("secret", testCache(), testLogger())
	client.SetBaseURL(srv.URL)

	results, err := client.SearchByTitleAuthor(context.Background(), "Dune", "Frank Herbert", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	book := results[0]
	assert.Equal(t, "vol-1", book.ID)
	assert.Equal(t, "Frank Herbert", book.Author())
	assert.Equal(t, 1965, book.Year())
	assert.Equal(t, "http://img/big", book.CoverURL)
	assert.Equal(t, "9780441172719", book.ISBN13)

	// Second identical search is served from the cache
	again, err := client.SearchByTitleAuthor(context.Background(), "Dune", "Frank Herbert", 5)
	require.NoError(t, err)
	assert.Equal(t, results, again)
	assert.Equal(t, 1, hits)
}

func TestGeminiParseFilenameExtractsAndCaches(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Contains(t, r.URL.Path, "generateContent")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{
				"content": {"parts": [{"text": "` + "```json\\n" +
			`{\"title\": \"The Way of Kings\", \"author\": \"Brandon Sanderson\", ` +
			`\"series\": \"The Stormlight Archive\", \"series_index\": 1, ` +
			`\"search_query\": \"The Way of Kings Brandon Sanderson\", \"confidence\": 0.9}` +
			"\\n```" + `"}]}
			}]
		}`))
	}))
	defer srv.Close()

	client := NewGeminiClient("secret", testCache(), testLogger())
	client.SetBaseURL(srv.URL)

	parsed, err := client.ParseFilename(context.Background(),
		"twok_b1_stormlight.m4b", "Sanderson", "hash-1")
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.Equal(t, "The Way of Kings", parsed.Title)
	assert.Equal(t, "Brandon Sanderson", parsed.Author)
	assert.Equal(t, 1.0, parsed.SeriesIndex)
	assert.Equal(t, 0.9, parsed.Confidence)

	// Same hash is served from the cache
	again, err := client.ParseFilename(context.Background(),
		"twok_b1_stormlight.m4b", "Sanderson", "hash-1")
	require.NoError(t, err)
	assert.Equal(t, parsed, again)
	assert.Equal(t, 1, hits)
}

func TestGeminiWithoutKeyAnswersNothing(t *testing.T) {
	client := NewGeminiClient("", testCache(), testLogger())

	parsed, err := client.ParseFilename(context.Background(), "book.m4b", "", "")
	require.NoError(t, err)
	assert.Nil(t, parsed)
}

func TestExtractParsedMetadata(t *testing.T) {
	bare := extractParsedMetadata(`{"title": "Dune", "search_query": "Dune Herbert"}`)
	require.NotNil(t, bare)
	assert.Equal(t, "Dune", bare.Title)
	assert.Equal(t, 0.5, bare.Confidence)

	prose := extractParsedMetadata(`Here you go: {"title": "Dune", "confidence": 0.8} hope that helps`)
	require.NotNil(t, prose)
	assert.Equal(t, 0.8, prose.Confidence)

	assert.Nil(t, extractParsedMetadata("I cannot parse that filename."))
}

func TestGoogleBooksWithoutKeyReturnsNothing(t *testing.T) {
	client := NewGoogleBooksClient("", testCache(), testLogger())

	results, err := client.SearchBooks(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGoogleBooksSearchByISBNCleansInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "isbn:044117271X", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("maxResults"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"totalItems": 0}`))
	}))
	defer srv.Close()

	client := NewGoogleBooksClient("secret", testCache(), testLogger())
	client.SetBaseURL(srv.URL)

	result, err := client.SearchByISBN(context.Background(), "0-4411-7271-x")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestAudnexusGetBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/books/B002V0QK4C", r.URL.Path)
		assert.Equal(t, "us", r.URL.Query().Get("region"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"asin": "B002V0QK4C",
			"title": "The Way of Kings",
			"authors": [{"name": "Brandon Sanderson"}],
			"narrators": [{"name": "Michael Kramer"}, {"name": "Kate Reading"}],
			"seriesPrimary": {"name": "The Stormlight Archive", "position": "1"},
			"publisherName": "Macmillan Audio",
			"releaseDate": "2010-08-31",
			"runtimeLengthMin": 2734,
			"genres": [{"name": "Fantasy"}]
		}`))
	}))
	defer srv.Close()

	client := NewAudnexusClient(srv.URL, testCache(), testLogger())

	book, err := client.GetBook(context.Background(), "B002V0QK4C", "")
	require.NoError(t, err)
	require.NotNil(t, book)

	assert.Equal(t, "Brandon Sanderson", book.Author())
	assert.Equal(t, "Michael Kramer", book.Narrator())
	assert.Equal(t, "The Stormlight Archive", book.Series)
	assert.Equal(t, 1.0, book.SeriesPosition)
	assert.Equal(t, 2010, book.Year())
	assert.Equal(t, 2734, book.RuntimeMinutes)

	pr := book.ProviderResult()
	assert.Equal(t, "audnexus", pr.Provider)
	assert.Equal(t, "B002V0QK4C", pr.ID)
	assert.Equal(t, 1.0, pr.SeriesIndex)
}

func TestAudnexusGetBookNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewAudnexusClient(srv.URL, testCache(), testLogger())

	book, err := client.GetBook(context.Background(), "B000000000", "us")
	require.NoError(t, err)
	assert.Nil(t, book)
}

func TestAudnexusSearchAcceptsSingleObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/books", r.URL.Path)
		assert.Equal(t, "leviathan wakes", r.URL.Query().Get("name"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"asin": "B00B5HZGUG", "title": "Leviathan Wakes"}`))
	}))
	defer srv.Close()

	client := NewAudnexusClient(srv.URL, testCache(), testLogger())

	results, err := client.SearchBooks(context.Background(), "leviathan wakes", "us", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Leviathan Wakes", results[0].Title)
}

func TestAudnexusGetAuthorBooks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/authors/B001IGFHW6", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"name": "Brandon Sanderson",
			"books": [
				{"asin": "A1", "title": "Mistborn"},
				{"asin": "A2", "title": "Elantris"}
			]
		}`))
	}))
	defer srv.Close()

	client := NewAudnexusClient(srv.URL, testCache(), testLogger())

	books, err := client.GetAuthorBooks(context.Background(), "B001IGFHW6", "us")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Mistborn", books[0].Title)
}

func TestResponseCacheRoundTrip(t *testing.T) {
	cache := testCache()

	var out []BookResult
	assert.False(t, cache.Get("google_books", "missing", &out))

	in := []BookResult{{ID: "x", Title: "X"}}
	require.NoError(t, cache.Put("google_books", "present", in))
	require.True(t, cache.Get("google_books", "present", &out))
	assert.Equal(t, in, out)
}
