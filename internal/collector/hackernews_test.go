package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHackerNewsFetcher(t *testing.T) {
	items := map[string]hnItem{
		"1": {ID: 1, Title: "Nuclear startup raises money", URL: "https://example.com/nuclear", By: "pg", Time: 1721124000, Type: "story", Score: 100},
		"2": {ID: 2, Title: "a job post", Type: "job"},
		"4": {ID: 4, Title: "Ask HN: GPU advice?", Text: "<p>Which GPU?</p>", By: "dang", Time: 1721124000, Type: "story"},
		"5": {ID: 5, Title: "Over the limit", URL: "https://example.com/five", Type: "story"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]int{1, 2, 3, 4, 5})
	})
	mux.HandleFunc("/item/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/item/"), ".json")
		it, ok := items[id]
		if !ok {
			http.Error(w, "missing", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(it)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	h := &HackerNewsFetcher{BaseURL: srv.URL}
	batch, err := h.Fetch(context.Background(), 2)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(batch.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(batch.Items))
	}
	// id 3 返回 404，记为单条失败
	if len(batch.Errors) != 1 {
		t.Fatalf("errors = %v, want 1", batch.Errors)
	}
	if batch.Items[0].URL != "https://example.com/nuclear" || batch.Items[0].Author != "pg" {
		t.Fatalf("unexpected first item: %+v", batch.Items[0])
	}
	ask := batch.Items[1]
	if ask.URL != "https://news.ycombinator.com/item?id=4" {
		t.Fatalf("ask url = %q", ask.URL)
	}
	if ask.Body != "Which GPU?" {
		t.Fatalf("ask body = %q", ask.Body)
	}
}

func TestHackerNewsFetcherSourceError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	h := &HackerNewsFetcher{BaseURL: srv.URL}
	if _, err := h.Fetch(context.Background(), 3); err == nil {
		t.Fatalf("expected source error")
	}
}

func TestHackerNewsFetcherTimedOutItemIsSkipped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]int{1, 2})
	})
	mux.HandleFunc("/item/1.json", slowHandler(time.Second, `{"id":1,"title":"slow","type":"story"}`))
	mux.HandleFunc("/item/2.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(hnItem{ID: 2, Title: "Solar record", URL: "https://example.com/solar", Type: "story", Time: 1721124000})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	h := &HackerNewsFetcher{BaseURL: srv.URL, Options: Options{Timeout: 200 * time.Millisecond}}
	batch, err := h.Fetch(context.Background(), 5)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(batch.Items) != 1 || batch.Items[0].URL != "https://example.com/solar" {
		t.Fatalf("items = %+v, want only item 2", batch.Items)
	}
	if len(batch.Errors) != 1 || !strings.Contains(batch.Errors[0].Error(), "item 1") {
		t.Fatalf("errors = %v, want one error for item 1", batch.Errors)
	}
}
