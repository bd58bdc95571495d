package cache_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/clinicore/respcache/cache"
)

// Demonstrates the basic write-then-read flow against a configured cache.
func Example() {
	ctx := context.Background()

	c, err := cache.New(ctx, cache.Config{
		RedisURL:  "redis://localhost:6379/0",
		KeySecret: "${RESPCACHE_KEY_SECRET}",
		Namespace: "clinic",
	})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Destroy()

	query := &cache.Query{
		Text:       "what are the side effects of metformin",
		Categories: []string{"medications"},
	}
	resp := &cache.Response{
		Kind:       cache.KindText,
		Text:       "Common side effects include nausea and diarrhea.",
		Confidence: 0.94,
	}

	if err := c.CacheResponse(ctx, query, resp, "user-1", nil); err != nil {
		log.Fatal(err)
	}

	cached, err := c.GetCachedResponse(ctx, query, "user-1")
	if err != nil {
		log.Fatal(err)
	}
	if cached != nil {
		fmt.Println(cached.Text)
	}
}

// Demonstrates overriding the TTL for a single write.
func ExampleResponseCache_CacheResponse() {
	var c *cache.ResponseCache // obtained from cache.New

	query := &cache.Query{Text: "next appointment time", Categories: []string{"appointments"}}
	resp := &cache.Response{Kind: cache.KindText, Text: "Tuesday at 2pm", Confidence: 0.99}

	// Appointment answers go stale quickly; cache for five minutes only.
	_ = c.CacheResponse(context.Background(), query, resp, "user-1", &cache.WriteOptions{
		TTL: 5 * time.Minute,
	})
}

// Demonstrates removing every cached answer derived from appointment data
// after the user's schedule changes.
func ExampleResponseCache_InvalidateByDataCategory() {
	var c *cache.ResponseCache // obtained from cache.New

	removed, err := c.InvalidateByDataCategory(context.Background(), "appointments", "user-1", "")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("removed %d entries\n", removed)
}
