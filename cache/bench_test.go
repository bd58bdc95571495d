package cache

import (
	"fmt"
	"testing"
)

func BenchmarkHMACKeyer_Key(b *testing.B) {
	keyer := NewHMACKeyer("bench", []byte("server-secret"))
	query := &Query{Text: "what are the contraindications for metformin", MaxResults: 10}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := keyer.Key(query, "user-1"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLocalCache_Get(b *testing.B) {
	local := NewLocalCache(1000, DefaultEvictFraction, NewStats())
	for i := 0; i < 1000; i++ {
		local.Put(fmt.Sprintf("k%d", i), newTestEntry("user-1", 3600))
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		local.Get(fmt.Sprintf("k%d", i%1000))
	}
}

func BenchmarkLocalCache_PutWithEviction(b *testing.B) {
	local := NewLocalCache(100, DefaultEvictFraction, NewStats())
	entry := newTestEntry("user-1", 3600)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		local.Put(fmt.Sprintf("k%d", i), entry)
	}
}

func BenchmarkJSONCodec_RoundTrip(b *testing.B) {
	codec := NewJSONCodec()
	entry := codecTestEntry()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		data, err := codec.Encode(entry)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := codec.Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGzipCodec_Encode(b *testing.B) {
	codec := NewGzipCodec()
	entry := codecTestEntry()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Encode(entry); err != nil {
			b.Fatal(err)
		}
	}
}
