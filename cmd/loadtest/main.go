package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Concurrency int
	Duration    time.Duration
	UploadRatio int // one upload per this many requests, 0 disables uploads
	Queries     []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	uploads       atomic.Int64
	queries       atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8082", "base URL of the gateway")
	apiKey := flag.String("key", "", "api key for the gateway (required)")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	uploadRatio := flag.Int("upload-ratio", 20, "one document upload per N requests (0 = queries only)")
	flag.Parse()

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "error: -key is required (create one with authadmin)")
		os.Exit(1)
	}

	queries := []string{
		"document processing pipeline",
		"embedding generation",
		"vector similarity search",
		"chunk overlap strategy",
		"extraction quality score",
		"keyword fallback",
		"recency ranking",
		"context assembly",
		"pdf text extraction",
		"heading detection",
		"idempotency keys",
		"rate limiting",
		"cache invalidation",
		"sentence splitting",
		"quality diagnostics",
	}

	cfg := Config{
		BaseURL:     *baseURL,
		APIKey:      *apiKey,
		Concurrency: *concurrency,
		Duration:    *duration,
		UploadRatio: *uploadRatio,
		Queries:     queries,
	}

	fmt.Println("=== RAG Pipeline Load Test ===")
	fmt.Printf("Target:       %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency:  %d\n", cfg.Concurrency)
	fmt.Printf("Duration:     %s\n", cfg.Duration)
	fmt.Printf("Upload ratio: 1/%d\n", cfg.UploadRatio)
	fmt.Printf("Queries:      %d unique\n", len(cfg.Queries))
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			i := workerID

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				var req *http.Request
				var err error
				if cfg.UploadRatio > 0 && i%cfg.UploadRatio == 0 {
					req, err = newUploadRequest(ctx, cfg, i)
					stats.uploads.Add(1)
				} else {
					req, err = newQueryRequest(ctx, cfg, cfg.Queries[i%len(cfg.Queries)])
					stats.queries.Add(1)
				}
				i++
				if err != nil {
					stats.RecordRequest(0, 0, err)
					continue
				}

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)

				if err != nil {
					stats.RecordRequest(elapsed, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				stats.RecordRequest(elapsed, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func newQueryRequest(ctx context.Context, cfg Config, query string) (*http.Request, error) {
	body, _ := json.Marshal(map[string]any{
		"query": query,
		"limit": 10,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cfg.BaseURL+"/api/v1/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func newUploadRequest(ctx context.Context, cfg Config, seq int) (*http.Request, error) {
	text := fmt.Sprintf(
		"Load Test Document %d:\nThis synthetic document exercises the full pipeline. "+
			"It contains enough sentences to produce several chunks. "+
			"Each run uploads a unique body so idempotency keys never collide.\n\n"+
			"Details:\nGenerated at %s by worker request %d.",
		seq, time.Now().Format(time.RFC3339Nano), seq,
	)
	body, _ := json.Marshal(map[string]any{
		"filename":        fmt.Sprintf("loadtest-%s.txt", uuid.NewString()),
		"content_type":    "text/plain",
		"content":         base64.StdEncoding.EncodeToString([]byte(text)),
		"idempotency_key": uuid.NewString(),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cfg.BaseURL+"/api/v1/documents", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Uploads:         %d\n", stats.uploads.Load())
	fmt.Printf("Queries:         %d\n", stats.queries.Load())
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Requests/sec:    %.2f\n", rps)
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		count := stats.statusCodes[code].Load()
		fmt.Printf("  %d: %d\n", code, count)
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the gateway running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
