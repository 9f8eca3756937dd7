package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/straja-ai/mailsieve/internal/classifier"
	"github.com/straja-ai/mailsieve/internal/config"
	"github.com/straja-ai/mailsieve/internal/mockprovider"
	"github.com/straja-ai/mailsieve/internal/runner"
	"github.com/straja-ai/mailsieve/internal/store"
)

func main() {
	cfgPath := flag.String("config", "mailsieve.yaml", "path to config yaml")
	n := flag.Int("n", 200, "number of iterations")
	text := flag.String("text", "Congratulations! You have been selected to receive a free gift card. Click here to claim.", "email text to score")
	mock := flag.Bool("mock", false, "embed through a local mock provider")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *mock {
		shutdown, baseURL, err := mockprovider.StartMockProvider("")
		if err != nil {
			log.Fatalf("start mock provider: %v", err)
		}
		defer shutdown(context.Background())
		cfg.Embedding.Type = "ollama"
		cfg.Embedding.BaseURL = baseURL
	}

	emb, name, closer, err := runner.BuildEmbedder(cfg.Embedding)
	if err != nil {
		log.Fatalf("build embedder: %v", err)
	}
	if closer != nil {
		defer closer()
	}

	m, err := store.NewModelStore(cfg.Paths.ModelFile).Load()
	if err != nil {
		log.Fatalf("load model: %v", err)
	}
	pred := classifier.NewPredictor(m, emb)
	ctx := context.Background()

	// Warmup
	for i := 0; i < 5; i++ {
		if _, err := pred.Predict(ctx, *text); err != nil {
			log.Fatalf("warmup predict failed: %v", err)
		}
	}

	if *n <= 0 {
		*n = 1
	}

	durations := make([]time.Duration, 0, *n)
	var last float64
	for i := 0; i < *n; i++ {
		start := time.Now()
		score, err := pred.Predict(ctx, *text)
		if err != nil {
			log.Fatalf("predict failed: %v", err)
		}
		durations = append(durations, time.Since(start))
		last = score
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0

	fmt.Printf("bench: n=%d avg_ms=%.2f p50_ms=%.2f p95_ms=%.2f dim=%d embedder=%s score=%.4f decision=%s\n",
		len(durations),
		avg,
		p50,
		p95,
		m.Dim(),
		name,
		last,
		classifier.DecisionFor(last),
	)
}
