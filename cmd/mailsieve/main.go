package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/straja-ai/mailsieve/internal/config"
	"github.com/straja-ai/mailsieve/internal/mockprovider"
	"github.com/straja-ai/mailsieve/internal/redact"
	"github.com/straja-ai/mailsieve/internal/runner"
)

var version = "dev"

const usage = `usage: mailsieve <command> [flags]

commands:
  train       fit the classifier on the training set and save the model
  evaluate    score the labeled test set and print its accuracy
  classify    score every email file once and write the results file
  aggregate   run N predictions per email and explain the majority decision
  run-all     train, evaluate, classify and aggregate in order
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "mailsieve.yaml", "Path to mailsieve config file")
	mock := fs.Bool("mock", false, "Serve embeddings and reasoning from a local mock provider")
	epochs := fs.Int("epochs", 0, "Training epochs (overrides config)")
	trainPath := fs.String("train", "", "Training set JSONL (overrides config)")
	valPath := fs.String("val", "", "Validation set JSONL (overrides config)")
	testPath := fs.String("test", "", "Test set JSONL (overrides config)")
	emailsDir := fs.String("emails", "", "Folder of .txt emails (overrides config)")
	samples := fs.Int("n", 0, "Predictions per email for aggregate (overrides config)")

	switch cmd {
	case "train", "evaluate", "classify", "aggregate", "run-all":
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *mock {
		shutdown, baseURL, err := mockprovider.StartMockProvider("")
		if err != nil {
			log.Fatalf("start mock provider: %v", err)
		}
		defer shutdown(context.Background())
		cfg.Embedding.Type = "ollama"
		cfg.Embedding.BaseURL = baseURL
		cfg.Reasoning.Type = "ollama"
		cfg.Reasoning.BaseURL = baseURL
		log.Printf("mock provider listening on %s", baseURL)
	}
	if *samples > 0 {
		cfg.Aggregation.Samples = *samples
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	r, err := runner.FromConfig(ctx, cfg, version)
	if err != nil {
		redact.Fatalf("failed to build runner: %v", err)
	}
	defer r.Close(context.Background())

	log.Printf("mailsieve %s: command=%s run_id=%s embedding=%s reasoning=%s", version, cmd, r.RunID(), cfg.Embedding.Type, cfg.Reasoning.Type)

	switch cmd {
	case "train":
		_, err = r.Train(ctx, runner.TrainOptions{TrainPath: *trainPath, ValPath: *valPath, Epochs: *epochs})
	case "evaluate":
		_, err = r.Evaluate(ctx, *testPath)
	case "classify":
		_, _, err = r.Classify(ctx, *emailsDir)
	case "aggregate":
		_, err = r.Aggregate(ctx, *emailsDir, *samples)
	case "run-all":
		if *epochs > 0 {
			cfg.Training.Epochs = *epochs
		}
		err = r.RunAll(ctx)
	}
	if err != nil {
		r.Close(context.Background())
		redact.Fatalf("%s failed: %v", cmd, err)
	}
}
