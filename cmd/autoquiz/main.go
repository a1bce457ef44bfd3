package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autoquiz"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to YAML config file")
		topic        = flag.String("topic", "", "Topic to generate questions about")
		url          = flag.String("url", "", "Web page or video URL to extract content from")
		files        = flag.String("files", "", "Comma-separated list of input files (PDF, DOCX, TXT, MD, images)")
		numQuestions = flag.Int("questions", 10, "Number of questions to generate (5-50)")
		difficulty   = flag.String("difficulty", "Medium", "Difficulty level (Easy, Medium, Hard)")
		language     = flag.String("language", "English", "Question language")
		outputFile   = flag.String("output", "", "Output file for question JSON (default: stdout)")
		verbose      = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	autoquiz.SetVerbose(*verbose)

	cfg, err := autoquiz.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sources, err := buildSources(*topic, *url, *files)
	if err != nil {
		log.Fatal(err)
	}
	if len(sources) == 0 {
		log.Fatal("No input given. Use -topic, -url, or -files.")
	}

	store, err := autoquiz.OpenUsageStore(cfg.Quota.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open usage database: %v", err)
	}
	defer store.Close()

	pipeline := autoquiz.NewPipeline(cfg, store)

	if *verbose {
		log.Printf("Starting generation: %d sources, %d questions, %s, %s",
			len(sources), *numQuestions, *difficulty, *language)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := pipeline.Run(ctx, autoquiz.Submission{
		Sources:      sources,
		NumQuestions: *numQuestions,
		Difficulty:   *difficulty,
		Language:     *language,
		Identity:     "cli",
	})
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal result: %v", err)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, data, 0644); err != nil {
			log.Fatalf("Failed to write output file: %v", err)
		}
		fmt.Printf("Wrote %d questions to %s\n", len(result.Questions), *outputFile)
	} else {
		fmt.Println(string(data))
	}

	if result.Metadata.Degraded {
		fmt.Fprintln(os.Stderr, "Warning: some sources failed to extract; see metadata.sources for details.")
	}
}

// buildSources assembles the submission from CLI flags: each file becomes a
// file source, the URL a link source, the topic a topic source.
func buildSources(topic, url, files string) ([]autoquiz.ContentSource, error) {
	var sources []autoquiz.ContentSource

	if files != "" {
		for _, path := range strings.Split(files, ",") {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			sources = append(sources, autoquiz.ContentSource{
				Kind: autoquiz.SourceFile,
				Name: filepath.Base(path),
				Data: data,
			})
		}
	}
	if url != "" {
		sources = append(sources, autoquiz.ContentSource{Kind: autoquiz.SourceLink, URL: url})
	}
	if topic != "" {
		sources = append(sources, autoquiz.ContentSource{Kind: autoquiz.SourceTopic, Text: topic})
	}
	return sources, nil
}
