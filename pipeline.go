package autoquiz

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Submission is the request-boundary input to one pipeline run.
type Submission struct {
	Sources      []ContentSource
	NumQuestions int
	Difficulty   string
	Language     string
	Identity     string // IP address or equivalent request-scoped handle
}

// Pipeline sequences input validation, the usage guard, extraction,
// generation, and response shaping. All entities it creates are scoped to
// one invocation; only the usage counters survive across requests.
type Pipeline struct {
	cfg     *Config
	coord   *Coordinator
	guard   *UsageGuard
	gen     *Generator
	checker *QuestionChecker
}

// NewPipeline assembles a pipeline over the given usage store.
func NewPipeline(cfg *Config, store UsageStore) *Pipeline {
	p := &Pipeline{
		cfg:   cfg,
		coord: NewCoordinator(cfg.Extraction, cfg.Providers.OpenAI),
		guard: NewUsageGuard(store, cfg.Quota.DailyLimit),
		gen:   NewGenerator(cfg.Providers, cfg.Generation.Timeout),
	}
	if cfg.Generation.Verify {
		p.checker = NewQuestionChecker(cfg.Providers.OpenAI)
	}
	return p
}

// NewPipelineWithComponents assembles a pipeline from explicit parts; tests
// substitute fakes here.
func NewPipelineWithComponents(cfg *Config, coord *Coordinator, guard *UsageGuard, gen *Generator) *Pipeline {
	return &Pipeline{cfg: cfg, coord: coord, guard: guard, gen: gen}
}

// Run executes one pipeline invocation. Quota is not consumed for requests
// that fail before any real work is attempted; it is consumed once
// generation is attempted, even if generation itself ultimately fails,
// since provider cost was incurred.
func (p *Pipeline) Run(ctx context.Context, sub Submission) (*PipelineResult, error) {
	start := time.Now()
	runID := uuid.NewString()

	if err := p.validate(sub); err != nil {
		return nil, err
	}

	identity := sub.Identity
	if identity == "" {
		identity = "anonymous"
	}

	var runlog *RunLog
	if p.cfg.LogDir != "" {
		rl, err := NewRunLog(p.cfg.LogDir, runID)
		if err != nil {
			log.Printf("Failed to create run log for %s: %v", runID, err)
		} else {
			runlog = rl
			defer runlog.Close()
			runlog.LogSubmission(countKind(sub.Sources, SourceFile), countKind(sub.Sources, SourceTopic) > 0,
				countKind(sub.Sources, SourceLink) > 0, sub.NumQuestions, sub.Difficulty, sub.Language)
		}
	}

	// Extraction runs before quota is consumed: a submission whose every
	// source fails has done no billable work.
	results := p.coord.ExtractAll(ctx, sub.Sources)
	outcomes := make([]SourceOutcome, len(results))
	degraded := false
	for i, r := range results {
		if runlog != nil {
			runlog.LogExtraction(r)
		}
		outcomes[i] = SourceOutcome{
			SourceRef:        r.SourceRef,
			Method:           r.Method,
			Success:          r.Success,
			Quality:          r.Quality,
			ProcessingTimeMs: r.ProcessingTimeMs,
			Error:            r.Error,
		}
		if !r.Success {
			degraded = true
		}
	}

	content, err := Merge(results)
	if err != nil {
		return nil, err
	}

	decision, err := p.guard.CheckAndIncrement(ctx, identity)
	if err != nil {
		return nil, quotaError("quota check failed")
	}
	if !decision.Allowed {
		return nil, quotaError("daily generation limit reached, try again tomorrow")
	}

	genReq := GenerationRequest{
		Content:      content.Text,
		NumQuestions: sub.NumQuestions,
		Difficulty:   sub.Difficulty,
		Language:     sub.Language,
	}

	gen := p.gen
	if runlog != nil {
		gen = gen.WithRunLog(runlog)
	}
	questions, genOutcome, err := gen.Generate(ctx, genReq)
	if err != nil {
		return nil, err
	}

	rejected := 0
	if p.checker != nil {
		questions, rejected = p.verify(ctx, questions)
	}

	meta := Metadata{
		RunID:            runID,
		Language:         sub.Language,
		Difficulty:       sub.Difficulty,
		ContentType:      content.ContentType,
		OverallQuality:   content.OverallQuality,
		Sources:          outcomes,
		ProviderUsed:     genOutcome.ProviderUsed,
		FallbackUsed:     genOutcome.FallbackUsed,
		RequestedCount:   sub.NumQuestions,
		ReturnedCount:    len(questions),
		DroppedCount:     genOutcome.Dropped,
		RejectedCount:    rejected,
		QuotaRemaining:   decision.Remaining,
		QuotaNonDurable:  decision.NonDurable,
		Degraded:         degraded,
		Warnings:         genOutcome.Warnings,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		CreatedAt:        time.Now(),
	}

	if runlog != nil {
		runlog.LogOutcome(meta.ProviderUsed, meta.FallbackUsed, meta.ReturnedCount, meta.RequestedCount)
	}

	return &PipelineResult{Questions: questions, Metadata: meta}, nil
}

// validate enforces the request-boundary constraints before any work runs.
func (p *Pipeline) validate(sub Submission) error {
	if len(sub.Sources) == 0 {
		return inputError("no content sources provided")
	}
	if len(sub.Sources) > p.cfg.Extraction.MaxSources {
		return inputError("too many sources: %d (max %d)", len(sub.Sources), p.cfg.Extraction.MaxSources)
	}
	if sub.NumQuestions < MinQuestions || sub.NumQuestions > MaxQuestions {
		return inputError("number of questions must be between %d and %d", MinQuestions, MaxQuestions)
	}
	if !IsValidDifficulty(sub.Difficulty) {
		return inputError("invalid difficulty: %q", sub.Difficulty)
	}
	if !IsSupportedLanguage(sub.Language) {
		return inputError("unsupported language: %q", sub.Language)
	}
	return nil
}

// verify runs the optional LLM verification pass, dropping rejects. Checker
// errors count as accepts: verification is best-effort.
func (p *Pipeline) verify(ctx context.Context, questions []Question) ([]Question, int) {
	kept := questions[:0]
	rejected := 0
	for _, q := range questions {
		result, err := p.checker.CheckQuestion(ctx, q)
		if err != nil {
			log.Printf("Question check failed for %s, keeping question: %v", q.ID, err)
			kept = append(kept, q)
			continue
		}
		if result.Accept {
			kept = append(kept, q)
		} else {
			log.Printf("Question %s rejected by checker: %s", q.ID, result.Reason)
			rejected++
		}
	}
	return kept, rejected
}

func countKind(sources []ContentSource, kind SourceKind) int {
	n := 0
	for _, s := range sources {
		if s.Kind == kind {
			n++
		}
	}
	return n
}
