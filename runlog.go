package autoquiz

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunLog records one pipeline run to its own file: the submitted sources,
// per-source extraction outcomes, and every provider request/response.
type RunLog struct {
	file  *os.File
	mu    sync.Mutex
	runID string
}

// NewRunLog creates a transcript file for the given run under dir.
func NewRunLog(dir, runID string) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", runID))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	rl := &RunLog{file: file, runID: runID}
	rl.Logf("=== Question Generation Run ===\n")
	rl.Logf("Run ID: %s\n", runID)
	rl.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	rl.Logf("========================\n\n")
	return rl, nil
}

// Logf writes a formatted log entry with timestamp
func (rl *RunLog) Logf(format string, args ...interface{}) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(rl.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	rl.file.Sync()
}

// LogSubmission records the shape of the incoming request.
func (rl *RunLog) LogSubmission(fileCount int, hasTopic, hasURL bool, numQuestions int, difficulty, language string) {
	rl.Logf("Submission: %d file(s), topic=%v, url=%v, questions=%d, difficulty=%s, language=%s\n",
		fileCount, hasTopic, hasURL, numQuestions, difficulty, language)
}

// LogExtraction records one source's extraction outcome.
func (rl *RunLog) LogExtraction(res ExtractionResult) {
	if res.Success {
		rl.Logf("Extraction %s via %s: ok, %d chars, confidence %.2f, quality %.1f (%dms)\n",
			res.SourceRef, res.Method, len(res.Text), res.Confidence, res.Quality, res.ProcessingTimeMs)
	} else {
		rl.Logf("Extraction %s via %s: FAILED - %s (%dms)\n",
			res.SourceRef, res.Method, res.Error, res.ProcessingTimeMs)
	}
}

// LogProviderRequest logs a generation provider request.
func (rl *RunLog) LogProviderRequest(provider, prompt string) {
	rl.Logf("=== PROVIDER REQUEST (%s) ===\n", provider)
	rl.Logf("Prompt:\n%s\n", prompt)
	rl.Logf("=====================\n\n")
}

// LogProviderResponse logs a generation provider response.
func (rl *RunLog) LogProviderResponse(provider, response string) {
	rl.Logf("=== PROVIDER RESPONSE (%s) ===\n", provider)
	rl.Logf("Response:\n%s\n", response)
	rl.Logf("======================\n\n")
}

// LogOutcome records the terminal result of the run.
func (rl *RunLog) LogOutcome(provider string, fallback bool, returned, requested int) {
	rl.Logf("Outcome: provider=%s fallback=%v returned=%d/%d\n", provider, fallback, returned, requested)
}

// Close closes the log file.
func (rl *RunLog) Close() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.file != nil {
		fmt.Fprintf(rl.file, "[%s] === Run Complete ===\n", time.Now().Format("15:04:05.000"))
		return rl.file.Close()
	}
	return nil
}
