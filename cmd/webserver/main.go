package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"autoquiz"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

type Server struct {
	pipeline *autoquiz.Pipeline
	store    *sessions.CookieStore
	cfg      *autoquiz.Config
}

type apiResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		verbose    = flag.Bool("verbose", false, "Enable verbose debugging output")
	)
	flag.Parse()

	autoquiz.SetVerbose(*verbose)

	cfg, err := autoquiz.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	usage, err := autoquiz.OpenUsageStore(cfg.Quota.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open usage database: %v", err)
	}
	defer usage.Close()

	// Counters older than a week can never match a request key again.
	usage.Prune(context.Background(), time.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02"))

	sessionKey := cfg.Server.SessionKey
	if sessionKey == "" {
		// Ephemeral key: sessions do not survive a restart, identities fall
		// back to fresh cookies. Acceptable for a quota cookie.
		sessionKey = uuid.NewString()
	}

	server := &Server{
		pipeline: autoquiz.NewPipeline(cfg, usage),
		store:    sessions.NewCookieStore([]byte(sessionKey)),
		cfg:      cfg,
	}

	http.HandleFunc("/api/quiz/generate", server.handleGenerate)
	http.HandleFunc("/api/health", server.handleHealth)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

// handleGenerate accepts a multipart form with any mix of "files" parts, a
// "topic" field, and a "url" field, plus numberOfQuestions, difficulty, and
// language, and runs one pipeline invocation for the caller's identity.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiResponse{Success: false, Message: "POST required"})
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid multipart form", ErrorKind: string(autoquiz.ErrInput)})
		return
	}

	sources, err := s.collectSources(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: err.Error(), ErrorKind: string(autoquiz.ErrInput)})
		return
	}

	numQuestions := autoquiz.MinQuestions
	if v := r.FormValue("numberOfQuestions"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "numberOfQuestions must be a number", ErrorKind: string(autoquiz.ErrInput)})
			return
		}
		numQuestions = n
	}

	difficulty := r.FormValue("difficulty")
	if difficulty == "" {
		difficulty = autoquiz.DifficultyMedium
	}
	language := r.FormValue("language")
	if language == "" {
		language = "English"
	}

	sub := autoquiz.Submission{
		Sources:      sources,
		NumQuestions: numQuestions,
		Difficulty:   difficulty,
		Language:     language,
		Identity:     s.identity(w, r),
	}

	result, err := s.pipeline.Run(r.Context(), sub)
	if err != nil {
		kind := autoquiz.KindOf(err)
		log.Printf("Pipeline run failed (%s): %v", kind, err)
		writeJSON(w, statusForKind(kind), apiResponse{
			Success:   false,
			Message:   autoquiz.UserMessage(err),
			ErrorKind: string(kind),
		})
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: result})
}

// collectSources turns the multipart form into submission sources.
func (s *Server) collectSources(r *http.Request) ([]autoquiz.ContentSource, error) {
	var sources []autoquiz.ContentSource

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["files"] {
			if header.Size > s.cfg.Extraction.MaxFileSize {
				return nil, fmt.Errorf("file %s exceeds the size limit", header.Filename)
			}
			f, err := header.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open uploaded file %s", header.Filename)
			}
			data, err := io.ReadAll(io.LimitReader(f, s.cfg.Extraction.MaxFileSize+1))
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read uploaded file %s", header.Filename)
			}
			sources = append(sources, autoquiz.ContentSource{
				Kind:     autoquiz.SourceFile,
				Name:     header.Filename,
				MimeHint: header.Header.Get("Content-Type"),
				Data:     data,
			})
		}
	}

	if url := strings.TrimSpace(r.FormValue("url")); url != "" {
		sources = append(sources, autoquiz.ContentSource{Kind: autoquiz.SourceLink, URL: url})
	}
	if topic := strings.TrimSpace(r.FormValue("topic")); topic != "" {
		sources = append(sources, autoquiz.ContentSource{Kind: autoquiz.SourceTopic, Text: topic})
	}
	return sources, nil
}

// identity resolves the quota identity for a request: a random id held in
// the session cookie, falling back to the client IP when the cookie cannot
// be stored.
func (s *Server) identity(w http.ResponseWriter, r *http.Request) string {
	session, _ := s.store.Get(r, "autoquiz-session")
	if id, ok := session.Values["id"].(string); ok && id != "" {
		return id
	}

	id := uuid.NewString()
	session.Values["id"] = id
	if err := session.Save(r, w); err != nil {
		log.Printf("Failed to save session, falling back to IP identity: %v", err)
		return clientIP(r)
	}
	return id
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func statusForKind(kind autoquiz.ErrorKind) int {
	switch kind {
	case autoquiz.ErrInput:
		return http.StatusBadRequest
	case autoquiz.ErrQuota:
		return http.StatusTooManyRequests
	case autoquiz.ErrExtraction:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
