package speakapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"speakdrill/internal/domain"
	"speakdrill/internal/ports"
)

func TestClientAnalyzeUploadsMultipartToModeEndpoint(t *testing.T) {
	t.Parallel()

	var gotPath, gotTopic, gotAudio, gotFilename, gotType, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		reader, err := r.MultipartReader()
		if err != nil {
			t.Errorf("failed to create multipart reader: %v", err)
			return
		}
		for {
			part, err := reader.NextPart()
			if err != nil {
				break
			}
			content, _ := io.ReadAll(part)
			switch part.FormName() {
			case "audio":
				gotAudio = string(content)
				gotFilename = part.FileName()
				gotType = part.Header.Get("Content-Type")
			case "topic":
				gotTopic = string(content)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"transcript":            "hello",
			"grammar_score":         8,
			"vocabulary_score":      7,
			"fluency_score":         6,
			"topic_relevance_score": 9,
			"feedback":              "nice",
		})
	}))
	defer server.Close()

	c := NewClient(Config{AnalysisURL: server.URL + "/api", AccessToken: "tok"}, zerolog.Nop())
	analysis, err := c.Analyze(context.Background(), ports.AnalysisRequest{
		Audio:       []byte("webm-bytes"),
		Filename:    "recording.webm",
		ContentType: domain.ContentTypeWebM,
		Topic:       "travel",
		Mode:        domain.PracticeModeRead,
	})
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	if gotPath != "/api/analyze_reading/" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotAudio != "webm-bytes" || gotFilename != "recording.webm" || gotType != domain.ContentTypeWebM {
		t.Fatalf("unexpected audio part: %q %q %q", gotAudio, gotFilename, gotType)
	}
	if gotTopic != "travel" {
		t.Fatalf("unexpected topic: %q", gotTopic)
	}
	if analysis.GrammarScore != 8 || analysis.Feedback != "nice" || analysis.Transcript != "hello" {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}
}

func TestClientAnalyzeContinueModeUsesSpeechEndpoint(t *testing.T) {
	t.Parallel()

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(Config{AnalysisURL: server.URL + "/api/"}, zerolog.Nop())
	if _, err := c.Analyze(context.Background(), ports.AnalysisRequest{Audio: []byte("x"), Mode: domain.PracticeModeContinue}); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if gotPath != "/api/analyze_speech/" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}

func TestClientReportsDetailOnFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"Transcription failed"}`))
	}))
	defer server.Close()

	c := NewClient(Config{AnalysisURL: server.URL}, zerolog.Nop())
	_, err := c.Analyze(context.Background(), ports.AnalysisRequest{Audio: []byte("x")})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusInternalServerError || statusErr.Detail != "Transcription failed" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestClientUnauthorized(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(Config{APIURL: server.URL}, zerolog.Nop())
	if _, err := c.UserProgress(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClientProgressEndpoints(t *testing.T) {
	t.Parallel()

	var saved domain.Feedback
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/levels/":
			_, _ = w.Write([]byte(`[{"id":1,"topic":"Hobbies","difficulty":"easy","text":"I like"},{"id":2,"topic":"Travel"}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/levels/2/":
			_, _ = w.Write([]byte(`{"id":2,"topic":"Travel","text":"Last summer"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/user_progress/":
			_, _ = w.Write([]byte(`{"xp":40,"completed_levels":[1]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/save_feedback/":
			if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
				t.Errorf("unexpected content type: %s", r.Header.Get("Content-Type"))
			}
			_ = json.NewDecoder(r.Body).Decode(&saved)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"detail":"Feedback saved"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewClient(Config{APIURL: server.URL + "/api"}, zerolog.Nop())
	ctx := context.Background()

	levels, err := c.Levels(ctx)
	if err != nil || len(levels) != 2 || levels[0].Topic != "Hobbies" || levels[0].Text != "I like" {
		t.Fatalf("unexpected levels: %+v err=%v", levels, err)
	}
	level, err := c.Level(ctx, 2)
	if err != nil || level.Text != "Last summer" {
		t.Fatalf("unexpected level: %+v err=%v", level, err)
	}
	progress, err := c.UserProgress(ctx)
	if err != nil || progress.XP != 40 || len(progress.CompletedLevels) != 1 {
		t.Fatalf("unexpected progress: %+v err=%v", progress, err)
	}
	if !domain.IsLevelUnlocked(&progress, 2) || domain.IsLevelUnlocked(&progress, 3) {
		t.Fatalf("unexpected unlock state for %+v", progress)
	}

	if err := c.SaveFeedback(ctx, domain.Feedback{LevelID: 2, FeedbackText: "ok", XPEarned: 19}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if saved.LevelID != 2 || saved.FeedbackText != "ok" {
		t.Fatalf("unexpected saved body: %+v", saved)
	}
}
