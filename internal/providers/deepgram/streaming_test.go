package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"speakdrill/internal/domain"
	"speakdrill/internal/ports"
)

func TestNewRecognizerDefaults(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(Config{}, zerolog.Nop())
	if r.cfg.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("unexpected base url: %q", r.cfg.APIBaseURL)
	}
	if r.cfg.Model != "nova-2" {
		t.Fatalf("unexpected model: %q", r.cfg.Model)
	}
}

func TestRecognizerWithoutAPIKeyIsUnavailable(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(Config{APIKey: " "}, zerolog.Nop())
	_, err := r.Start(context.Background(), ports.RecognitionConfig{})
	if !errors.Is(err, domain.ErrRecognitionUnavailable) {
		t.Fatalf("expected ErrRecognitionUnavailable, got %v", err)
	}
}

func TestBuildListenURL(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(
		Config{APIBaseURL: "http://localhost:8080/v1/", Model: "m", SmartFormat: true},
		ports.RecognitionConfig{Language: "en-US", InterimResults: true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"ws://localhost:8080/v1/listen",
		"language=en-US",
		"interim_results=true",
		"smart_format=true",
		"model=m",
	} {
		if !strings.Contains(url, want) {
			t.Fatalf("expected %q in url: %s", want, url)
		}
	}
	if strings.Contains(url, "encoding=") {
		t.Fatalf("container audio must not set a raw encoding: %s", url)
	}
}

func TestBuildListenURLInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := buildListenURL(Config{APIBaseURL: ":// bad"}, ports.RecognitionConfig{})
	if err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestExtractTranscript(t *testing.T) {
	t.Parallel()

	r1 := deepgramResponse{}
	r1.Channel.Alternatives = append(r1.Channel.Alternatives, struct {
		Transcript string "json:\"transcript\""
	}{Transcript: " channel "})
	if got := extractTranscript(r1); got != "channel" {
		t.Fatalf("unexpected transcript from channel: %q", got)
	}

	if got := extractTranscript(deepgramResponse{}); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestRecognizerStreamsIndexedBatches(t *testing.T) {
	t.Parallel()

	received := make(chan []byte, 4)
	server := newDeepgramServer(t, func(conn *websocket.Conn) {
		_, audio, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- audio

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hello"}]}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello world"}]}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"again"}]}}`))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	r := NewRecognizer(Config{APIKey: "key", APIBaseURL: server.URL}, zerolog.Nop())
	stream, err := r.Start(context.Background(), ports.RecognitionConfig{InterimResults: true})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := stream.SendAudio([]byte("webm")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case audio := <-received:
		if string(audio) != "webm" {
			t.Fatalf("unexpected audio: %q", audio)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not receive audio")
	}

	batches := make([]domain.RecognitionBatch, 0, 3)
	for len(batches) < 3 {
		select {
		case ev := <-stream.Events():
			if ev.Err != nil {
				t.Fatalf("unexpected error event: %v", ev.Err)
			}
			batches = append(batches, ev.Batch)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected three batches, got %d", len(batches))
		}
	}

	if batches[1].ResultIndex != 0 || !batches[1].Results[0].IsFinal || batches[1].Results[0].Transcript != "hello world" {
		t.Fatalf("unexpected final batch: %+v", batches[1])
	}
	if batches[2].ResultIndex != 1 || len(batches[2].Results) != 2 {
		t.Fatalf("unexpected trailing batch: %+v", batches[2])
	}

	if err := stream.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := stream.Stop(); !errors.Is(err, ErrStreamStopped) {
		t.Fatalf("expected ErrStreamStopped, got %v", err)
	}
	if err := stream.SendAudio([]byte("late")); !errors.Is(err, ErrStreamStopped) {
		t.Fatalf("expected ErrStreamStopped after stop, got %v", err)
	}
}

func TestRecognizerReportsProviderError(t *testing.T) {
	t.Parallel()

	server := newDeepgramServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Error","message":"bad request"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	r := NewRecognizer(Config{APIKey: "key", APIBaseURL: server.URL}, zerolog.Nop())
	stream, err := r.Start(context.Background(), ports.RecognitionConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	select {
	case ev := <-stream.Events():
		if ev.Err == nil || ev.Err.Error() != "bad request" {
			t.Fatalf("expected provider error, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected an error event")
	}
	_ = stream.Stop()
}

func newDeepgramServer(t *testing.T, handle func(*websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStopDoesNotWaitForPendingSend(t *testing.T) {
	t.Parallel()

	s := &liveStream{
		audio:    make(chan []byte, 1),
		stopping: make(chan struct{}),
		closed:   make(chan struct{}),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   zerolog.Nop(),
	}
	s.audio <- []byte("queued")

	pending := make(chan error, 1)
	go func() { pending <- s.SendAudio([]byte("next")) }()

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()

	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("stop failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("stop blocked behind a pending send")
	}

	select {
	case err := <-pending:
		if !errors.Is(err, ErrStreamStopped) {
			t.Fatalf("expected pending send to end with ErrStreamStopped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("pending send was not released by stop")
	}
}

func TestEmitKeepsFinalResultsWhenConsumerIsBehind(t *testing.T) {
	t.Parallel()

	s := &liveStream{
		events: make(chan domain.RecognitionEvent, 1),
		closed: make(chan struct{}),
		logger: zerolog.Nop(),
	}

	s.emit(domain.RecognitionEvent{Batch: domain.RecognitionBatch{Results: []domain.RecognitionResult{{Transcript: "a"}}}})
	s.emit(domain.RecognitionEvent{Batch: domain.RecognitionBatch{Results: []domain.RecognitionResult{{Transcript: "ab"}}}})

	finalDone := make(chan struct{})
	go func() {
		s.emit(domain.RecognitionEvent{Batch: domain.RecognitionBatch{Results: []domain.RecognitionResult{{Transcript: "abc", IsFinal: true}}}})
		close(finalDone)
	}()

	first := <-s.events
	if first.Batch.Results[0].Transcript != "a" {
		t.Fatalf("expected the first interim result, got %+v", first)
	}

	select {
	case ev := <-s.events:
		if !ev.Batch.Results[0].IsFinal {
			t.Fatalf("expected the final result, the second interim should have been dropped: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("final result was dropped")
	}
	<-finalDone
}
