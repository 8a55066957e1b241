// Package speakapi talks to the practice backend: the progress API that
// serves levels and stores feedback, and the analysis service that scores
// recordings.
package speakapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"speakdrill/internal/domain"
	"speakdrill/internal/ports"
)

var ErrUnauthorized = errors.New("backend rejected the access token")

// StatusError is a non-2xx backend response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

type Config struct {
	APIURL          string
	AnalysisURL     string
	AccessToken     string
	APITimeout      time.Duration
	AnalysisTimeout time.Duration
}

// Client implements ports.ProgressStore and ports.Analyzer.
type Client struct {
	apiURL      string
	analysisURL string
	token       string

	api      *http.Client
	analysis *http.Client
	logger   zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = "http://localhost:8000/api"
	}
	if cfg.AnalysisURL == "" {
		cfg.AnalysisURL = "http://localhost:8001/api"
	}
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = 30 * time.Second
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = 2 * time.Minute
	}
	return &Client{
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		analysisURL: strings.TrimRight(cfg.AnalysisURL, "/"),
		token:       strings.TrimSpace(cfg.AccessToken),
		api:         &http.Client{Timeout: cfg.APITimeout},
		analysis:    &http.Client{Timeout: cfg.AnalysisTimeout},
		logger:      logger,
	}
}

var (
	_ ports.ProgressStore = (*Client)(nil)
	_ ports.Analyzer      = (*Client)(nil)
)

func (c *Client) Levels(ctx context.Context) ([]domain.Level, error) {
	var levels []domain.Level
	if err := c.getJSON(ctx, "/levels/", &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

func (c *Client) Level(ctx context.Context, id int) (domain.Level, error) {
	var level domain.Level
	if err := c.getJSON(ctx, "/levels/"+strconv.Itoa(id)+"/", &level); err != nil {
		return domain.Level{}, err
	}
	return level, nil
}

func (c *Client) UserProgress(ctx context.Context) (domain.Progress, error) {
	var progress domain.Progress
	if err := c.getJSON(ctx, "/user_progress/", &progress); err != nil {
		return domain.Progress{}, err
	}
	return progress, nil
}

func (c *Client) SaveFeedback(ctx context.Context, feedback domain.Feedback) error {
	body, err := json.Marshal(feedback)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/save_feedback/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(c.api, req, "/save_feedback/", nil)
}

// Analyze uploads the recording as multipart form data. Read mode goes to
// the reading endpoint, everything else to the free speech endpoint.
func (c *Client) Analyze(ctx context.Context, r ports.AnalysisRequest) (domain.Analysis, error) {
	path := "/analyze_speech/"
	if r.Mode == domain.PracticeModeRead {
		path = "/analyze_reading/"
	}

	body, contentType, err := analysisForm(r)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("build analysis form: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.analysisURL+path, body)
	if err != nil {
		return domain.Analysis{}, err
	}
	req.Header.Set("Content-Type", contentType)

	var analysis domain.Analysis
	if err := c.do(c.analysis, req, path, &analysis); err != nil {
		return domain.Analysis{}, err
	}
	return analysis, nil
}

func analysisForm(r ports.AnalysisRequest) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := r.Filename
	if filename == "" {
		filename = "recording.webm"
	}
	contentType := r.ContentType
	if contentType == "" {
		contentType = domain.ContentTypeWebM
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(r.Audio); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("topic", r.Topic); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(c.api, req, path, out)
}

func (c *Client) do(client *http.Client, req *http.Request, path string, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(started)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: req.Method, Path: path, Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", req.Method, path, err)
	}
	return nil
}

func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(raw))
}
