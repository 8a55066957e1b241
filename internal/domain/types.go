package domain

import "bytes"

// SessionStatus models the recording lifecycle.
type SessionStatus string

const (
	SessionStatusIdle      SessionStatus = "idle"
	SessionStatusRecording SessionStatus = "recording"
	SessionStatusStopped   SessionStatus = "stopped"
)

// StopReason records why a session left the recording state.
type StopReason string

const (
	StopReasonManual  StopReason = "manual"
	StopReasonAutoMax StopReason = "max_duration"
	StopReasonAborted StopReason = "aborted"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodePermission    ErrorCode = "permission_denied"
	ErrorCodePrematureStop ErrorCode = "premature_stop"
	ErrorCodeEmptyCapture  ErrorCode = "empty_capture"
	ErrorCodeAnalysis      ErrorCode = "analysis"
	ErrorCodeFeedback      ErrorCode = "feedback"
)

// RecognitionResult is one entry of a speech engine's result list.
type RecognitionResult struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"isFinal"`
}

// RecognitionBatch mirrors a continuous recognizer's result event: the full
// result list of the session plus the index of the first changed entry.
type RecognitionBatch struct {
	ResultIndex int                 `json:"resultIndex"`
	Results     []RecognitionResult `json:"results"`
}

// HasFinal reports whether the batch seals a result at or after ResultIndex.
func (b RecognitionBatch) HasFinal() bool {
	if b.ResultIndex < 0 || b.ResultIndex >= len(b.Results) {
		return false
	}
	for _, result := range b.Results[b.ResultIndex:] {
		if result.IsFinal {
			return true
		}
	}
	return false
}

// RecognitionEvent is either a result batch or a transient engine error.
type RecognitionEvent struct {
	Batch RecognitionBatch
	Err   error
}

// ContentTypeWebM labels the encoded capture payload.
const ContentTypeWebM = "audio/webm"

// Capture is the finalized output of one recording session.
type Capture struct {
	Chunks         [][]byte   `json:"-"`
	Transcript     string     `json:"transcript"`
	ElapsedSeconds int        `json:"elapsedSeconds"`
	Reason         StopReason `json:"reason"`
	ContentType    string     `json:"contentType"`
}

// Empty reports whether the encoder produced no data at all.
func (c Capture) Empty() bool {
	for _, chunk := range c.Chunks {
		if len(chunk) > 0 {
			return false
		}
	}
	return true
}

// Payload joins the chunks, in capture order, into a single blob.
func (c Capture) Payload() []byte {
	return bytes.Join(c.Chunks, nil)
}

// Status summarizes the current runtime status.
type Status struct {
	State          SessionStatus `json:"state"`
	Active         bool          `json:"active"`
	ElapsedSeconds int           `json:"elapsedSeconds"`
	Message        string        `json:"message,omitempty"`
}
