package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"remanejo/internal/core"
)

var ErrMissingSource = errors.New("run request has no source")

// RunRequest asks a worker to run a reallocation over a budget source: a
// workbook path or a "gsheet:<id>[/<tab>]" reference.
type RunRequest struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	// ProhibitedFund overrides the configured fund; 0 disables it.
	ProhibitedFund *int `json:"prohibited_fund,omitempty"`
	// ProhibitedNatures overrides the configured set when non-nil.
	ProhibitedNatures []string  `json:"prohibited_natures"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewRunRequest creates a request with a fresh id.
func NewRunRequest(source string) *RunRequest {
	return &RunRequest{
		ID:        uuid.NewString(),
		Source:    strings.TrimSpace(source),
		Timestamp: time.Now(),
	}
}

func (m *RunRequest) Validate() error {
	if strings.TrimSpace(m.Source) == "" {
		return ErrMissingSource
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *RunRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RunRequestFromJSON decodes and validates a request.
func RunRequestFromJSON(data []byte) (*RunRequest, error) {
	var msg RunRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RunCompleted announces a finished run.
type RunCompleted struct {
	RunID             string          `json:"run_id"`
	RequestID         string          `json:"request_id,omitempty"`
	SourceName        string          `json:"source_name"`
	Stats             core.Statistics `json:"statistics"`
	NoNegativeBalance bool            `json:"no_negative_balance"`
	Timestamp         time.Time       `json:"timestamp"`
}

func (m *RunCompleted) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RunCompletedFromJSON(data []byte) (*RunCompleted, error) {
	var msg RunCompleted
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
