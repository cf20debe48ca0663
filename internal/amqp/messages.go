package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ClaimsSubmittedMessage announces an archived claim batch. It carries only
// the archive id; the worker loads the submission from the database.
type ClaimsSubmittedMessage struct {
	SubmissionID int64     `json:"submission_id"`
	Reference    string    `json:"reference"`
	Timestamp    time.Time `json:"timestamp"`
}

var ErrMissingSubmissionID = errors.New("message has no submission_id")

func NewClaimsSubmittedMessage(submissionID int64, reference string) *ClaimsSubmittedMessage {
	return &ClaimsSubmittedMessage{
		SubmissionID: submissionID,
		Reference:    reference,
		Timestamp:    time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ClaimsSubmittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ClaimsSubmittedMessageFromJSON decodes a message and rejects one without
// a usable submission id.
func ClaimsSubmittedMessageFromJSON(data []byte) (*ClaimsSubmittedMessage, error) {
	var msg ClaimsSubmittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.SubmissionID <= 0 {
		return nil, ErrMissingSubmissionID
	}
	return &msg, nil
}
