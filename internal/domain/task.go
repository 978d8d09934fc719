package domain

// TaskStatus enumerates the lifecycle of a remote generation task as inferred
// from status poll responses.
type TaskStatus string

const (
	TaskStatusSubmitted  TaskStatus = "submitted"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReady      TaskStatus = "ready"
	TaskStatusPaid       TaskStatus = "paid"
	TaskStatusError      TaskStatus = "error"
)

// Terminal reports whether no further polling is needed.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusReady, TaskStatusPaid, TaskStatusError:
		return true
	default:
		return false
	}
}

// GenerationTask is one outstanding request against the remote API. It lives
// only for the duration of a single generation attempt.
type GenerationTask struct {
	ID        string
	Template  string
	Status    TaskStatus
	ResultURL string
}

// TaskSnapshot is the interpreted view of one status poll response.
type TaskSnapshot struct {
	TaskID    string
	Status    TaskStatus
	RawStatus string
	ResultURL string
	Payload   []byte
}

// RenderedImage is the downloaded result handed back to the chat.
type RenderedImage struct {
	Data        []byte
	Filename    string
	ContentType string
}
