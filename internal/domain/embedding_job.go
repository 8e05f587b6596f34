package domain

import "time"

// EmbeddingJobStatus represents the status of an embedding job
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending    EmbeddingJobStatus = "pending"
	EmbeddingJobStatusProcessing EmbeddingJobStatus = "processing"
	EmbeddingJobStatusCompleted  EmbeddingJobStatus = "completed"
	EmbeddingJobStatusFailed     EmbeddingJobStatus = "failed"
)

// IsValid reports whether s is a known job status.
func (s EmbeddingJobStatus) IsValid() bool {
	switch s {
	case EmbeddingJobStatusPending, EmbeddingJobStatusProcessing,
		EmbeddingJobStatusCompleted, EmbeddingJobStatusFailed:
		return true
	}
	return false
}

// EmbeddingJob represents an async embedding generation job for a fact.
type EmbeddingJob struct {
	ID          string
	FactID      string
	Status      EmbeddingJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ValidateEmbeddingJob validates an EmbeddingJob instance
func ValidateEmbeddingJob(j *EmbeddingJob) error {
	if j == nil {
		return NewDomainError(ErrCodeValidation, "embedding job cannot be nil")
	}
	if j.ID == "" {
		return NewDomainError(ErrCodeValidation, "embedding job ID is required")
	}
	if j.FactID == "" {
		return NewDomainError(ErrCodeValidation, "embedding job fact ID is required")
	}
	if !j.Status.IsValid() {
		return ErrInvalidEmbeddingJobStatus
	}
	return nil
}
