package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// BatchJobStatus represents the lifecycle of a QC batch.
type BatchJobStatus string

const (
	BatchJobQueued    BatchJobStatus = "queued"
	BatchJobRunning   BatchJobStatus = "running"
	BatchJobCompleted BatchJobStatus = "completed"
	BatchJobFailed    BatchJobStatus = "failed"
)

// BatchJob keeps track of one batch while its stages run. The ID doubles
// as the workspace directory suffix.
type BatchJob struct {
	ID         string
	Status     BatchJobStatus
	Assemblies int
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BatchJobManager stores batch states indexed by batch ID.
type BatchJobManager struct {
	mu   sync.RWMutex
	jobs map[string]*BatchJob
}

// NewBatchJobManager constructs a manager with no batches.
func NewBatchJobManager() *BatchJobManager {
	return &BatchJobManager{
		jobs: make(map[string]*BatchJob),
	}
}

// NewJob registers a queued batch over the given number of assemblies.
func (m *BatchJobManager) NewJob(assemblies int) *BatchJob {
	job := &BatchJob{
		ID:         uuid.New().String(),
		Status:     BatchJobQueued,
		Assemblies: assemblies,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()
	return job
}

// SetRunning marks the batch as running.
func (m *BatchJobManager) SetRunning(jobID string) {
	m.updateJob(jobID, func(job *BatchJob) {
		job.Status = BatchJobRunning
	})
}

// CompleteJob marks the batch complete.
func (m *BatchJobManager) CompleteJob(jobID string) {
	m.updateJob(jobID, func(job *BatchJob) {
		job.Status = BatchJobCompleted
	})
}

// FailJob records a failure and attaches a user-facing error message.
func (m *BatchJobManager) FailJob(jobID string, err error) {
	m.updateJob(jobID, func(job *BatchJob) {
		job.Status = BatchJobFailed
		job.Error = err.Error()
	})
}

// GetJob fetches a batch by ID.
func (m *BatchJobManager) GetJob(jobID string) (*BatchJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	return job, ok
}

func (m *BatchJobManager) updateJob(jobID string, update func(job *BatchJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return
	}

	update(job)
	job.UpdatedAt = time.Now()
}
