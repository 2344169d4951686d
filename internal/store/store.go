package store

import (
	"context"

	"github.com/glyphlab/woffle/internal/model"
)

// JobStats holds aggregate subsetting statistics.
type JobStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByRoute  map[string]int `json:"count_by_route"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
	BytesSaved    int64          `json:"bytes_saved"`
}

// Store defines the persistence operations for subsetting jobs.
type Store interface {
	CreateJob(ctx context.Context, j *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, limit, offset int) ([]*model.Job, int, error)
	GetJobStats(ctx context.Context) (*JobStats, error)
	Close() error
}
