package job

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Compile-time check that GormRepository implements Repository.
var _ Repository = (*GormRepository)(nil)

// GormRepository persists jobs in a relational table through GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository bound to db.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Save upserts the job row keyed by ID.
func (r *GormRepository) Save(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(job.Clone()).Error
}

// FindByID retrieves a job by its ID.
func (r *GormRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// List returns all jobs, newest first.
func (r *GormRepository) List(ctx context.Context) ([]*Job, error) {
	var jobs []*Job
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
