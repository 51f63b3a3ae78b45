package repository

import (
	"dailysync/internal/db"
	"dailysync/internal/model"
)

type RunRepository struct{}

func NewRunRepository() *RunRepository {
	return &RunRepository{}
}

func (r *RunRepository) Save(run *model.Run) error {
	return db.DB.Create(run).Error
}

type Stats struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
	Skipped int64 `json:"skipped"`
}

func (r *RunRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := db.DB.Model(&model.Run{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.Run{}).
		Where("status = ?", model.RunSuccess).
		Count(&stats.Success).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.Run{}).
		Where("status = ?", model.RunSkipped).
		Count(&stats.Skipped).Error; err != nil {
		return stats, err
	}

	stats.Failed = stats.Total - stats.Success - stats.Skipped
	return stats, nil
}

func (r *RunRepository) GetRecent(limit int) ([]model.Run, error) {
	var runs []model.Run
	result := db.DB.
		Order("started_at desc").
		Limit(limit).
		Find(&runs)

	return runs, result.Error
}

func (r *RunRepository) GetByJob(jobID uint, limit int) ([]model.Run, error) {
	var runs []model.Run
	result := db.DB.
		Where("job_id = ?", jobID).
		Order("started_at desc").
		Limit(limit).
		Find(&runs)

	return runs, result.Error
}

func (r *RunRepository) GetFailed() ([]model.Run, error) {
	var runs []model.Run
	result := db.DB.
		Where("status = ?", model.RunFailed).
		Order("started_at desc").
		Find(&runs)

	return runs, result.Error
}
