package repos

import (
	"github.com/tauraamui/dragonlens/pkg/journal/dbconn"
	"github.com/tauraamui/dragonlens/pkg/journal/models"
	"github.com/tauraamui/xerror"
)

type RecognitionRepository struct {
	DB dbconn.GormWrapper
}

func (r *RecognitionRepository) Create(rec *models.Recognition) error {
	return r.DB.Create(rec).Error()
}

func (r *RecognitionRepository) FindByFrameID(frameID string) (models.Recognition, error) {
	rec := models.Recognition{}
	if err := r.DB.Where("frame_id = ?", frameID).First(&rec).Error(); err != nil {
		return rec, xerror.Errorf("recognition of frame %s not found", frameID)
	}

	return rec, nil
}

// Latest returns up to n entries, newest first.
func (r *RecognitionRepository) Latest(n int) ([]models.Recognition, error) {
	recs := []models.Recognition{}
	if err := r.DB.Order("seq desc").Limit(n).Find(&recs).Error(); err != nil {
		return nil, xerror.Errorf("unable to list recognitions: %w", err)
	}

	return recs, nil
}
