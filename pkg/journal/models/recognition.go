package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func init() {
	registerForAutomigration(&Recognition{})
}

// Recognition is one recognition pass over a displayed frame.
type Recognition struct {
	gorm.Model
	UUID       string `gorm:"uniqueIndex"`
	FrameID    string `gorm:"index"`
	Seq        uint64
	Code       int32
	Angle      int32
	Width      int
	Height     int
	Failed     bool
	Error      string
	CapturedAt time.Time
}

func (r *Recognition) BeforeCreate(tx *gorm.DB) error {
	r.UUID = uuid.NewString()
	return nil
}
