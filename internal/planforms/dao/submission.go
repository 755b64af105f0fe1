package dao

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/planealo/planforms/internal/planforms/dto"
	"github.com/planealo/planforms/internal/planforms/types"
	"gorm.io/gorm"
)

// Submission is one accepted response. Rows are append only, there is no
// update path.
type Submission struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	FormId uint  `json:"form_id" gorm:"not null;uniqueIndex:idx_submission_seq,priority:1"`
	Form   *Form `json:"-" gorm:"foreignKey:FormId" extensions:"x-nullable"`

	// Position of the response within its form, starts at 1.
	SeqId int `json:"seq_id" gorm:"uniqueIndex:idx_submission_seq,priority:2"`

	Values types.SubmissionValues `json:"values" gorm:"type:jsonb"`

	Files []FileAsset `json:"files,omitempty" gorm:"foreignKey:SubmissionId"`
}

func (Submission) TableName() string { return "submissions" }

func (s *Submission) ToDTO() *dto.Submission {
	if s == nil {
		return nil
	}
	res := &dto.Submission{
		ID:        s.ID,
		SeqId:     s.SeqId,
		FormId:    s.FormId,
		CreatedAt: s.CreatedAt,
		Values:    s.Values,
	}
	for _, f := range s.Files {
		res.Files = append(res.Files, *f.ToDTO())
	}
	return res
}

// FileAsset is a stored upload belonging to a submission field. The payload
// lives in the file storage backend keyed by Id.
type FileAsset struct {
	Id        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `json:"created_at"`

	SubmissionId *uint  `json:"submission,omitempty" gorm:"index" extensions:"x-nullable"`
	FieldName    string `json:"field_name"`

	Name        string `json:"name" gorm:"index"`
	FileSize    int    `json:"size"`
	ContentType string `json:"content_type"`
}

func (FileAsset) TableName() string { return "file_assets" }

func (asset *FileAsset) BeforeDelete(tx *gorm.DB) error {
	exist, err := FileStorage.Exist(asset.Id)
	if err != nil {
		return err
	}

	if exist {
		if err := FileStorage.Delete(asset.Id); err != nil {
			return err
		}
	}
	return nil
}

func (asset *FileAsset) ToDTO() *dto.FileAsset {
	if asset == nil {
		return nil
	}
	return &dto.FileAsset{
		Id:          asset.Id.String(),
		Name:        asset.Name,
		FileSize:    asset.FileSize,
		ContentType: asset.ContentType,
		FieldName:   asset.FieldName,
	}
}

// NextSeqId returns the next per-form sequence number. Callers must run it
// inside the insert transaction to keep the unique index happy.
func NextSeqId(tx *gorm.DB, formId uint) (int, error) {
	var last int
	if err := tx.Model(&Submission{}).
		Where("form_id = ?", formId).
		Select("coalesce(max(seq_id), 0)").
		Scan(&last).Error; err != nil {
		return 0, err
	}
	return last + 1, nil
}
