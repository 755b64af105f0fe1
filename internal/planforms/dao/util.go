package dao

import (
	"github.com/gofrs/uuid"
	"github.com/sethvargo/go-password/password"
	filestorage "github.com/planealo/planforms/internal/planforms/file-storage"
	"github.com/planealo/planforms/internal/planforms/config"
	"gorm.io/gorm"
)

var Config *config.Config
var FileStorage filestorage.FileStorage

// -migration
type PaginationResponse struct {
	Count  int64 `json:"count"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
	Result any   `json:"result"`
}

func PaginationRequest(offset int, limit int, query *gorm.DB, target any) (res PaginationResponse, err error) {
	// Count query
	if err := query.Session(&gorm.Session{}).Model(target).Count(&res.Count).Error; err != nil {
		return res, err
	}

	// Data query
	if err := query.Offset(offset).Limit(limit).Find(target).Error; err != nil {
		return res, err
	}

	res.Result = target
	res.Limit = limit
	res.Offset = offset

	return res, nil
}

func GenUUID() uuid.UUID {
	u2, _ := uuid.NewV4()
	return u2
}

// GenSlug produces a short lowercase identifier for forms created without an
// explicit slug.
func GenSlug() string {
	return password.MustGenerate(6, 3, 0, false, true)
}
