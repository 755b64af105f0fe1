// Cleanup of orphaned upload payloads. Files left in storage without a
// matching database row (aborted submissions, deleted forms) are removed on
// a schedule.
package maintenance

import (
	"log/slog"
	"time"

	"github.com/gofrs/uuid"
	"github.com/planealo/planforms/internal/planforms/dao"
	filestorage "github.com/planealo/planforms/internal/planforms/file-storage"
	"gorm.io/gorm"
)

// Objects and rows younger than this are left alone so in-flight submissions
// (payload written, row not yet committed) never lose their upload.
const orphanAge = 24 * time.Hour

type AssetsCleaner struct {
	db *gorm.DB
	si filestorage.FileStorage
}

func NewAssetCleaner(db *gorm.DB, si filestorage.FileStorage) *AssetsCleaner {
	return &AssetsCleaner{db, si}
}

func (ac *AssetsCleaner) CleanAssets() {
	slog.Info("Start assets cleaning")

	// Asset rows never attached to a submission, a day old: leftovers of
	// aborted accepts. BeforeDelete removes the payload too.
	var stale []dao.FileAsset
	if err := ac.db.
		Where("submission_id is null and created_at < ?", time.Now().Add(-orphanAge)).
		Find(&stale).Error; err != nil {
		slog.Error("Query stale assets fail", "err", err)
	}
	for i := range stale {
		if err := ac.db.Delete(&stale[i]).Error; err != nil {
			slog.Error("Delete stale asset fail", "id", stale[i].Id, "err", err)
		}
	}

	var removed int
	if err := ac.si.ListRoot(func(fi filestorage.FileInfo) error {
		id, err := uuid.FromString(fi.Name)
		if err != nil {
			// Not ours, leave it alone.
			return nil
		}
		if time.Since(fi.CreatedAt) < orphanAge {
			return nil
		}

		var exist bool
		if err := ac.db.
			Where("id = ?", id).
			Select("count(*) > 0").
			Model(&dao.FileAsset{}).
			Find(&exist).Error; err != nil {
			return err
		}
		if exist {
			return nil
		}
		if err := ac.si.Delete(id); err != nil {
			return err
		}
		removed++
		return nil
	}); err != nil {
		slog.Error("Clean assets fail", "err", err)
	}
	slog.Info("Finish assets cleaning", "stale", len(stale), "removed", removed)
}
