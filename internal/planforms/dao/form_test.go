package dao

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/planealo/planforms/internal/planforms/config"
	"github.com/planealo/planforms/internal/planforms/types"
)

var db *gorm.DB

func TestMain(m *testing.M) {
	Config = config.ReadConfig()

	tmpDir, err := os.MkdirTemp("", "planforms-dao-*")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	db, err = gorm.Open(sqlite.Open(filepath.Join(tmpDir, "test.db")), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(&Form{}, &FormField{}, &Submission{}, &FileAsset{}); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}

func TestGetFormOrdersFields(t *testing.T) {
	form := Form{
		Slug: "ordered",
		Name: "Ordered",
		Fields: []FormField{
			{Type: "text", Name: "third", SortOrder: 2},
			{Type: "text", Name: "first", SortOrder: 0},
			{Type: "text", Name: "second", SortOrder: 1},
		},
	}
	assert.NoError(t, db.Create(&form).Error)

	loaded, err := GetForm(db, "ordered")
	assert.NoError(t, err)
	assert.Equal(t, "first", loaded.Fields[0].Name)
	assert.Equal(t, "second", loaded.Fields[1].Name)
	assert.Equal(t, "third", loaded.Fields[2].Name)

	byID, err := GetFormByID(db, form.ID)
	assert.NoError(t, err)
	assert.Equal(t, form.Slug, byID.Slug)

	_, err = GetForm(db, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFormSanitizedOnSave(t *testing.T) {
	form := Form{
		Slug:        "sanitized",
		Name:        "Hello <script>alert(1)</script>",
		Description: "<b>bold</b> text",
		Fields: []FormField{
			{Type: "text", Name: "name", Label: "<i>Nombre</i>"},
		},
	}
	assert.NoError(t, db.Create(&form).Error)

	assert.Equal(t, "Hello ", form.Name)
	assert.Equal(t, "bold text", form.Description)
	assert.Equal(t, "Nombre", form.Fields[0].Label)
}

func TestSlugUnique(t *testing.T) {
	assert.NoError(t, db.Create(&Form{Slug: "taken", Name: "A"}).Error)
	err := db.Create(&Form{Slug: "taken", Name: "B"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestNextSeqIdPerForm(t *testing.T) {
	a := Form{Slug: "seq-a", Name: "A"}
	b := Form{Slug: "seq-b", Name: "B"}
	assert.NoError(t, db.Create(&a).Error)
	assert.NoError(t, db.Create(&b).Error)

	for want := 1; want <= 3; want++ {
		assert.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			seq, err := NextSeqId(tx, a.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, want, seq)
			return tx.Create(&Submission{FormId: a.ID, SeqId: seq, Values: types.SubmissionValues{}}).Error
		}))
	}

	// Other forms keep their own sequence.
	seq, err := NextSeqId(db, b.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, seq)
}

func TestGenSlug(t *testing.T) {
	slug := GenSlug()
	assert.Len(t, slug, 6)
	assert.NotEqual(t, slug, GenSlug())
}
