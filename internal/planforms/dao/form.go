// Data access layer for form definitions. A form owns an ordered set of
// field rows; deleting a form cascades to its fields, submissions and
// uploaded files.
package dao

import (
	"fmt"
	"net/url"
	"time"

	policy "github.com/planealo/planforms/internal/planforms/redactor-policy"
	"github.com/planealo/planforms/internal/planforms/dto"
	"github.com/planealo/planforms/internal/planforms/types"
	"gorm.io/gorm"
)

type Form struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Slug        string `json:"slug" gorm:"uniqueIndex;not null"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active" gorm:"default:true"`

	Config types.FormConfig `json:"config" gorm:"type:jsonb"`

	Fields []FormField `json:"fields" gorm:"foreignKey:FormId;constraint:OnDelete:CASCADE"`

	URL *url.URL `json:"-" gorm:"-" extensions:"x-nullable"`
}

func (Form) TableName() string { return "forms" }

type FormField struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"-"`

	FormId uint  `json:"-" gorm:"index;not null"`
	Form   *Form `json:"-" gorm:"foreignKey:FormId" extensions:"x-nullable"`

	Type     string `json:"field_type" gorm:"column:field_type;not null"`
	Name     string `json:"name" gorm:"not null"`
	Label    string `json:"label"`
	HelpText string `json:"help_text"`
	Required bool   `json:"is_required"`

	// Position inside the form; exports and rendering follow it.
	SortOrder int `json:"order" gorm:"column:sort_order;index"`

	Options          types.FieldOptionsSlice `json:"options,omitempty" gorm:"type:jsonb"`
	ValidationRules  types.RulesMap          `json:"validation_rules,omitempty" gorm:"type:jsonb"`
	ConditionalLogic *types.ConditionalRule  `json:"conditional_logic,omitempty" gorm:"type:jsonb" extensions:"x-nullable"`
}

func (FormField) TableName() string { return "form_fields" }

// ToLightDTO builds the list view without field rows.
func (f *Form) ToLightDTO() *dto.FormLight {
	if f == nil {
		return nil
	}
	f.SetUrl()
	return &dto.FormLight{
		ID:          f.ID,
		Slug:        f.Slug,
		Name:        f.Name,
		Description: f.Description,
		IsActive:    f.IsActive,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		Url:         types.JsonURL{Url: f.URL},
	}
}

func (f *Form) ToDTO() *dto.Form {
	if f == nil {
		return nil
	}
	res := &dto.Form{
		FormLight: *f.ToLightDTO(),
		Config:    f.Config,
	}
	for _, field := range f.Fields {
		res.Fields = append(res.Fields, *field.ToDTO())
	}
	return res
}

func (f *FormField) ToDTO() *dto.FormField {
	if f == nil {
		return nil
	}
	return &dto.FormField{
		ID:               f.ID,
		Type:             f.Type,
		Name:             f.Name,
		Label:            f.Label,
		HelpText:         f.HelpText,
		Required:         f.Required,
		SortOrder:        f.SortOrder,
		Options:          f.Options,
		ValidationRules:  f.ValidationRules,
		ConditionalLogic: f.ConditionalLogic,
	}
}

func (form *Form) SetUrl() {
	if Config == nil || Config.WebURL == nil {
		return
	}
	u, _ := url.Parse(fmt.Sprintf("/f/%s/", form.Slug))
	form.URL = Config.WebURL.ResolveReference(u)
}

// BeforeSave sanitizes user facing text to prevent stored XSS.
func (form *Form) BeforeSave(tx *gorm.DB) error {
	form.Name = policy.StripTagsPolicy.Sanitize(form.Name)
	form.Description = policy.StripTagsPolicy.Sanitize(form.Description)
	return nil
}

func (field *FormField) BeforeSave(tx *gorm.DB) error {
	field.Label = policy.StripTagsPolicy.Sanitize(field.Label)
	field.HelpText = policy.StripTagsPolicy.Sanitize(field.HelpText)
	return nil
}

// BeforeDelete removes submissions and file rows owned by the form. File
// payload cleanup is left to the maintenance job.
func (form *Form) BeforeDelete(tx *gorm.DB) error {
	if err := tx.Unscoped().
		Where("submission_id in (?)", tx.Select("id").Where("form_id = ?", form.ID).Model(&Submission{})).
		Delete(&FileAsset{}).Error; err != nil {
		return err
	}

	if err := tx.Unscoped().Where("form_id = ?", form.ID).Delete(&Submission{}).Error; err != nil {
		return err
	}

	return tx.Unscoped().Where("form_id = ?", form.ID).Delete(&FormField{}).Error
}

// GetForm fetches a form with its fields by slug.
func GetForm(tx *gorm.DB, slug string) (*Form, error) {
	var form Form
	if err := tx.
		Preload("Fields", func(db *gorm.DB) *gorm.DB {
			return db.Order("form_fields.sort_order asc, form_fields.id asc")
		}).
		Where("slug = ?", slug).
		First(&form).Error; err != nil {
		return nil, err
	}
	return &form, nil
}

// GetFormByID fetches a form with its fields by numeric id.
func GetFormByID(tx *gorm.DB, id uint) (*Form, error) {
	var form Form
	if err := tx.
		Preload("Fields", func(db *gorm.DB) *gorm.DB {
			return db.Order("form_fields.sort_order asc, form_fields.id asc")
		}).
		First(&form, id).Error; err != nil {
		return nil, err
	}
	return &form, nil
}
