// Transfer structures for forms and submissions. Used to serialize entities
// for API responses and for passing data between layers.
package dto

import (
	"time"

	"github.com/planealo/planforms/internal/planforms/types"
)

type FormLight struct {
	ID          uint          `json:"id"`
	Slug        string        `json:"slug"`
	Name        string        `json:"name" validate:"required"`
	Description string        `json:"description"`
	IsActive    bool          `json:"is_active"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Url         types.JsonURL `json:"url,omitempty"`
}

type Form struct {
	FormLight
	Config types.FormConfig `json:"config"`
	Fields []FormField      `json:"fields"`
}

type FormField struct {
	ID               uint                    `json:"id"`
	Type             string                  `json:"field_type"`
	Name             string                  `json:"name"`
	Label            string                  `json:"label"`
	HelpText         string                  `json:"help_text,omitempty"`
	Required         bool                    `json:"is_required"`
	SortOrder        int                     `json:"order"`
	Options          types.FieldOptionsSlice `json:"options,omitempty"`
	ValidationRules  types.RulesMap          `json:"validation_rules,omitempty"`
	ConditionalLogic *types.ConditionalRule  `json:"conditional_logic,omitempty" extensions:"x-nullable"`
}

type Submission struct {
	ID        uint      `json:"id"`
	SeqId     int       `json:"seq_id"`
	FormId    uint      `json:"form_id"`
	CreatedAt time.Time `json:"created_at"`

	Values types.SubmissionValues `json:"values"`

	Files []FileAsset `json:"files,omitempty"`
}

type FileAsset struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	FileSize    int    `json:"size"`
	ContentType string `json:"content_type"`
	FieldName   string `json:"field_name"`
}
