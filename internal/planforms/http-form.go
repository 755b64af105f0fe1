// Admin endpoints for managing form definitions: create, list, fetch and
// update. Field configurations are validated against the type registry
// before anything is written.
package planforms

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/planealo/planforms/internal/planforms/apierrors"
	"github.com/planealo/planforms/internal/planforms/dao"
	"github.com/planealo/planforms/internal/planforms/dto"
	"github.com/planealo/planforms/internal/planforms/types"
	"github.com/planealo/planforms/internal/planforms/utils"
)

type FormContext struct {
	echo.Context
	Form dao.Form
}

func (s *Services) FormMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		formId, err := strconv.ParseUint(c.Param("formId"), 10, 64)
		if err != nil {
			return EErrorDefined(c, apierrors.ErrFormNotFound)
		}

		form, err := dao.GetFormByID(s.db, uint(formId))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return EErrorDefined(c, apierrors.ErrFormNotFound)
			}
			return EErrorDefined(c, apierrors.ErrGeneric)
		}

		return next(FormContext{c, *form})
	}
}

func (s *Services) AddFormServices(g *echo.Group) {
	g.GET("forms/", s.getFormList)
	g.POST("forms/", s.createForm)

	formGroup := g.Group("forms/:formId", s.FormMiddleware)
	formGroup.GET("/", s.getForm)
	formGroup.PATCH("/", s.updateForm)
	formGroup.GET("/submissions/", s.getSubmissions)
	formGroup.GET("/submissions/export/csv/", s.exportSubmissionsCSV)
}

func (s *Services) getFormList(c echo.Context) error {
	offset := 0
	limit := 100

	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 1000 {
		limit = v
	}

	var forms []dao.Form
	resp, err := dao.PaginationRequest(offset, limit, s.db.Order("lower(name)"), &forms)
	if err != nil {
		return EErrorDefined(c, apierrors.ErrGeneric)
	}
	resp.Result = utils.SliceToSlice(&forms, func(f *dao.Form) dto.FormLight { return *f.ToLightDTO() })

	return c.JSON(http.StatusOK, resp)
}

func (s *Services) createForm(c echo.Context) error {
	var req reqForm
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormBadRequest)
	}

	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormRequestValidate)
	}

	form := req.toDao(nil)

	if err := checkFormFields(form.Fields); err != nil {
		return EErrorDefined(c, apierrors.ErrFormCheckFields.WithFormattedMessage(err.Error()))
	}
	if err := checkNotifications(&form.Config.Notifications); err != nil {
		return EErrorDefined(c, apierrors.ErrFormCheckFields.WithFormattedMessage(err.Error()))
	}

	if err := s.db.Create(form).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return EErrorDefined(c, apierrors.ErrFormSlugConflict)
		}
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, form.ToDTO())
}

func (s *Services) getForm(c echo.Context) error {
	form := c.(FormContext).Form
	return c.JSON(http.StatusOK, form.ToDTO())
}

func (s *Services) updateForm(c echo.Context) error {
	form := c.(FormContext).Form

	var req reqForm
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormBadRequest)
	}

	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormRequestValidate)
	}

	updated := req.toDao(&form)

	if err := checkFormFields(updated.Fields); err != nil {
		return EErrorDefined(c, apierrors.ErrFormCheckFields.WithFormattedMessage(err.Error()))
	}
	if err := checkNotifications(&updated.Config.Notifications); err != nil {
		return EErrorDefined(c, apierrors.ErrFormCheckFields.WithFormattedMessage(err.Error()))
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		// Field rows are replaced wholesale; submissions keep their stored
		// values either way.
		if err := tx.Unscoped().Where("form_id = ?", form.ID).Delete(&dao.FormField{}).Error; err != nil {
			return err
		}
		return tx.Save(updated).Error
	}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return EErrorDefined(c, apierrors.ErrFormSlugConflict)
		}
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, updated.ToDTO())
}

func errFieldConfig(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// checkFormFields validates a field set against the registry: known types,
// unique names among value bearing fields, options where the type needs
// them, compilable patterns and sound conditional rules.
func checkFormFields(fields []dao.FormField) error {
	byName := make(map[string]*dao.FormField)

	for i := range fields {
		field := &fields[i]

		ft, ok := FieldTypeFor(field.Type)
		if !ok {
			return errFieldConfig("unknown field type %q", field.Type)
		}

		if ft.Structural {
			continue
		}

		if field.Name == "" {
			return errFieldConfig("field of type %q has no name", field.Type)
		}
		if !isValidIdentifier(field.Name) {
			return errFieldConfig("field name %q is not a valid identifier", field.Name)
		}
		if _, dup := byName[field.Name]; dup {
			return errFieldConfig("duplicate field name %q", field.Name)
		}
		byName[field.Name] = field

		if ft.NeedsOptions {
			if len(field.Options) == 0 {
				return errFieldConfig("field %q needs a non empty option list", field.Name)
			}
			seen := make(map[string]bool, len(field.Options))
			for _, opt := range field.Options {
				if opt.Value == "" {
					return errFieldConfig("field %q has an option without a value", field.Name)
				}
				if seen[opt.Value] {
					return errFieldConfig("field %q repeats option %q", field.Name, opt.Value)
				}
				seen[opt.Value] = true
			}
		}

		if pattern := field.ValidationRules.Pattern(); pattern != "" {
			if _, err := regexp.Compile(pattern); err != nil {
				return errFieldConfig("field %q has an invalid pattern: %v", field.Name, err)
			}
		}

		if min, okMin := field.ValidationRules.IntRule("min_length"); okMin {
			if max, okMax := field.ValidationRules.IntRule("max_length"); okMax && max < min {
				return errFieldConfig("field %q has max_length below min_length", field.Name)
			}
		}
	}

	for i := range fields {
		if err := checkConditionalRule(&fields[i], byName); err != nil {
			return err
		}
	}
	return nil
}

func checkNotifications(nc *types.NotificationConfig) error {
	for _, hook := range nc.Webhooks {
		u, err := url.Parse(hook.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return errFieldConfig("webhook url %q is not a valid http(s) URL", hook.URL)
		}
		if hook.Method != "" && hook.Method != http.MethodPost && hook.Method != http.MethodPut {
			return errFieldConfig("webhook method %q is not supported", hook.Method)
		}
	}
	for _, email := range nc.Emails {
		if !emailRegex.MatchString(email) {
			return errFieldConfig("notification email %q is not valid", email)
		}
	}
	return nil
}

// ***** REQUEST *****

type reqForm struct {
	Name        string            `json:"name,omitempty" validate:"required"`
	Slug        string            `json:"slug,omitempty" validate:"omitempty,slug"`
	Description string            `json:"description,omitempty"`
	IsActive    *bool             `json:"is_active,omitempty"`
	Config      *types.FormConfig `json:"config,omitempty"`
	Fields      []reqFormField    `json:"fields,omitempty"`
}

type reqFormField struct {
	Type             string                  `json:"field_type" validate:"required"`
	Name             string                  `json:"name,omitempty"`
	Label            string                  `json:"label,omitempty"`
	HelpText         string                  `json:"help_text,omitempty"`
	Required         bool                    `json:"is_required,omitempty"`
	Order            *int                    `json:"order,omitempty"`
	Options          types.FieldOptionsSlice `json:"options,omitempty"`
	ValidationRules  types.RulesMap          `json:"validation_rules,omitempty"`
	ConditionalLogic *types.ConditionalRule  `json:"conditional_logic,omitempty"`
}

// toDao maps the request onto a form entity. With a nil target a fresh form
// is built, slug autogenerated when absent; otherwise the target is updated
// in place and its field rows replaced.
func (rf *reqForm) toDao(form *dao.Form) *dao.Form {
	if form == nil {
		form = &dao.Form{IsActive: true}
		form.Slug = rf.Slug
		if form.Slug == "" {
			form.Slug = dao.GenSlug()
		}
	} else if rf.Slug != "" {
		form.Slug = rf.Slug
	}

	form.Name = rf.Name
	form.Description = rf.Description
	if rf.IsActive != nil {
		form.IsActive = *rf.IsActive
	}
	if rf.Config != nil {
		form.Config = *rf.Config
	}

	form.Fields = make([]dao.FormField, 0, len(rf.Fields))
	for i, f := range rf.Fields {
		order := i
		if f.Order != nil {
			order = *f.Order
		}
		form.Fields = append(form.Fields, dao.FormField{
			FormId:           form.ID,
			Type:             f.Type,
			Name:             f.Name,
			Label:            f.Label,
			HelpText:         f.HelpText,
			Required:         f.Required,
			SortOrder:        order,
			Options:          f.Options,
			ValidationRules:  f.ValidationRules,
			ConditionalLogic: f.ConditionalLogic,
		})
	}

	return form
}
