// Public submission endpoints and the admin side of stored submissions.
// Submit accepts form encoded and multipart bodies, validates everything in
// one pass and only then persists; notifications fire after the commit.
package planforms

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/gofrs/uuid"
	"github.com/planealo/planforms/internal/planforms/apierrors"
	"github.com/planealo/planforms/internal/planforms/dao"
	"github.com/planealo/planforms/internal/planforms/dto"
	"github.com/planealo/planforms/internal/planforms/export"
	filestorage "github.com/planealo/planforms/internal/planforms/file-storage"
	"github.com/planealo/planforms/internal/planforms/notifications"
	"github.com/planealo/planforms/internal/planforms/types"
	"github.com/planealo/planforms/internal/planforms/utils"
)

type SubmitFormContext struct {
	echo.Context
	Form dao.Form
}

func (s *Services) SubmitFormMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		form, err := dao.GetForm(s.db, c.Param("formSlug"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return EErrorDefined(c, apierrors.ErrFormNotFound)
			}
			return EErrorDefined(c, apierrors.ErrGeneric)
		}

		return next(SubmitFormContext{c, *form})
	}
}

func (s *Services) AddSubmitServices(g *echo.Group) {
	formGroup := g.Group(":formSlug", s.SubmitFormMiddleware)
	formGroup.GET("/", s.getPublicForm)
	formGroup.POST("/submit/", s.createSubmission)
}

func (s *Services) getPublicForm(c echo.Context) error {
	form := c.(SubmitFormContext).Form
	if !form.IsActive {
		return EErrorDefined(c, apierrors.ErrFormInactive)
	}
	res := form.ToDTO()
	// Notification targets stay private.
	res.Config.Notifications = types.NotificationConfig{}
	return c.JSON(http.StatusOK, res)
}

type respSubmission struct {
	Success      bool                   `json:"success"`
	SubmissionId uint                   `json:"submission_id"`
	SeqId        int                    `json:"seq_id"`
	Notification *notifications.Summary `json:"notification,omitempty"`
}

type respSubmissionInvalid struct {
	apierrors.DefinedError
	Success bool         `json:"success"`
	Errors  []FieldError `json:"errors"`
}

func (s *Services) createSubmission(c echo.Context) error {
	form := c.(SubmitFormContext).Form

	if !form.IsActive {
		return EErrorDefined(c, apierrors.ErrFormInactive)
	}

	raw, err := s.parseRawValues(c)
	if err != nil {
		if defined, ok := err.(apierrors.DefinedError); ok {
			return EErrorDefined(c, defined)
		}
		return EErrorDefined(c, apierrors.ErrFormBadRequest)
	}

	values, fieldErrs := ValidateSubmission(&form, raw)
	if len(fieldErrs) > 0 {
		submissionsRejected.Inc()
		return c.JSON(apierrors.ErrSubmissionInvalid.StatusCode, respSubmissionInvalid{
			DefinedError: apierrors.ErrSubmissionInvalid,
			Errors:       fieldErrs,
		})
	}

	submission := dao.Submission{FormId: form.ID}
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		seqId, err := dao.NextSeqId(tx, form.ID)
		if err != nil {
			return err
		}
		submission.SeqId = seqId
		submission.Values = values

		// Uploads are persisted first so the stored document only ever
		// references existing assets.
		for name, val := range values {
			upload, ok := val.(*FileUpload)
			if !ok {
				continue
			}
			asset := dao.FileAsset{
				Id:          dao.GenUUID(),
				FieldName:   name,
				Name:        upload.Filename,
				FileSize:    int(upload.Size),
				ContentType: upload.ContentType,
			}
			if err := s.storage.Save(upload.Data, asset.Id, upload.ContentType, &filestorage.Metadata{
				FormId:    fmt.Sprint(form.ID),
				FieldName: name,
			}); err != nil {
				return apierrors.ErrFileStoreFailed
			}
			submission.Files = append(submission.Files, asset)
			values[name] = map[string]interface{}{
				"id":           asset.Id.String(),
				"name":         asset.Name,
				"size":         asset.FileSize,
				"content_type": asset.ContentType,
			}
		}

		return tx.Create(&submission).Error
	}); err != nil {
		return EError(c, err)
	}

	submissionsAccepted.Inc()

	subDTO := submission.ToDTO()
	formDTO := form.ToDTO()

	summary := notifications.Summary{
		Webhooks: s.dispatcher.Dispatch(c.Request().Context(), formDTO, subDTO, form.Config.Notifications.Webhooks),
	}
	webhookFailures.Add(float64(summary.Webhooks.Failed))
	summary.Emails.Attempted = s.emailService.SubmissionReceived(
		form.Config.Notifications.Emails, formDTO, subDTO, s.submissionRows(&form, &submission))

	return c.JSON(http.StatusOK, respSubmission{
		Success:      true,
		SubmissionId: submission.ID,
		SeqId:        submission.SeqId,
		Notification: &summary,
	})
}

// parseRawValues collects form values and uploads into one map keyed by
// field name. Both urlencoded and multipart bodies are accepted.
func (s *Services) parseRawValues(c echo.Context) (map[string]RawValue, error) {
	raw := make(map[string]RawValue)

	params, err := c.FormParams()
	if err != nil {
		return nil, err
	}
	for name, vals := range params {
		raw[name] = RawValue{Values: vals}
	}

	mf, err := c.MultipartForm()
	if err != nil {
		// Not a multipart request.
		return raw, nil
	}

	maxSize := int64(cfg.MaxUploadSizeMB) * 1024 * 1024
	for name, headers := range mf.File {
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		if fh.Size > maxSize {
			return nil, apierrors.ErrFileTooLarge
		}

		src, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
		src.Close()
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > maxSize {
			return nil, apierrors.ErrFileTooLarge
		}

		rv := raw[name]
		rv.File = &FileUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        int64(len(data)),
			Data:        data,
		}
		raw[name] = rv
	}

	return raw, nil
}

// submissionRows renders the stored values in field order for the email
// body.
func (s *Services) submissionRows(form *dao.Form, sub *dao.Submission) [][2]string {
	var rows [][2]string
	for _, field := range form.Fields {
		if IsStructuralType(field.Type) {
			continue
		}
		val, ok := sub.Values[field.Name]
		if !ok {
			continue
		}
		rows = append(rows, [2]string{field.Name, DisplayValue(val)})
	}
	return rows
}

func (s *Services) getSubmissions(c echo.Context) error {
	form := c.(FormContext).Form

	offset := 0
	limit := 100

	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 1000 {
		limit = v
	}

	var submissions []dao.Submission
	query := s.db.
		Preload("Files").
		Where("form_id = ?", form.ID).
		Order("seq_id")
	resp, err := dao.PaginationRequest(offset, limit, query, &submissions)
	if err != nil {
		return EErrorDefined(c, apierrors.ErrGeneric)
	}
	resp.Result = utils.SliceToSlice(&submissions, func(s *dao.Submission) dto.Submission { return *s.ToDTO() })

	return c.JSON(http.StatusOK, resp)
}

func (s *Services) exportSubmissionsCSV(c echo.Context) error {
	form := c.(FormContext).Form

	var submissions []dao.Submission
	if err := s.db.
		Where("form_id = ?", form.ID).
		Order("seq_id").
		Find(&submissions).Error; err != nil {
		return EErrorDefined(c, apierrors.ErrExportFailed)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s-submissions.csv"`, form.Slug))
	c.Response().WriteHeader(http.StatusOK)

	if err := export.WriteSubmissionsCSV(c.Response(), &form, submissions, IsStructuralType, DisplayValue); err != nil {
		return EErrorDefined(c, apierrors.ErrExportFailed)
	}
	return nil
}

// getFile streams a stored upload back to the client.
func (s *Services) getFile(c echo.Context) error {
	id, err := uuid.FromString(c.Param("fileId"))
	if err != nil {
		return EErrorMsgStatus(c, nil, http.StatusNotFound)
	}

	var asset dao.FileAsset
	if err := s.db.First(&asset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EErrorMsgStatus(c, nil, http.StatusNotFound)
		}
		return EError(c, err)
	}

	reader, err := s.storage.LoadReader(asset.Id)
	if err != nil {
		return EError(c, err)
	}
	defer reader.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, asset.Name))
	return c.Stream(http.StatusOK, asset.ContentType, reader)
}
