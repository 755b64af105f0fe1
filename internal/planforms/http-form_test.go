package planforms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/planealo/planforms/internal/planforms/config"
	"github.com/planealo/planforms/internal/planforms/dao"
	"github.com/planealo/planforms/internal/planforms/dto"
	filestorage "github.com/planealo/planforms/internal/planforms/file-storage"
	"github.com/planealo/planforms/internal/planforms/notifications"
)

var (
	e *echo.Echo
	s *Services
)

func TestMain(m *testing.M) {
	cfg = config.ReadConfig()
	dao.Config = cfg

	tmpDir, err := os.MkdirTemp("", "planforms-test-*")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	db, err := gorm.Open(sqlite.Open(filepath.Join(tmpDir, "test.db")), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(&dao.Form{}, &dao.FormField{}, &dao.Submission{}, &dao.FileAsset{}); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	storage, err := filestorage.NewLocalStorage(filepath.Join(tmpDir, "uploads"))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	dao.FileStorage = storage

	s = &Services{
		db:           db,
		storage:      storage,
		emailService: notifications.NewEmailService(cfg),
		dispatcher:   notifications.NewDispatcher(2*time.Second, 5*time.Second),
	}

	e = echo.New()
	e.Validator = NewRequestValidator()
	s.AddFormServices(e.Group("/api/admin/"))
	s.AddSubmitServices(e.Group("/forms/api/"))
	e.GET("/api/file/:fileId/", s.getFile)

	code := m.Run()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}

func doJSON(method, target string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doSubmit(slug string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/forms/api/"+slug+"/submit/", strings.NewReader(values.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createTestForm(t *testing.T, body map[string]interface{}) dto.Form {
	rec := doJSON("POST", "/api/admin/forms/", body)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var form dto.Form
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &form))
	assert.NotZero(t, form.ID)
	assert.NotEmpty(t, form.Slug)
	return form
}

func TestCreateForm(t *testing.T) {
	form := createTestForm(t, map[string]interface{}{
		"name": "Contacto",
		"fields": []map[string]interface{}{
			{"field_type": "header", "label": "Escríbenos"},
			{"field_type": "text", "name": "name", "is_required": true},
			{"field_type": "email", "name": "email", "is_required": true},
		},
	})

	assert.True(t, form.IsActive)
	assert.Len(t, form.Fields, 3)
	assert.Equal(t, "header", form.Fields[0].Type)
	assert.True(t, form.Fields[1].Required)

	rec := doJSON("GET", fmt.Sprintf("/api/admin/forms/%d/", form.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateFormSlugConflict(t *testing.T) {
	body := map[string]interface{}{
		"name": "Duplicada",
		"slug": "duplicada",
		"fields": []map[string]interface{}{
			{"field_type": "text", "name": "name"},
		},
	}
	createTestForm(t, body)

	rec := doJSON("POST", "/api/admin/forms/", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateFormInvalidFields(t *testing.T) {
	cases := []struct {
		name   string
		fields []map[string]interface{}
	}{
		{"unknown type", []map[string]interface{}{
			{"field_type": "captcha", "name": "x"},
		}},
		{"duplicate name", []map[string]interface{}{
			{"field_type": "text", "name": "name"},
			{"field_type": "email", "name": "name"},
		}},
		{"select without options", []map[string]interface{}{
			{"field_type": "select", "name": "plan"},
		}},
		{"dangling conditional", []map[string]interface{}{
			{"field_type": "text", "name": "company", "conditional_logic": map[string]interface{}{
				"field": "plan", "operator": "equals", "value": "pro",
			}},
		}},
		{"bad pattern", []map[string]interface{}{
			{"field_type": "text", "name": "code", "validation_rules": map[string]interface{}{
				"pattern": "[",
			}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON("POST", "/api/admin/forms/", map[string]interface{}{
				"name":   "Inválida",
				"fields": tc.fields,
			})
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestUpdateForm(t *testing.T) {
	form := createTestForm(t, map[string]interface{}{
		"name": "Encuesta",
		"fields": []map[string]interface{}{
			{"field_type": "text", "name": "name"},
		},
	})

	inactive := false
	rec := doJSON("PATCH", fmt.Sprintf("/api/admin/forms/%d/", form.ID), map[string]interface{}{
		"name":      "Encuesta 2026",
		"is_active": &inactive,
		"fields": []map[string]interface{}{
			{"field_type": "text", "name": "name"},
			{"field_type": "text", "name": "city"},
		},
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated dto.Form
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Encuesta 2026", updated.Name)
	assert.False(t, updated.IsActive)
	assert.Len(t, updated.Fields, 2)
}

func TestSubmitForm(t *testing.T) {
	var hookCalls int
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hookCalls++
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	form := createTestForm(t, map[string]interface{}{
		"name": "Registro",
		"config": map[string]interface{}{
			"notifications": map[string]interface{}{
				"webhooks": []map[string]interface{}{{"url": hook.URL}},
			},
		},
		"fields": []map[string]interface{}{
			{"field_type": "text", "name": "name", "is_required": true},
			{"field_type": "select", "name": "plan", "is_required": true, "options": []map[string]interface{}{
				{"value": "basic", "label": "Básico"},
				{"value": "pro", "label": "Pro"},
			}},
		},
	})

	rec := doSubmit(form.Slug, url.Values{
		"name": {"Ana"},
		"plan": {"pro"},
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp respSubmission
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotZero(t, resp.SubmissionId)
	assert.Equal(t, 1, resp.SeqId)
	assert.Equal(t, 1, resp.Notification.Webhooks.Attempted)
	assert.Equal(t, 1, resp.Notification.Webhooks.Delivered)
	assert.Equal(t, 0, resp.Notification.Emails.Attempted)
	assert.Equal(t, 1, hookCalls)

	// Second submission of the same form advances the sequence.
	rec = doSubmit(form.Slug, url.Values{"name": {"Luis"}, "plan": {"basic"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.SeqId)
}

func TestSubmitValidationErrors(t *testing.T) {
	form := createTestForm(t, map[string]interface{}{
		"name": "Validada",
		"fields": []map[string]interface{}{
			{"field_type": "text", "name": "name", "is_required": true},
			{"field_type": "email", "name": "email", "is_required": true},
			{"field_type": "select", "name": "plan", "options": []map[string]interface{}{
				{"value": "basic", "label": "Básico"},
			}},
		},
	})

	rec := doSubmit(form.Slug, url.Values{
		"email": {"not-an-email"},
		"plan":  {"enterprise"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Success bool         `json:"success"`
		Errors  []FieldError `json:"errors"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Len(t, resp.Errors, 3)

	// Nothing was stored.
	var count int64
	s.db.Model(&dao.Submission{}).Where("form_id = ?", form.ID).Count(&count)
	assert.Zero(t, count)
}

func TestSubmitEmptyBodyRequiredField(t *testing.T) {
	form := createTestForm(t, map[string]interface{}{
		"name": "Obligatoria",
		"fields": []map[string]interface{}{
			{"field_type": "text", "name": "nombre", "is_required": true},
		},
	})

	rec := doSubmit(form.Slug, url.Values{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var resp struct {
		Success bool         `json:"success"`
		Errors  []FieldError `json:"errors"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Len(t, resp.Errors, 1)
	assert.Equal(t, "nombre", resp.Errors[0].Field)
	assert.Equal(t, "required", resp.Errors[0].Code)
}

func TestSubmitInactiveForm(t *testing.T) {
	inactive := false
	form := createTestForm(t, map[string]interface{}{
		"name":      "Cerrada",
		"is_active": &inactive,
		"fields": []map[string]interface{}{
			{"field_type": "text", "name": "name"},
		},
	})

	rec := doSubmit(form.Slug, url.Values{"name": {"Ana"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON("GET", "/forms/api/"+form.Slug+"/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicFormHidesNotifications(t *testing.T) {
	form := createTestForm(t, map[string]interface{}{
		"name": "Pública",
		"config": map[string]interface{}{
			"notifications": map[string]interface{}{
				"webhooks": []map[string]interface{}{{"url": "https://example.com/hook"}},
				"emails":   []string{"admin@planealo.mx"},
			},
			"theme": "dark",
		},
		"fields": []map[string]interface{}{
			{"field_type": "text", "name": "name"},
		},
	})

	rec := doJSON("GET", "/forms/api/"+form.Slug+"/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var pub dto.Form
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pub))
	assert.Empty(t, pub.Config.Notifications.Webhooks)
	assert.Empty(t, pub.Config.Notifications.Emails)
	assert.Equal(t, "dark", pub.Config.Extra["theme"])

	// The admin view keeps them.
	rec = doJSON("GET", fmt.Sprintf("/api/admin/forms/%d/", form.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var adminView dto.Form
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &adminView))
	assert.Len(t, adminView.Config.Notifications.Webhooks, 1)
}

func TestSubmissionsListAndExport(t *testing.T) {
	form := createTestForm(t, map[string]interface{}{
		"name": "Temas",
		"fields": []map[string]interface{}{
			{"field_type": "text", "name": "name", "is_required": true},
			{"field_type": "checkboxes", "name": "topics", "options": []map[string]interface{}{
				{"value": "go", "label": "Go"},
				{"value": "sql", "label": "SQL"},
				{"value": "css", "label": "CSS"},
			}},
		},
	})

	rec := doSubmit(form.Slug, url.Values{
		"name":   {"Ana"},
		"topics": {"go", "sql"},
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = doSubmit(form.Slug, url.Values{"name": {"Luis"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON("GET", fmt.Sprintf("/api/admin/forms/%d/submissions/?limit=10", form.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Count  int64            `json:"count"`
		Result []dto.Submission `json:"result"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 2, page.Count)
	assert.Len(t, page.Result, 2)
	assert.Equal(t, "Ana", page.Result[0].Values["name"])

	rec = doJSON("GET", fmt.Sprintf("/api/admin/forms/%d/submissions/export/csv/", form.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "submission_id,name,topics", lines[0])
	assert.Contains(t, lines[1], "Ana,go;sql")
	assert.Contains(t, lines[2], "Luis,")
}

func TestFormListPagination(t *testing.T) {
	rec := doJSON("GET", "/api/admin/forms/?limit=2", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Count  int64           `json:"count"`
		Limit  int             `json:"limit"`
		Result []dto.FormLight `json:"result"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Limit)
	assert.True(t, len(page.Result) <= 2)
	assert.True(t, page.Count >= int64(len(page.Result)))
}
