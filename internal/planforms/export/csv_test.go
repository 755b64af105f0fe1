package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/planealo/planforms/internal/planforms/dao"
	"github.com/planealo/planforms/internal/planforms/types"
)

func testRender(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ";")
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, e := range v {
			parts = append(parts, e.(string))
		}
		return strings.Join(parts, ";")
	}
	return ""
}

func testStructural(fieldType string) bool {
	return fieldType == "header"
}

func TestWriteSubmissionsCSV(t *testing.T) {
	form := &dao.Form{
		Slug: "survey",
		Fields: []dao.FormField{
			{Type: "header", Label: "Datos"},
			{Type: "text", Name: "name", SortOrder: 0},
			{Type: "checkboxes", Name: "topics", SortOrder: 1},
		},
	}
	submissions := []dao.Submission{
		{ID: 1, SeqId: 1, Values: types.SubmissionValues{"name": "Ana", "topics": []string{"go", "sql"}}},
		{ID: 2, SeqId: 2, Values: types.SubmissionValues{"name": "Luis"}},
	}

	var buf bytes.Buffer
	assert.NoError(t, WriteSubmissionsCSV(&buf, form, submissions, testStructural, testRender))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "submission_id,name,topics", lines[0])
	assert.Equal(t, "1,Ana,go;sql", lines[1])
	assert.Equal(t, "2,Luis,", lines[2])
}

func TestWriteSubmissionsCSVEmpty(t *testing.T) {
	form := &dao.Form{Fields: []dao.FormField{{Type: "text", Name: "name"}}}

	var buf bytes.Buffer
	assert.NoError(t, WriteSubmissionsCSV(&buf, form, nil, testStructural, testRender))
	assert.Equal(t, "submission_id,name\n", buf.String())
}

func TestColumnNamesOrder(t *testing.T) {
	form := &dao.Form{
		Fields: []dao.FormField{
			{Type: "text", Name: "b"},
			{Type: "header"},
			{Type: "text", Name: "a"},
		},
	}
	// Definition order, not alphabetical.
	assert.Equal(t, []string{"submission_id", "b", "a"}, ColumnNames(form, testStructural))
}
