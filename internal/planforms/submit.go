// Submission validation. All value bearing fields are checked in one pass
// and every failure is reported; a submission with any error is rejected
// whole.
package planforms

import (
	"fmt"
	"strings"

	"github.com/planealo/planforms/internal/planforms/dao"
	"github.com/planealo/planforms/internal/planforms/types"
)

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateSubmission checks raw input against the form definition and builds
// the canonical value document. Returned errors cover every failing field.
// Keys in raw that match no field are ignored.
func ValidateSubmission(form *dao.Form, raw map[string]RawValue) (types.SubmissionValues, []FieldError) {
	values := types.SubmissionValues{}
	var errs []FieldError

	for i := range form.Fields {
		field := &form.Fields[i]

		ft, ok := fieldTypes[field.Type]
		if !ok {
			errs = append(errs, FieldError{Field: field.Name, Code: "invalid", Message: "unknown field type"})
			continue
		}
		if ft.Structural {
			continue
		}

		rv := raw[field.Name]

		if !FieldActive(field, raw) {
			// Hidden fields keep whatever the client sent, without
			// validation, so partially filled pages survive rule flips.
			if !rv.Empty() && rv.File == nil {
				values[field.Name] = passiveValue(rv)
			}
			continue
		}

		if rv.Empty() {
			if field.Required {
				errs = append(errs, FieldError{Field: field.Name, Code: "required", Message: "this field is required"})
			}
			continue
		}

		val, verr := ft.Normalize(field, rv)
		if verr != nil {
			errs = append(errs, FieldError{Field: field.Name, Code: verr.Code, Message: verr.Msg})
			continue
		}
		values[field.Name] = val
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return values, nil
}

func passiveValue(rv RawValue) interface{} {
	trimmed := make([]string, 0, len(rv.Values))
	for _, v := range rv.Values {
		if s := strings.TrimSpace(v); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	if len(trimmed) == 1 {
		return trimmed[0]
	}
	return trimmed
}
