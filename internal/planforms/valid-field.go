// Field type registry and per-type value validation. The taxonomy is closed:
// a form definition referencing a type outside this map is rejected at save
// time, a submission value for an unknown type fails validation.
package planforms

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/planealo/planforms/internal/planforms/dao"
)

const (
	FieldText       = "text"
	FieldEmail      = "email"
	FieldURL        = "url"
	FieldSelect     = "select"
	FieldCheckboxes = "checkboxes"
	FieldLikert     = "likert"
	FieldDate       = "date"
	FieldTime       = "time"
	FieldDateRange  = "daterange"
	FieldFile       = "file"
	FieldSignature  = "signature"
	FieldHeader     = "header"
	FieldParagraph  = "paragraph"
	FieldDivider    = "divider"
	FieldPageBreak  = "pagebreak"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
var signatureRegex = regexp.MustCompile(`^data:image/(png|jpeg|svg\+xml);base64,`)

// FileUpload is a decoded multipart file part, not yet persisted.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// RawValue is everything a submitter sent under one field name. Plain inputs
// arrive in Values, uploads in File.
type RawValue struct {
	Values []string
	File   *FileUpload
}

// Empty reports whether the submitter provided nothing usable. Whitespace
// only input counts as missing.
func (r RawValue) Empty() bool {
	if r.File != nil {
		return false
	}
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (r RawValue) First() string {
	for _, v := range r.Values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// valueError carries a stable machine code next to the human message.
type valueError struct {
	Code string
	Msg  string
}

func (e *valueError) Error() string { return e.Msg }

func errInvalid(format string, args ...interface{}) *valueError {
	return &valueError{Code: "invalid", Msg: fmt.Sprintf(format, args...)}
}

type normalizeFunc func(field *dao.FormField, raw RawValue) (interface{}, *valueError)

// FieldType describes one entry of the registry.
type FieldType struct {
	Name string

	// Structural types render content and never carry a value.
	Structural bool

	// NeedsOptions requires a non empty option list in the definition.
	NeedsOptions bool

	Normalize normalizeFunc
}

var fieldTypes = map[string]FieldType{
	FieldText:       {Name: FieldText, Normalize: normalizeText},
	FieldEmail:      {Name: FieldEmail, Normalize: normalizeEmail},
	FieldURL:        {Name: FieldURL, Normalize: normalizeURL},
	FieldSelect:     {Name: FieldSelect, NeedsOptions: true, Normalize: normalizeSelect},
	FieldCheckboxes: {Name: FieldCheckboxes, NeedsOptions: true, Normalize: normalizeCheckboxes},
	FieldLikert:     {Name: FieldLikert, NeedsOptions: true, Normalize: normalizeSelect},
	FieldDate:       {Name: FieldDate, Normalize: normalizeDate},
	FieldTime:       {Name: FieldTime, Normalize: normalizeTime},
	FieldDateRange:  {Name: FieldDateRange, Normalize: normalizeDateRange},
	FieldFile:       {Name: FieldFile, Normalize: normalizeFile},
	FieldSignature:  {Name: FieldSignature, Normalize: normalizeSignature},
	FieldHeader:     {Name: FieldHeader, Structural: true},
	FieldParagraph:  {Name: FieldParagraph, Structural: true},
	FieldDivider:    {Name: FieldDivider, Structural: true},
	FieldPageBreak:  {Name: FieldPageBreak, Structural: true},
}

// FieldTypeFor looks a type up in the registry.
func FieldTypeFor(name string) (FieldType, bool) {
	ft, ok := fieldTypes[name]
	return ft, ok
}

// IsStructuralType reports whether the type carries no value.
func IsStructuralType(name string) bool {
	ft, ok := fieldTypes[name]
	return ok && ft.Structural
}

func normalizeText(field *dao.FormField, raw RawValue) (interface{}, *valueError) {
	val := strings.TrimSpace(strings.Join(raw.Values, "\n"))

	if min, ok := field.ValidationRules.IntRule("min_length"); ok && len([]rune(val)) < min {
		return nil, &valueError{Code: "too_short", Msg: fmt.Sprintf("value shorter than %d characters", min)}
	}
	if max, ok := field.ValidationRules.IntRule("max_length"); ok && len([]rune(val)) > max {
		return nil, &valueError{Code: "too_long", Msg: fmt.Sprintf("value longer than %d characters", max)}
	}

	if pattern := field.ValidationRules.Pattern(); pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil || !re.MatchString(val) {
			return nil, errInvalid("value does not match the expected format")
		}
	}
	return val, nil
}

func normalizeEmail(field *dao.FormField, raw RawValue) (interface{}, *valueError) {
	val := raw.First()

	re := emailRegex
	if pattern := field.ValidationRules.Pattern(); pattern != "" {
		custom, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errInvalid("value does not match the expected format")
		}
		re = custom
	}
	if !re.MatchString(val) {
		return nil, errInvalid("not a valid email address")
	}
	return val, nil
}

func normalizeURL(field *dao.FormField, raw RawValue) (interface{}, *valueError) {
	val := raw.First()

	u, err := url.Parse(val)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errInvalid("not a valid http(s) URL")
	}
	return val, nil
}

func normalizeSelect(field *dao.FormField, raw RawValue) (interface{}, *valueError) {
	val := raw.First()

	if !field.Options.Contains(val) {
		return nil, &valueError{Code: "not_option", Msg: fmt.Sprintf("%q is not an allowed choice", val)}
	}
	return val, nil
}

func normalizeCheckboxes(field *dao.FormField, raw RawValue) (interface{}, *valueError) {
	selected := make([]string, 0, len(raw.Values))
	for _, v := range raw.Values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !field.Options.Contains(v) {
			return nil, &valueError{Code: "not_option", Msg: fmt.Sprintf("%q is not an allowed choice", v)}
		}
		selected = append(selected, v)
	}

	if min, ok := field.ValidationRules.IntRule("min_selected"); ok && len(selected) < min {
		return nil, &valueError{Code: "too_short", Msg: fmt.Sprintf("select at least %d options", min)}
	}
	if max, ok := field.ValidationRules.IntRule("max_selected"); ok && len(selected) > max {
		return nil, &valueError{Code: "too_long", Msg: fmt.Sprintf("select at most %d options", max)}
	}
	return selected, nil
}

func normalizeDate(field *dao.FormField, raw RawValue) (interface{}, *valueError) {
	val := raw.First()
	if _, err := time.Parse(dateLayout, val); err != nil {
		return nil, errInvalid("not a valid date, expected YYYY-MM-DD")
	}
	return val, nil
}

func normalizeTime(field *dao.FormField, raw RawValue) (interface{}, *valueError) {
	val := raw.First()
	if _, err := time.Parse(timeLayout, val); err != nil {
		return nil, errInvalid("not a valid time, expected HH:MM")
	}
	return val, nil
}

func normalizeDateRange(field *dao.FormField, raw RawValue) (interface{}, *valueError) {
	parts := make([]string, 0, 2)
	for _, v := range raw.Values {
		if s := strings.TrimSpace(v); s != "" {
			parts = append(parts, s)
		}
	}
	// A single "start,end" value is also accepted.
	if len(parts) == 1 {
		parts = strings.SplitN(parts[0], ",", 2)
	}
	if len(parts) != 2 {
		return nil, errInvalid("expected a start and an end date")
	}

	start, err := time.Parse(dateLayout, strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, errInvalid("not a valid date, expected YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, errInvalid("not a valid date, expected YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, &valueError{Code: "bad_range", Msg: "end date is before start date"}
	}
	return []string{start.Format(dateLayout), end.Format(dateLayout)}, nil
}

func normalizeFile(field *dao.FormField, raw RawValue) (interface{}, *valueError) {
	if raw.File == nil {
		return nil, errInvalid("expected a file upload")
	}
	if len(raw.File.Data) == 0 {
		return nil, errInvalid("uploaded file is empty")
	}
	if raw.File.Filename == "" {
		return nil, errInvalid("uploaded file has no name")
	}
	if maxMb, ok := field.ValidationRules.IntRule("max_size_mb"); ok && raw.File.Size > int64(maxMb)*1024*1024 {
		return nil, &valueError{Code: "too_large", Msg: fmt.Sprintf("file larger than %d MB", maxMb)}
	}
	return raw.File, nil
}

func normalizeSignature(field *dao.FormField, raw RawValue) (interface{}, *valueError) {
	val := raw.First()

	loc := signatureRegex.FindStringIndex(val)
	if loc == nil {
		return nil, errInvalid("expected a base64 image data URL")
	}
	if _, err := base64.StdEncoding.DecodeString(val[loc[1]:]); err != nil {
		return nil, errInvalid("signature payload is not valid base64")
	}
	return val, nil
}

// DisplayValue renders a stored submission value for exports. Multi valued
// fields are joined with ";".
func DisplayValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ";")
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, e := range v {
			parts = append(parts, DisplayValue(e))
		}
		return strings.Join(parts, ";")
	case map[string]interface{}:
		// Stored file descriptor.
		if name, ok := v["name"].(string); ok {
			return name
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
