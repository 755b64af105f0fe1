// Database-facing value types for the form engine. Field options, validation
// rules, conditional logic and submission values are stored as jsonb columns,
// so each type here implements driver.Valuer and sql.Scanner.
package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// FieldOption is one selectable choice of a select/checkboxes/likert field.
type FieldOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FieldOptionsSlice type
type FieldOptionsSlice []FieldOption

func (o FieldOptionsSlice) Value() (driver.Value, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (o *FieldOptionsSlice) Scan(value interface{}) error {
	if value == nil {
		*o = FieldOptionsSlice{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}

	return json.Unmarshal(bytes, o)
}

// Contains reports whether val is one of the declared option values.
func (o FieldOptionsSlice) Contains(val string) bool {
	for _, opt := range o {
		if opt.Value == val {
			return true
		}
	}
	return false
}

// RulesMap holds the per-field validation_rules document (pattern,
// min_length, max_length).
type RulesMap map[string]interface{}

func (r RulesMap) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *RulesMap) Scan(value interface{}) error {
	if value == nil {
		*r = RulesMap{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}

	return json.Unmarshal(bytes, r)
}

// Pattern returns the custom regex rule, if any.
func (r RulesMap) Pattern() string {
	if r == nil {
		return ""
	}
	if p, ok := r["pattern"].(string); ok {
		return p
	}
	return ""
}

// IntRule returns an integer rule value (json numbers decode as float64).
func (r RulesMap) IntRule(name string) (int, bool) {
	if r == nil {
		return 0, false
	}
	switch v := r[name].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// ConditionalRule makes a field's activity depend on a sibling field's
// submitted value. The target is named Target so the Valuer method keeps the
// Value name gorm expects.
type ConditionalRule struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Target   interface{} `json:"value"`
}

func (c ConditionalRule) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (c *ConditionalRule) Scan(value interface{}) error {
	if value == nil {
		*c = ConditionalRule{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}

	return json.Unmarshal(bytes, c)
}

// WebhookConfig is one outbound notification endpoint configured on a form.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// NotificationConfig is the config.notifications document of a form.
type NotificationConfig struct {
	Webhooks []WebhookConfig `json:"webhooks,omitempty"`
	Emails   []string        `json:"emails,omitempty"`
}

// FormConfig is the free-form config document of a form. Only the
// notifications branch is interpreted by the engine; everything else is
// stored and round-tripped untouched.
type FormConfig struct {
	Notifications NotificationConfig     `json:"notifications,omitempty"`
	Extra         map[string]interface{} `json:"-"`
}

func (c FormConfig) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(c.Extra)+1)
	for k, v := range c.Extra {
		out[k] = v
	}
	if len(c.Notifications.Webhooks) > 0 || len(c.Notifications.Emails) > 0 {
		out["notifications"] = c.Notifications
	}
	return json.Marshal(out)
}

func (c *FormConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = FormConfig{}
	if n, ok := raw["notifications"]; ok {
		if err := json.Unmarshal(n, &c.Notifications); err != nil {
			return err
		}
		delete(raw, "notifications")
	}
	if len(raw) > 0 {
		c.Extra = make(map[string]interface{}, len(raw))
		for k, v := range raw {
			var val interface{}
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			c.Extra[k] = val
		}
	}
	return nil
}

func (c FormConfig) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (c *FormConfig) Scan(value interface{}) error {
	if value == nil {
		*c = FormConfig{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}

	return json.Unmarshal(bytes, c)
}

// SubmissionValues is the normalized field name -> value mapping of one
// submission. Value shapes per field type: string, []string for
// checkboxes/daterange, a file descriptor map for uploads.
type SubmissionValues map[string]interface{}

func (s SubmissionValues) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SubmissionValues) Scan(value interface{}) error {
	if value == nil {
		*s = SubmissionValues{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}

	return json.Unmarshal(bytes, s)
}

type JsonURL struct {
	Url *url.URL
}

func (u *JsonURL) MarshalJSON() ([]byte, error) {
	if u == nil || u.Url == nil {
		return []byte("null"), nil
	}
	return []byte("\"" + u.Url.String() + "\""), nil
}
