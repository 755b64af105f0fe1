// Conditional visibility of fields based on sibling answers. Evaluation is
// fail closed: an unknown operator or a dangling reference deactivates the
// field instead of guessing.
package planforms

import (
	"strings"

	"github.com/planealo/planforms/internal/planforms/dao"
	"github.com/planealo/planforms/internal/planforms/utils"
)

const (
	OpEquals    = "equals"
	OpNotEquals = "not_equals"
)

var supportedOperators = []string{OpEquals, OpNotEquals}

func OperatorSupported(op string) bool {
	return utils.CheckInSlice(op, supportedOperators)
}

// FieldActive decides whether a field participates in validation for this
// submission. Fields without a rule are always active.
func FieldActive(field *dao.FormField, raw map[string]RawValue) bool {
	rule := field.ConditionalLogic
	if rule == nil || rule.Field == "" {
		return true
	}

	controller, ok := raw[rule.Field]
	if !ok {
		controller = RawValue{}
	}

	switch rule.Operator {
	case OpEquals:
		return rawMatches(controller, rule.Target)
	case OpNotEquals:
		return !rawMatches(controller, rule.Target)
	default:
		return false
	}
}

// rawMatches compares the submitted value of the controlling field against
// the rule target. Multi valued fields match when any selected value does.
func rawMatches(raw RawValue, target interface{}) bool {
	want, ok := conditionTarget(target)
	if !ok {
		return false
	}
	if raw.Empty() {
		return want == ""
	}
	for _, v := range raw.Values {
		if strings.TrimSpace(v) == want {
			return true
		}
	}
	return false
}

func conditionTarget(target interface{}) (string, bool) {
	switch v := target.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	default:
		return "", false
	}
}

// checkConditionalRule validates a rule at definition time against its
// sibling fields.
func checkConditionalRule(field *dao.FormField, byName map[string]*dao.FormField) error {
	rule := field.ConditionalLogic
	if rule == nil || rule.Field == "" {
		return nil
	}

	if !OperatorSupported(rule.Operator) {
		return errFieldConfig("field %q uses unsupported operator %q", field.Name, rule.Operator)
	}

	controller, ok := byName[rule.Field]
	if !ok {
		return errFieldConfig("field %q references unknown field %q", field.Name, rule.Field)
	}
	if controller.Name == field.Name {
		return errFieldConfig("field %q references itself", field.Name)
	}
	if IsStructuralType(controller.Type) {
		return errFieldConfig("field %q references structural field %q", field.Name, rule.Field)
	}
	if _, ok := rule.Target.(string); !ok && rule.Target != nil {
		return errFieldConfig("field %q has a non string condition value", field.Name)
	}
	return nil
}
