// CSV export of form submissions. The header is submission_id followed by
// the value bearing field names in definition order; every row renders the
// stored values of one submission.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/planealo/planforms/internal/planforms/dao"
)

// ColumnNames lists the export columns of a form, structural fields
// excluded.
func ColumnNames(form *dao.Form, structural func(string) bool) []string {
	cols := make([]string, 0, len(form.Fields)+1)
	cols = append(cols, "submission_id")
	for _, field := range form.Fields {
		if structural(field.Type) {
			continue
		}
		cols = append(cols, field.Name)
	}
	return cols
}

// WriteSubmissionsCSV streams all submissions of a form to w. The render
// callback turns a stored value into its cell text.
func WriteSubmissionsCSV(w io.Writer, form *dao.Form, submissions []dao.Submission, structural func(string) bool, render func(interface{}) string) error {
	cw := csv.NewWriter(w)

	cols := ColumnNames(form, structural)
	if err := cw.Write(cols); err != nil {
		return err
	}

	for _, sub := range submissions {
		row := make([]string, 0, len(cols))
		row = append(row, fmt.Sprintf("%d", sub.ID))
		for _, name := range cols[1:] {
			val, ok := sub.Values[name]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, render(val))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
