// Sanitization policies applied to user supplied text before it is stored.
// Form names, descriptions and field labels are plain text, so everything
// goes through the strict policy.
package policy

import (
	"github.com/microcosm-cc/bluemonday"
)

var StripTagsPolicy *bluemonday.Policy = bluemonday.StrictPolicy()
