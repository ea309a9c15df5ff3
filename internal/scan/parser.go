package scan

import (
	"regexp"

	"github.com/kuichiro/combogen/internal/model"
)

// Two ordered pattern families: email-shaped identifiers first, generic
// username-shaped identifiers second. The first match wins. Identifier
// and secret are separated by '|' or ':' in source lines.
var (
	emailPattern    = regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})[|:]([^\s]+)`)
	usernamePattern = regexp.MustCompile(`([a-zA-Z0-9_]{6,})[|:]([^\s]+)`)
)

// ParseAccount extracts an identifier:secret pair from a line,
// normalized with a ':' separator regardless of the source separator.
func ParseAccount(line string) (model.AccountRecord, bool) {
	m := emailPattern.FindStringSubmatch(line)
	if m == nil {
		m = usernamePattern.FindStringSubmatch(line)
	}
	if m == nil {
		return "", false
	}
	return model.AccountRecord(m[1] + ":" + m[2]), true
}
