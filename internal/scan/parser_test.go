package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuichiro/combogen/internal/model"
)

func TestParseAccount(t *testing.T) {
	tests := []struct {
		name string
		line string
		want model.AccountRecord
		ok   bool
	}{
		{
			name: "email with colon separator",
			line: "https://sso.garena.com/login someone@mail.com:hunter2",
			want: "someone@mail.com:hunter2",
			ok:   true,
		},
		{
			name: "email with pipe separator normalizes to colon",
			line: "someone@mail.com|hunter2",
			want: "someone@mail.com:hunter2",
			ok:   true,
		},
		{
			name: "username fallback",
			line: "garena.com playerone:s3cret",
			want: "playerone:s3cret",
			ok:   true,
		},
		{
			name: "email preferred over username shape",
			line: "prefix someone@mail.com:pass123",
			want: "someone@mail.com:pass123",
			ok:   true,
		},
		{
			name: "short username rejected",
			line: "abc:pw",
			ok:   false,
		},
		{
			name: "no separator",
			line: "just a log line mentioning garena.com",
			ok:   false,
		},
		{
			name: "empty line",
			line: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAccount(tt.line)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
