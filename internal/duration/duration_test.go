package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuichiro/combogen/internal/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    time.Duration
		wantErr bool
	}{
		{name: "days and hours", spec: "1days 2hours", want: 26 * time.Hour},
		{name: "reordered parses identically", spec: "2hours 1days", want: 26 * time.Hour},
		{name: "single component", spec: "45minutes", want: 45 * time.Minute},
		{name: "singular units", spec: "1day 1hour 1minute 1second", want: 24*time.Hour + time.Hour + time.Minute + time.Second},
		{name: "case insensitive", spec: "3HOURS", want: 3 * time.Hour},
		{name: "all four components", spec: "1days 2hours 3minutes 4seconds", want: 26*time.Hour + 3*time.Minute + 4*time.Second},
		{name: "zero alone rejected", spec: "0minutes", wantErr: true},
		{name: "all zero rejected", spec: "0days 0hours", wantErr: true},
		{name: "empty rejected", spec: "", wantErr: true},
		{name: "blank rejected", spec: "   ", wantErr: true},
		{name: "garbage rejected", spec: "tomorrow", wantErr: true},
		{name: "unit repeated rejected", spec: "1hours 2hours", wantErr: true},
		{name: "singular and plural of same unit rejected", spec: "1hour 2hours", wantErr: true},
		{name: "missing number rejected", spec: "days", wantErr: true},
		{name: "trailing junk rejected", spec: "1hours later", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.spec)
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrInvalidDuration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBreakdown(t *testing.T) {
	r := Breakdown(26*time.Hour + 3*time.Minute + 4*time.Second)
	assert.Equal(t, model.Remaining{Days: 1, Hours: 2, Minutes: 3, Seconds: 4}, r)

	assert.Equal(t, model.Remaining{}, Breakdown(-time.Hour))
	assert.Equal(t, model.Remaining{}, Breakdown(0))
}
