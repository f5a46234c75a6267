package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/bustrack/internal/apperr"
)

func TestExplicitRangeIncludesWholeEndDay(t *testing.T) {
	r, err := ExplicitRange("2024-03-01", "2024-03-03", time.UTC)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), r.From)
	assert.True(t, r.Contains(time.Date(2024, 3, 3, 23, 59, 59, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)))
}

func TestResolveRange(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		start     string
		end       string
		days      int
		wantKind  apperr.Kind
		wantFrom  time.Time
		wantError bool
	}{
		{name: "trailing days", days: 7, wantFrom: now.AddDate(0, 0, -7)},
		{name: "explicit", start: "2024-03-01", end: "2024-03-02", days: 7, wantFrom: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "lone start", start: "2024-03-01", days: 7, wantError: true, wantKind: apperr.KindValidation},
		{name: "lone end", end: "2024-03-01", days: 7, wantError: true, wantKind: apperr.KindValidation},
		{name: "unparsable", start: "yesterday", end: "2024-03-01", days: 7, wantError: true, wantKind: apperr.KindValidation},
		{name: "reversed", start: "2024-03-05", end: "2024-03-01", days: 7, wantError: true, wantKind: apperr.KindValidation},
		{name: "zero days", days: 0, wantError: true, wantKind: apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ResolveRange(tt.start, tt.end, tt.days, now, time.UTC)
			if tt.wantError {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, r.From)
		})
	}
}

func TestParseDateAcceptsRFC3339(t *testing.T) {
	got, err := ParseDate("2024-03-01T10:00:00Z", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Hour())
}
