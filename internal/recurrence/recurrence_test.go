package recurrence

import (
	"testing"
	"time"

	"questlog/pkg/civil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		rule    string
		want    Rule
		wantErr bool
	}{
		{
			name: "daily",
			rule: "FREQ=DAILY",
			want: Rule{Freq: Daily},
		},
		{
			name: "weekly with days",
			rule: "FREQ=WEEKLY;BYDAY=MO,WE,FR",
			want: Rule{Freq: Weekly, ByDay: []time.Weekday{time.Monday, time.Wednesday, time.Friday}},
		},
		{
			name: "monthly",
			rule: "FREQ=MONTHLY;BYMONTHDAY=15",
			want: Rule{Freq: Monthly, ByMonthDay: 15},
		},
		{name: "empty", rule: "", wantErr: true},
		{name: "missing freq", rule: "BYDAY=MO", wantErr: true},
		{name: "unknown freq", rule: "FREQ=HOURLY", wantErr: true},
		{name: "weekly without byday", rule: "FREQ=WEEKLY", wantErr: true},
		{name: "monthly without bymonthday", rule: "FREQ=MONTHLY", wantErr: true},
		{name: "bad day abbrev", rule: "FREQ=WEEKLY;BYDAY=MO,XX", wantErr: true},
		{name: "bymonthday out of range", rule: "FREQ=MONTHLY;BYMONTHDAY=32", wantErr: true},
		{name: "byday on daily", rule: "FREQ=DAILY;BYDAY=MO", wantErr: true},
		{name: "unsupported key", rule: "FREQ=DAILY;COUNT=5", wantErr: true},
		{name: "garbage part", rule: "FREQ=DAILY;nonsense", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.rule)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate("FREQ=DAILY"))
	assert.True(t, Validate("FREQ=WEEKLY;BYDAY=SA,SU"))
	assert.False(t, Validate(""))
	assert.False(t, Validate("FREQ=WEEKLY;BYDAY=ZZ"))
}

// A weekly Mon/Wed/Fri rule must match exactly those weekdays across a
// four week window and no others.
func TestMatchesWeeklyWindow(t *testing.T) {
	rule, err := Parse("FREQ=WEEKLY;BYDAY=MO,WE,FR")
	require.NoError(t, err)

	// 2025-06-02 is a Monday.
	start := civil.Date("2025-06-02")
	matched := 0
	for i := 0; i < 28; i++ {
		d := start.AddDays(i)
		got := rule.Matches(d)
		switch d.Weekday() {
		case time.Monday, time.Wednesday, time.Friday:
			assert.True(t, got, "expected match on %s (%s)", d, d.Weekday())
			matched++
		default:
			assert.False(t, got, "unexpected match on %s (%s)", d, d.Weekday())
		}
	}
	assert.Equal(t, 12, matched)
}

func TestMatchesDaily(t *testing.T) {
	rule, err := Parse("FREQ=DAILY")
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		assert.True(t, rule.Matches(civil.Date("2025-06-02").AddDays(i)))
	}
}

func TestMatchesMonthly(t *testing.T) {
	rule, err := Parse("FREQ=MONTHLY;BYMONTHDAY=31")
	require.NoError(t, err)

	assert.True(t, rule.Matches("2025-01-31"))
	assert.True(t, rule.Matches("2025-03-31"))
	assert.False(t, rule.Matches("2025-01-30"))
	// February never has a 31st; the rule simply produces no occurrence.
	assert.False(t, rule.Matches("2025-02-28"))
}
