package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCronToRRule(t *testing.T) {
	cases := map[string]string{
		// Supported shapes.
		"0 8 * * *":     "FREQ=DAILY",
		"30 17 * * *":   "FREQ=DAILY",
		"0 8 * * 1":     "FREQ=WEEKLY;BYDAY=MO",
		"0 8 * * 1,3,5": "FREQ=WEEKLY;BYDAY=MO,WE,FR",
		"0 9 * * 1-5":   "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR",
		"0 8 * * 0":     "FREQ=WEEKLY;BYDAY=SU",

		// Sub-hourly / sub-daily patterns are explicitly unsupported.
		"*/5 * * * *":  "",
		"0,30 9 * * *": "",
		"0 */2 * * *":  "",
		"* * * * *":    "",

		// Restricted day-of-month / month fields.
		"0 8 1 * *": "",
		"0 8 * 6 *": "",

		// Weekday ranges other than 1-5, and garbage.
		"0 8 * * 2-4":   "",
		"not a cron":    "",
		"":              "",
		"0 8 * * 1,9":   "",
		"0 8 * * 7":     "",
		"0 8 * * mon":   "",
		"0 8 * * */2":   "",
		"60 8 * * *":    "",
		"0 8 * * 1 3 5": "",
	}

	for expr, want := range cases {
		assert.Equal(t, want, CronToRRule(expr), "expr %q", expr)
	}
}
