package portal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSemesterStartPattern(t *testing.T) {
	body := `<div class="col-md-12">2024-2025学年第1学期 2024-09-02 至 2025-01-12</div>`
	m := semesterStartPattern.FindStringSubmatch(body)
	if assert.NotNil(t, m) {
		assert.Equal(t, "2024-09-02", m[1])
	}

	assert.Nil(t, semesterStartPattern.FindStringSubmatch("<div>校历暂未发布</div>"))
}

func TestCurrentTerm(t *testing.T) {
	testCases := []struct {
		date time.Time
		year string
		term string
	}{
		{time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC), "2024", "3"},
		{time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), "2024", "3"},
		{time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), "2024", "3"},
		{time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "2024", "12"},
		{time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), "2024", "12"},
		{time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC), "2025", "3"},
	}

	for _, tc := range testCases {
		year, term := CurrentTerm(tc.date)
		assert.Equal(t, tc.year, year, "date %s", tc.date)
		assert.Equal(t, tc.term, term, "date %s", tc.date)
	}
}
