package schedule

import (
	"strconv"
	"strings"

	"github.com/suseoaa/oaacore/internal/models"
	"github.com/suseoaa/oaacore/internal/portal"
)

// Normalize folds the portal's flat lesson rows into courses with
// meetings. Rows are deduplicated by course name: the first row wins
// the course header, every row contributes its meeting. Rows whose
// weekday or periods cannot be parsed are skipped.
func Normalize(studentID, year, term string, lessons []portal.Lesson) []models.Course {
	var courses []models.Course
	index := make(map[string]int)

	for _, lesson := range lessons {
		name := strings.TrimSpace(lesson.Name)
		if name == "" {
			continue
		}

		weekday, err := strconv.ParseInt(strings.TrimSpace(lesson.Weekday), 10, 64)
		if err != nil || weekday < 1 || weekday > 7 {
			continue
		}

		start, end, ok := parsePeriods(lesson.Periods)
		if !ok {
			continue
		}

		meeting := models.Meeting{
			Weekday:     weekday,
			StartPeriod: start,
			EndPeriod:   end,
			WeekMask:    int64(ParseWeeks(lesson.Weeks)),
			Location:    strings.TrimSpace(lesson.Room),
			Teacher:     strings.TrimSpace(lesson.Teacher),
		}

		if i, ok := index[name]; ok {
			courses[i].Meetings = append(courses[i].Meetings, meeting)
			continue
		}

		index[name] = len(courses)
		courses = append(courses, models.Course{
			StudentID: studentID,
			Year:      year,
			Term:      term,
			Name:      name,
			Teacher:   strings.TrimSpace(lesson.Teacher),
			Credit:    strings.TrimSpace(lesson.Credit),
			Source:    models.CourseSourceRemote,
			Meetings:  []models.Meeting{meeting},
		})
	}
	return courses
}

// parsePeriods reads "1-2" or a single "5" into a period range.
func parsePeriods(raw string) (start, end int64, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0, false
	}

	if i := strings.Index(raw, "-"); i >= 0 {
		s, err1 := strconv.ParseInt(raw[:i], 10, 64)
		e, err2 := strconv.ParseInt(raw[i+1:], 10, 64)
		if err1 != nil || err2 != nil || s < 1 || e < s {
			return 0, 0, false
		}
		return s, e, true
	}

	s, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || s < 1 {
		return 0, 0, false
	}
	return s, s, true
}
