package models

const (
	CourseSourceRemote = "remote"
	CourseSourceCustom = "custom"
)

type Course struct {
	ID        int64  `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"student_id"`
	Year      string `db:"year" json:"year"`
	Term      string `db:"term" json:"term"`
	Name      string `db:"name" json:"name"`
	Teacher   string `db:"teacher" json:"teacher"`
	Credit    string `db:"credit" json:"credit"`
	Source    string `db:"source" json:"source"`

	Meetings []Meeting `db:"-" json:"meetings,omitempty"`
}

// Meeting is a single weekly slot of a course. WeekMask holds weeks 1..63
// in bits 0..62, bit k-1 set means the course meets on week k.
type Meeting struct {
	ID          int64  `db:"id" json:"id"`
	CourseID    int64  `db:"course_id" json:"course_id"`
	Weekday     int64  `db:"weekday" json:"weekday"`
	StartPeriod int64  `db:"start_period" json:"start_period"`
	EndPeriod   int64  `db:"end_period" json:"end_period"`
	WeekMask    int64  `db:"week_mask" json:"week_mask"`
	Location    string `db:"location" json:"location"`
	Teacher     string `db:"teacher" json:"teacher"`
}
