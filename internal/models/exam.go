package models

type Exam struct {
	ID         int64  `db:"id" json:"id"`
	StudentID  string `db:"student_id" json:"student_id"`
	Year       string `db:"year" json:"year"`
	Term       string `db:"term" json:"term"`
	CourseName string `db:"course_name" json:"course_name"`
	Time       string `db:"time" json:"time"`
	Location   string `db:"location" json:"location"`
	Credit     string `db:"credit" json:"credit"`
	ExamType   string `db:"exam_type" json:"exam_type"`
	ExamName   string `db:"exam_name" json:"exam_name"`
	IsCustom   int64  `db:"is_custom" json:"is_custom"`
}

const (
	MessageKindCourse = "course"
	MessageKindNotice = "notice"
)

type Message struct {
	ID        int64  `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"student_id"`
	Kind      string `db:"kind" json:"kind"`
	Content   string `db:"content" json:"content"`
	FetchedAt int64  `db:"fetched_at" json:"fetched_at"`
}
