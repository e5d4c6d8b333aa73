package models

type Grade struct {
	ID           int64  `db:"id" json:"id"`
	StudentID    string `db:"student_id" json:"student_id"`
	Year         string `db:"year" json:"year"`
	Term         string `db:"term" json:"term"`
	CourseID     string `db:"course_id" json:"course_id"`
	CourseName   string `db:"course_name" json:"course_name"`
	Score        string `db:"score" json:"score"`
	GradePoint   string `db:"grade_point" json:"grade_point"`
	Credit       string `db:"credit" json:"credit"`
	CourseNature string `db:"course_nature" json:"course_nature"`
	CourseType   string `db:"course_type" json:"course_type"`
	ExamNature   string `db:"exam_nature" json:"exam_nature"`
	Teacher      string `db:"teacher" json:"teacher"`
	Detail       string `db:"detail" json:"detail"`
}

// PlanCourse marks a teaching-plan course as degree-relevant or not.
// CourseKey is either the course number or the course name, both are
// stored so grades can match on whichever they carry.
type PlanCourse struct {
	StudentID string `db:"student_id" json:"student_id"`
	CourseKey string `db:"course_key" json:"course_key"`
	IsDegree  int64  `db:"is_degree" json:"is_degree"`
}
