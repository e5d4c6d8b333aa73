package store

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/suseoaa/oaacore/internal/models"
)

// LocalStore is the persistence layer behind the sync daemon and the
// read API. Get methods return (nil, nil) when the row does not exist.
type LocalStore interface {
	Close() error

	UpsertAccount(a *models.Account) error
	GetAccount(studentID string) (*models.Account, error)
	ListAccounts() ([]models.Account, error)
	DeleteAccount(studentID string) error
	UpdateAccountMajor(studentID, jgID, zyhID, njdmID string) error

	ReplaceTermCourses(studentID, year, term string, courses []models.Course) error
	ListTermCourses(studentID, year, term string) ([]models.Course, error)

	ReplaceTermGrades(studentID, year, term string, grades []models.Grade) error
	ListGrades(studentID string) ([]models.Grade, error)

	ReplaceExams(studentID string, exams []models.Exam) error
	ListExams(studentID string) ([]models.Exam, error)

	ReplaceMessages(studentID, kind string, contents []string, fetchedAt int64) error
	ListMessages(studentID, kind string) ([]models.Message, error)

	UpsertCheckinAccount(a *models.CheckinAccount) error
	GetCheckinAccount(studentID string) (*models.CheckinAccount, error)
	ListCheckinAccounts() ([]models.CheckinAccount, error)
	DeleteCheckinAccount(studentID string) error

	ReplacePlanCourses(studentID string, courses []models.PlanCourse) error
	ListPlanCourses(studentID string) ([]models.PlanCourse, error)
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory, translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(fmt.Sprintf("%s/%s", dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

func (s *BaseStore) UpsertAccount(a *models.Account) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO accounts (student_id, password, name, college, major, jg_id, zyh_id, njdm_id, sort_index, created_at)
		VALUES (:student_id, :password, :name, :college, :major, :jg_id, :zyh_id, :njdm_id, :sort_index, :created_at)
		ON CONFLICT(student_id) DO UPDATE SET
		password = :password,
		name = :name,
		college = :college,
		major = :major,
		jg_id = :jg_id,
		zyh_id = :zyh_id,
		njdm_id = :njdm_id,
		sort_index = :sort_index
	`, a)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

func (s *BaseStore) GetAccount(studentID string) (*models.Account, error) {
	var a models.Account
	query := s.Converter(`
		SELECT student_id, password, name, college, major, jg_id, zyh_id, njdm_id, sort_index, created_at
		FROM accounts
		WHERE student_id = ?
	`)

	err := s.DB.Get(&a, query, studentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

func (s *BaseStore) ListAccounts() ([]models.Account, error) {
	var accounts []models.Account
	err := s.DB.Select(&accounts, `
		SELECT student_id, password, name, college, major, jg_id, zyh_id, njdm_id, sort_index, created_at
		FROM accounts
		ORDER BY sort_index, student_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (s *BaseStore) DeleteAccount(studentID string) error {
	query := s.Converter(`DELETE FROM accounts WHERE student_id = ?`)
	if _, err := s.DB.Exec(query, studentID); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

// UpdateAccountMajor fills in the college/major/entry-year ids once the
// portal reveals them, without touching the stored credentials.
func (s *BaseStore) UpdateAccountMajor(studentID, jgID, zyhID, njdmID string) error {
	query := s.Converter(`
		UPDATE accounts SET jg_id = ?, zyh_id = ?, njdm_id = ?
		WHERE student_id = ?
	`)
	if _, err := s.DB.Exec(query, jgID, zyhID, njdmID, studentID); err != nil {
		return fmt.Errorf("failed to update account major: %w", err)
	}
	return nil
}

// ReplaceTermCourses swaps out the synced schedule of one term. Custom
// courses the user added by hand survive the replace.
func (s *BaseStore) ReplaceTermCourses(studentID, year, term string, courses []models.Course) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	del := s.Converter(`
		DELETE FROM meetings WHERE course_id IN (
			SELECT id FROM courses
			WHERE student_id = ? AND year = ? AND term = ? AND source = 'remote'
		)
	`)
	if _, err := tx.Exec(del, studentID, year, term); err != nil {
		return fmt.Errorf("failed to clear meetings: %w", err)
	}

	del = s.Converter(`
		DELETE FROM courses
		WHERE student_id = ? AND year = ? AND term = ? AND source = 'remote'
	`)
	if _, err := tx.Exec(del, studentID, year, term); err != nil {
		return fmt.Errorf("failed to clear courses: %w", err)
	}

	insCourse := s.Converter(`
		INSERT INTO courses (student_id, year, term, name, teacher, credit, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	selID := s.Converter(`
		SELECT id FROM courses
		WHERE student_id = ? AND year = ? AND term = ? AND name = ? AND source = ?
		ORDER BY id DESC LIMIT 1
	`)
	insMeeting := s.Converter(`
		INSERT INTO meetings (course_id, weekday, start_period, end_period, week_mask, location, teacher)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	for _, c := range courses {
		source := c.Source
		if source == "" {
			source = models.CourseSourceRemote
		}
		if _, err := tx.Exec(insCourse, studentID, year, term, c.Name, c.Teacher, c.Credit, source); err != nil {
			return fmt.Errorf("failed to insert course %s: %w", c.Name, err)
		}
		var courseID int64
		if err := tx.Get(&courseID, selID, studentID, year, term, c.Name, source); err != nil {
			return fmt.Errorf("failed to read back course id for %s: %w", c.Name, err)
		}
		for _, m := range c.Meetings {
			if _, err := tx.Exec(insMeeting, courseID, m.Weekday, m.StartPeriod, m.EndPeriod, m.WeekMask, m.Location, m.Teacher); err != nil {
				return fmt.Errorf("failed to insert meeting for %s: %w", c.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit courses: %w", err)
	}
	return nil
}

func (s *BaseStore) ListTermCourses(studentID, year, term string) ([]models.Course, error) {
	var courses []models.Course
	query := s.Converter(`
		SELECT id, student_id, year, term, name, teacher, credit, source
		FROM courses
		WHERE student_id = ? AND year = ? AND term = ?
		ORDER BY id
	`)
	if err := s.DB.Select(&courses, query, studentID, year, term); err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	meetingQuery := s.Converter(`
		SELECT id, course_id, weekday, start_period, end_period, week_mask, location, teacher
		FROM meetings
		WHERE course_id = ?
		ORDER BY weekday, start_period
	`)
	for i := range courses {
		if err := s.DB.Select(&courses[i].Meetings, meetingQuery, courses[i].ID); err != nil {
			return nil, fmt.Errorf("failed to list meetings: %w", err)
		}
	}
	return courses, nil
}

func (s *BaseStore) ReplaceTermGrades(studentID, year, term string, grades []models.Grade) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	del := s.Converter(`DELETE FROM grades WHERE student_id = ? AND year = ? AND term = ?`)
	if _, err := tx.Exec(del, studentID, year, term); err != nil {
		return fmt.Errorf("failed to clear grades: %w", err)
	}

	ins := s.Converter(`
		INSERT INTO grades (student_id, year, term, course_id, course_name, score, grade_point,
			credit, course_nature, course_type, exam_nature, teacher, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for _, g := range grades {
		if _, err := tx.Exec(ins, studentID, year, term, g.CourseID, g.CourseName, g.Score,
			g.GradePoint, g.Credit, g.CourseNature, g.CourseType, g.ExamNature, g.Teacher, g.Detail); err != nil {
			return fmt.Errorf("failed to insert grade %s: %w", g.CourseName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit grades: %w", err)
	}
	return nil
}

func (s *BaseStore) ListGrades(studentID string) ([]models.Grade, error) {
	var grades []models.Grade
	query := s.Converter(`
		SELECT id, student_id, year, term, course_id, course_name, score, grade_point,
			credit, course_nature, course_type, exam_nature, teacher, detail
		FROM grades
		WHERE student_id = ?
		ORDER BY year, term, course_name
	`)
	if err := s.DB.Select(&grades, query, studentID); err != nil {
		return nil, fmt.Errorf("failed to list grades: %w", err)
	}
	return grades, nil
}

// ReplaceExams swaps the synced exam list, keeping user-entered rows.
func (s *BaseStore) ReplaceExams(studentID string, exams []models.Exam) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	del := s.Converter(`DELETE FROM exams WHERE student_id = ? AND is_custom = 0`)
	if _, err := tx.Exec(del, studentID); err != nil {
		return fmt.Errorf("failed to clear exams: %w", err)
	}

	ins := s.Converter(`
		INSERT INTO exams (student_id, year, term, course_name, time, location, credit, exam_type, exam_name, is_custom)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for _, e := range exams {
		if _, err := tx.Exec(ins, studentID, e.Year, e.Term, e.CourseName, e.Time, e.Location,
			e.Credit, e.ExamType, e.ExamName, e.IsCustom); err != nil {
			return fmt.Errorf("failed to insert exam %s: %w", e.CourseName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit exams: %w", err)
	}
	return nil
}

func (s *BaseStore) ListExams(studentID string) ([]models.Exam, error) {
	var exams []models.Exam
	query := s.Converter(`
		SELECT id, student_id, year, term, course_name, time, location, credit, exam_type, exam_name, is_custom
		FROM exams
		WHERE student_id = ?
		ORDER BY time, course_name
	`)
	if err := s.DB.Select(&exams, query, studentID); err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return exams, nil
}

func (s *BaseStore) ReplaceMessages(studentID, kind string, contents []string, fetchedAt int64) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	del := s.Converter(`DELETE FROM messages WHERE student_id = ? AND kind = ?`)
	if _, err := tx.Exec(del, studentID, kind); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	ins := s.Converter(`
		INSERT INTO messages (student_id, kind, content, fetched_at)
		VALUES (?, ?, ?, ?)
	`)
	for _, content := range contents {
		if _, err := tx.Exec(ins, studentID, kind, content, fetchedAt); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}

func (s *BaseStore) ListMessages(studentID, kind string) ([]models.Message, error) {
	var messages []models.Message
	query := s.Converter(`
		SELECT id, student_id, kind, content, fetched_at
		FROM messages
		WHERE student_id = ? AND kind = ?
		ORDER BY id
	`)
	if err := s.DB.Select(&messages, query, studentID, kind); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (s *BaseStore) UpsertCheckinAccount(a *models.CheckinAccount) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO checkin_accounts (student_id, password, name, remark, login_type, open_id,
			location, last_checkin_time, last_checkin_status, sort_index)
		VALUES (:student_id, :password, :name, :remark, :login_type, :open_id,
			:location, :last_checkin_time, :last_checkin_status, :sort_index)
		ON CONFLICT(student_id) DO UPDATE SET
		password = :password,
		name = :name,
		remark = :remark,
		login_type = :login_type,
		open_id = :open_id,
		location = :location,
		last_checkin_time = :last_checkin_time,
		last_checkin_status = :last_checkin_status,
		sort_index = :sort_index
	`, a)
	if err != nil {
		return fmt.Errorf("failed to upsert checkin account: %w", err)
	}
	return nil
}

func (s *BaseStore) GetCheckinAccount(studentID string) (*models.CheckinAccount, error) {
	var a models.CheckinAccount
	query := s.Converter(`
		SELECT student_id, password, name, remark, login_type, open_id,
			location, last_checkin_time, last_checkin_status, sort_index
		FROM checkin_accounts
		WHERE student_id = ?
	`)
	err := s.DB.Get(&a, query, studentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkin account: %w", err)
	}
	return &a, nil
}

func (s *BaseStore) ListCheckinAccounts() ([]models.CheckinAccount, error) {
	var accounts []models.CheckinAccount
	err := s.DB.Select(&accounts, `
		SELECT student_id, password, name, remark, login_type, open_id,
			location, last_checkin_time, last_checkin_status, sort_index
		FROM checkin_accounts
		ORDER BY sort_index, student_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkin accounts: %w", err)
	}
	return accounts, nil
}

func (s *BaseStore) DeleteCheckinAccount(studentID string) error {
	query := s.Converter(`DELETE FROM checkin_accounts WHERE student_id = ?`)
	if _, err := s.DB.Exec(query, studentID); err != nil {
		return fmt.Errorf("failed to delete checkin account: %w", err)
	}
	return nil
}

func (s *BaseStore) ReplacePlanCourses(studentID string, courses []models.PlanCourse) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	del := s.Converter(`DELETE FROM plan_courses WHERE student_id = ?`)
	if _, err := tx.Exec(del, studentID); err != nil {
		return fmt.Errorf("failed to clear plan courses: %w", err)
	}

	ins := s.Converter(`
		INSERT INTO plan_courses (student_id, course_key, is_degree)
		VALUES (?, ?, ?)
		ON CONFLICT(student_id, course_key) DO NOTHING
	`)
	for _, p := range courses {
		if _, err := tx.Exec(ins, studentID, p.CourseKey, p.IsDegree); err != nil {
			return fmt.Errorf("failed to insert plan course %s: %w", p.CourseKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plan courses: %w", err)
	}
	return nil
}

func (s *BaseStore) ListPlanCourses(studentID string) ([]models.PlanCourse, error) {
	var courses []models.PlanCourse
	query := s.Converter(`
		SELECT student_id, course_key, is_degree
		FROM plan_courses
		WHERE student_id = ?
		ORDER BY course_key
	`)
	if err := s.DB.Select(&courses, query, studentID); err != nil {
		return nil, fmt.Errorf("failed to list plan courses: %w", err)
	}
	return courses, nil
}
