// internal/store/sqlite/store_test.go
package sqlite

import (
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suseoaa/oaacore/internal/models"
)

// setupTestDB creates an in-memory SQLite database with the real
// migrations applied.
func setupTestDB(t *testing.T) (*SQLiteStore, func()) {
	s, err := NewSQLiteStore(":memory:", "../../../migrations")
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		err := s.Close()
		require.NoError(t, err, "Failed to close database")
	}

	return s, cleanup
}

func TestMain(m *testing.M) {
	log.Println("Starting SQLite store tests...")
	code := m.Run()
	log.Println("Finished SQLite store tests")
	os.Exit(code)
}

func testAccount() *models.Account {
	return &models.Account{
		StudentID: "23341010304",
		Password:  "secret",
		Name:      "张三",
		College:   "计算机科学与工程学院",
		Major:     "软件工程",
		JgID:      "06",
		ZyhID:     "0603",
		NjdmID:    "2023",
	}
}

func TestAccountOperations(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	account := testAccount()

	t.Run("upsert and get", func(t *testing.T) {
		require.NoError(t, s.UpsertAccount(account))

		got, err := s.GetAccount(account.StudentID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, account.Name, got.Name)
		assert.Equal(t, account.Major, got.Major)
	})

	t.Run("upsert updates in place", func(t *testing.T) {
		account.Major = "计算机科学与技术"
		require.NoError(t, s.UpsertAccount(account))

		got, err := s.GetAccount(account.StudentID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "计算机科学与技术", got.Major)

		accounts, err := s.ListAccounts()
		require.NoError(t, err)
		assert.Len(t, accounts, 1)
	})

	t.Run("missing account", func(t *testing.T) {
		got, err := s.GetAccount("00000000000")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("list order follows sort index", func(t *testing.T) {
		second := testAccount()
		second.StudentID = "23341010305"
		second.SortIndex = -1
		require.NoError(t, s.UpsertAccount(second))

		accounts, err := s.ListAccounts()
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, "23341010305", accounts[0].StudentID)
	})

	t.Run("update major ids keeps password", func(t *testing.T) {
		require.NoError(t, s.UpdateAccountMajor(account.StudentID, "209", "0504", "2022"))

		got, err := s.GetAccount(account.StudentID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "209", got.JgID)
		assert.Equal(t, "0504", got.ZyhID)
		assert.Equal(t, "2022", got.NjdmID)
		assert.Equal(t, account.Password, got.Password)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.DeleteAccount(account.StudentID))
		got, err := s.GetAccount(account.StudentID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestReplaceTermCourses(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	courses := []models.Course{
		{
			Name:    "高等数学",
			Teacher: "李老师",
			Credit:  "5",
			Meetings: []models.Meeting{
				{Weekday: 1, StartPeriod: 1, EndPeriod: 2, WeekMask: 0b1111, Location: "A4-201", Teacher: "李老师"},
				{Weekday: 3, StartPeriod: 3, EndPeriod: 4, WeekMask: 0b1111, Location: "A4-201", Teacher: "李老师"},
			},
		},
		{Name: "大学英语", Teacher: "王老师", Credit: "3"},
	}

	require.NoError(t, s.ReplaceTermCourses("233", "2024", "3", courses))

	got, err := s.ListTermCourses("233", "2024", "3")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "高等数学", got[0].Name)
	assert.Equal(t, models.CourseSourceRemote, got[0].Source)
	require.Len(t, got[0].Meetings, 2)
	assert.Equal(t, int64(0b1111), got[0].Meetings[0].WeekMask)

	t.Run("replace drops old remote rows", func(t *testing.T) {
		require.NoError(t, s.ReplaceTermCourses("233", "2024", "3", courses[:1]))
		got, err := s.ListTermCourses("233", "2024", "3")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("custom courses survive replace", func(t *testing.T) {
		custom := []models.Course{{Name: "自习", Source: models.CourseSourceCustom}}
		all := append(custom, courses[0])
		require.NoError(t, s.ReplaceTermCourses("233", "2024", "3", all))

		require.NoError(t, s.ReplaceTermCourses("233", "2024", "3", courses[:1]))
		got, err := s.ListTermCourses("233", "2024", "3")
		require.NoError(t, err)
		require.Len(t, got, 2)

		names := []string{got[0].Name, got[1].Name}
		assert.Contains(t, names, "自习")
	})

	t.Run("other terms untouched", func(t *testing.T) {
		require.NoError(t, s.ReplaceTermCourses("233", "2024", "12", courses))
		require.NoError(t, s.ReplaceTermCourses("233", "2024", "3", nil))

		got, err := s.ListTermCourses("233", "2024", "12")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestGradeOperations(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	grades := []models.Grade{
		{CourseID: "MATH101", CourseName: "高等数学", Score: "92", GradePoint: "4.0", Credit: "5"},
		{CourseID: "ENG101", CourseName: "大学英语", Score: "81", GradePoint: "3.0", Credit: "3"},
	}

	require.NoError(t, s.ReplaceTermGrades("233", "2024", "3", grades))

	got, err := s.ListGrades("233")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024", got[0].Year)
	assert.Equal(t, "3", got[0].Term)

	// Re-sync replaces only that term.
	require.NoError(t, s.ReplaceTermGrades("233", "2024", "12", grades[:1]))
	require.NoError(t, s.ReplaceTermGrades("233", "2024", "3", grades[:1]))

	got, err = s.ListGrades("233")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestExamOperations(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	exams := []models.Exam{
		{CourseName: "高等数学", Time: "2025-01-06 09:00", Location: "A4-101(宜宾校区)"},
	}
	require.NoError(t, s.ReplaceExams("233", exams))

	// User-entered rows survive a re-sync.
	custom := models.Exam{StudentID: "233", CourseName: "补考", IsCustom: 1}
	_, err := s.DB.NamedExec(`
		INSERT INTO exams (student_id, year, term, course_name, time, location, credit, exam_type, exam_name, is_custom)
		VALUES (:student_id, :year, :term, :course_name, :time, :location, :credit, :exam_type, :exam_name, :is_custom)
	`, custom)
	require.NoError(t, err)

	require.NoError(t, s.ReplaceExams("233", nil))

	got, err := s.ListExams("233")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "补考", got[0].CourseName)
}

func TestMessageOperations(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, s.ReplaceMessages("233", models.MessageKindCourse, []string{"《高等数学》课表已更新"}, 100))
	require.NoError(t, s.ReplaceMessages("233", models.MessageKindNotice, []string{"停课通知", "调课通知"}, 100))

	course, err := s.ListMessages("233", models.MessageKindCourse)
	require.NoError(t, err)
	require.Len(t, course, 1)
	assert.Equal(t, "《高等数学》课表已更新", course[0].Content)

	notices, err := s.ListMessages("233", models.MessageKindNotice)
	require.NoError(t, err)
	assert.Len(t, notices, 2)

	require.NoError(t, s.ReplaceMessages("233", models.MessageKindNotice, nil, 200))
	notices, err = s.ListMessages("233", models.MessageKindNotice)
	require.NoError(t, err)
	assert.Empty(t, notices)
}

func TestCheckinAccountOperations(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	account := &models.CheckinAccount{
		StudentID: "23341010304",
		LoginType: models.CheckinLoginQRCode,
		OpenID:    "o-123",
		Location:  "计算机学院",
	}
	require.NoError(t, s.UpsertCheckinAccount(account))

	got, err := s.GetCheckinAccount(account.StudentID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "o-123", got.OpenID)
	assert.Equal(t, "计算机学院", got.Location)

	account.LastCheckinStatus = "已签到"
	require.NoError(t, s.UpsertCheckinAccount(account))

	accounts, err := s.ListCheckinAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "已签到", accounts[0].LastCheckinStatus)

	require.NoError(t, s.DeleteCheckinAccount(account.StudentID))
	got, err = s.GetCheckinAccount(account.StudentID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPlanCourseOperations(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	plan := []models.PlanCourse{
		{CourseKey: "MATH101", IsDegree: 1},
		{CourseKey: "高等数学", IsDegree: 1},
		{CourseKey: "MIL101", IsDegree: 0},
	}
	require.NoError(t, s.ReplacePlanCourses("233", plan))

	got, err := s.ListPlanCourses("233")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	require.NoError(t, s.ReplacePlanCourses("233", plan[:1]))
	got, err = s.ListPlanCourses("233")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "233", got[0].StudentID)
}
