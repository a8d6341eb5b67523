package domain

import (
	"context"
	"fmt"
	"net/http"

	"secchub-loadtest/internal/check"
	"secchub-loadtest/internal/runstate"
	"secchub-loadtest/internal/weighted"
)

const (
	trendAdminCourse   = "admin_course_duration_ms"
	trendAdminTeacher  = "admin_teacher_duration_ms"
	trendAdminSection  = "admin_section_duration_ms"
	trendAdminSemester = "admin_semester_duration_ms"
	trendAdminRegister = "admin_register_duration_ms"
)

type course struct {
	Name      string `json:"name"`
	Credits   int    `json:"credits"`
	SectionID int    `json:"sectionId"`
}

var mockCourses = []course{
	{Name: "Advanced Algorithms", Credits: 3, SectionID: 1},
	{Name: "Database Systems", Credits: 4, SectionID: 2},
	{Name: "Software Engineering", Credits: 3, SectionID: 3},
	{Name: "Computer Networks", Credits: 3, SectionID: 1},
	{Name: "Artificial Intelligence", Credits: 4, SectionID: 2},
	{Name: "Operating Systems", Credits: 4, SectionID: 1},
	{Name: "Web Development", Credits: 3, SectionID: 3},
	{Name: "Mobile Computing", Credits: 3, SectionID: 2},
}

var adminOps = weighted.MustTable(
	weighted.Option[operation]{Label: "course", Weight: 35, Value: adminCourse},
	weighted.Option[operation]{Label: "teacher", Weight: 25, Value: adminTeacher},
	weighted.Option[operation]{Label: "section", Weight: 20, Value: adminSection},
	weighted.Option[operation]{Label: "semester", Weight: 19, Value: adminSemester},
	weighted.Option[operation]{Label: "register", Weight: 1, Value: adminRegister},
)

func runAdmin(ctx context.Context, s *session) {
	s.dispatch(ctx, adminOps)
}

// adminCourse はコースの作成から削除までを実行する
func adminCourse(ctx context.Context, s *session) {
	c := choose(s, mockCourses)
	c.Name = c.Name + " " + s.uniqueID()

	resp, ok := s.send(ctx, trendAdminCourse, http.MethodPost, "/courses", c,
		check.Status("course created (201)", http.StatusCreated),
		check.Has("course has id", "id"),
		check.Has("course has name", "name"),
	)
	courseID, hasID := resp.ID()
	if ok && hasID {
		s.record(ctx, runstate.Courses, courseID)
	}
	s.pause(ctx, shortPause)

	s.get(ctx, trendAdminCourse, "/courses",
		check.Status("get all courses (200)", http.StatusOK),
		check.IsArray("courses list is array"),
	)
	s.pause(ctx, shortPause)

	if !ok || !hasID {
		return
	}
	path := fmt.Sprintf("/courses/%d", courseID)

	s.get(ctx, trendAdminCourse, path,
		check.Status("get course by id (200)", http.StatusOK),
		check.Equals("course id matches", "id", courseID),
	)
	s.pause(ctx, shortPause)

	s.send(ctx, trendAdminCourse, http.MethodPatch, path, map[string]any{"credits": 4},
		check.Status("course patched (200)", http.StatusOK),
		check.Equals("credits updated", "credits", 4),
	)
	s.pause(ctx, shortPause)

	s.get(ctx, trendAdminCourse, path,
		check.Status("get patched course (200)", http.StatusOK),
		check.Equals("patch persisted", "credits", 4),
	)
	s.pause(ctx, shortPause)

	s.send(ctx, trendAdminCourse, http.MethodDelete, path, nil,
		check.Status("course deleted (204)", http.StatusNoContent),
	)
}

// adminTeacher は既存教員の参照と最大時間の更新を行う
func adminTeacher(ctx context.Context, s *session) {
	s.get(ctx, trendAdminTeacher, "/teachers",
		check.Status("get all teachers (200)", http.StatusOK),
		check.IsArray("teachers list is array"),
	)
	s.pause(ctx, shortPause)

	teacherID := s.intn(1, 5)
	path := fmt.Sprintf("/teachers/%d", teacherID)
	resp, found := s.get(ctx, trendAdminTeacher, path,
		check.Status("get teacher by id (200 or 404)", http.StatusOK, http.StatusNotFound),
	)
	s.pause(ctx, 3*shortPause)

	if found && resp.Status == http.StatusOK {
		employmentType, _ := resp.Field("employmentTypeId")
		maxHours := s.intn(35, 54)
		update := map[string]any{
			"employmentTypeId": employmentType,
			"maxHours":         maxHours,
		}

		s.send(ctx, trendAdminTeacher, http.MethodPut, path, update,
			check.Status("teacher updated (200)", http.StatusOK),
			check.Equals("max hours updated", "maxHours", maxHours),
		)
		s.pause(ctx, 3*shortPause)

		s.get(ctx, trendAdminTeacher, path,
			check.Status("get updated teacher (200)", http.StatusOK),
			check.Equals("update persisted", "maxHours", maxHours),
		)
	}
	s.pause(ctx, shortPause)

	s.get(ctx, trendAdminTeacher, fmt.Sprintf("/teachers/employment-type/%d", s.intn(1, 2)),
		check.Status("get teachers by employment (200)", http.StatusOK),
		check.IsArray("filtered teachers is array"),
	)
}

func adminSection(ctx context.Context, s *session) {
	s.get(ctx, trendAdminSection, "/sections",
		check.Status("get all sections (200)", http.StatusOK),
		check.IsArray("sections list is array"),
	)
	s.pause(ctx, shortPause)

	s.get(ctx, trendAdminSection, fmt.Sprintf("/sections/%d", s.intn(1, 3)),
		check.Status("get section by id (200 or 404)", http.StatusOK, http.StatusNotFound),
	)
	s.pause(ctx, shortPause)

	s.get(ctx, trendAdminSection, "/sections/planning-status-stats",
		check.Status("get planning stats (200)", http.StatusOK),
		check.Has("stats have openCount", "openCount"),
		check.Has("stats have closedCount", "closedCount"),
	)
	s.pause(ctx, shortPause)

	s.get(ctx, trendAdminSection, "/sections/summary",
		check.Status("get sections summary (200)", http.StatusOK),
		check.IsArray("summary list is array"),
	)
}

func adminSemester(ctx context.Context, s *session) {
	s.get(ctx, trendAdminSemester, "/semesters/current",
		check.Status("get current semester (200)", http.StatusOK),
		check.Has("semester has id", "id"),
		check.Has("semester has year", "year"),
		check.Has("semester has period", "period"),
	)
	s.pause(ctx, shortPause)

	s.get(ctx, trendAdminSemester, "/semesters/all",
		check.Status("get all semesters (200)", http.StatusOK),
		check.IsArray("semesters list is array"),
	)
	s.pause(ctx, shortPause)

	s.get(ctx, trendAdminSemester, "/semesters?year=2025&period=10",
		check.Status("get semester by params (200 or 404)", http.StatusOK, http.StatusNotFound),
	)
}

type registerUser struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Name           string `json:"name"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	DocumentTypeID int    `json:"documentTypeId"`
	DocumentNumber string `json:"documentNumber"`
}

// adminRegister は学生と教員を新規登録する
func adminRegister(ctx context.Context, s *session) {
	uid := s.uniqueID()
	student := registerUser{
		Username:       "student_" + uid,
		Password:       "password123",
		Name:           "Test",
		LastName:       "Student",
		Email:          "student_" + uid + "@secchub.com",
		DocumentTypeID: 1,
		DocumentNumber: "DOC" + uid,
	}

	resp, ok := s.send(ctx, trendAdminRegister, http.MethodPost, "/admin/register/student", student,
		check.Status("student registered (201)", http.StatusCreated),
		check.BodyNotEmpty("student id returned"),
	)
	if ok {
		if id, parsed := resp.BodyInt(); parsed {
			s.record(ctx, runstate.Students, id)
		}
	}
	s.pause(ctx, 5*shortPause)

	uid = s.uniqueID()
	teacher := map[string]any{
		"user": registerUser{
			Username:       "teacher_" + uid,
			Password:       "password123",
			Name:           "Test",
			LastName:       "Teacher",
			Email:          "teacher_" + uid + "@secchub.com",
			DocumentTypeID: 1,
			DocumentNumber: "TDOC" + uid,
		},
		"employmentTypeId": s.intn(1, 2),
		"maxHours":         40,
	}

	resp, ok = s.send(ctx, trendAdminRegister, http.MethodPost, "/admin/register/teacher", teacher,
		check.Status("teacher registered (201)", http.StatusCreated),
		check.Has("teacher has id", "id"),
	)
	if id, hasID := resp.ID(); ok && hasID {
		s.record(ctx, runstate.Teachers, id)
	}
}
