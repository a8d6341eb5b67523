package domain

import (
	"context"
	"fmt"
	"net/http"

	"secchub-loadtest/internal/auth"
	"secchub-loadtest/internal/check"
	"secchub-loadtest/internal/logger"
	"secchub-loadtest/internal/weighted"
)

const (
	trendAcademicRequest    = "integration_academic_request_duration_ms"
	trendStudentApplication = "integration_student_application_duration_ms"
	trendTeacherClass       = "integration_teacher_class_duration_ms"
)

type requestSchedule struct {
	Day        string `json:"day"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	ModalityID int    `json:"modalityId"`
}

type academicRequest struct {
	CourseID   int               `json:"courseId"`
	SemesterID int               `json:"semesterId"`
	Sections   []int             `json:"sections"`
	Capacity   int               `json:"capacity"`
	Schedules  []requestSchedule `json:"schedules,omitempty"`
}

var mockAcademicRequests = []academicRequest{
	{CourseID: 1, SemesterID: 2, Sections: []int{1, 2, 3}, Capacity: 40},
	{CourseID: 2, SemesterID: 2, Sections: []int{1, 2}, Capacity: 35},
	{CourseID: 3, SemesterID: 2, Sections: []int{1}, Capacity: 50},
	{CourseID: 4, SemesterID: 2, Sections: []int{1, 2}, Capacity: 35},
	{CourseID: 5, SemesterID: 2, Sections: []int{1}, Capacity: 30},
}

type studentApplication struct {
	ClassID     int    `json:"classId"`
	Observation string `json:"observation"`
}

var mockStudentApplications = []studentApplication{
	{ClassID: 7, Observation: "Interested in Database Systems"},
	{ClassID: 9, Observation: "Software Engineering focus"},
	{ClassID: 11, Observation: "Networking specialization"},
	{ClassID: 12, Observation: "ML enthusiast"},
	{ClassID: 15, Observation: "OS fundamentals"},
}

var integrationOps = weighted.MustTable(
	weighted.Option[operation]{Label: "academicRequest", Weight: 34, Value: integrationAcademicRequest},
	weighted.Option[operation]{Label: "studentApplication", Weight: 33, Value: integrationStudentApplication},
	weighted.Option[operation]{Label: "teacherClass", Weight: 33, Value: integrationTeacherClass},
)

func runIntegration(ctx context.Context, s *session) {
	s.dispatch(ctx, integrationOps)
}

// roleToken は副ロールでログインする。失敗時は空文字を返す
func (s *session) roleToken(ctx context.Context, role auth.Role) string {
	token, err := s.env.Auth.LoginAs(ctx, role)
	if err != nil {
		logger.Debug(s.domain.String(), "Skipping %s-only steps: %v", role, err)
		return ""
	}
	return token
}

// integrationAcademicRequest はプログラムロールで作成し、管理者トークンで参照と更新を行う
func integrationAcademicRequest(ctx context.Context, s *session) {
	var requestID int64
	created := false

	if programToken := s.roleToken(ctx, auth.RoleProgram); programToken != "" {
		req := choose(s, mockAcademicRequests)
		req.Schedules = []requestSchedule{
			{Day: "Lunes", StartTime: "08:00:00", EndTime: "10:00:00", ModalityID: 1},
			{Day: "Miercoles", StartTime: "08:00:00", EndTime: "10:00:00", ModalityID: 1},
		}
		payload := map[string]any{"requests": []academicRequest{req}}

		resp, ok := s.sendAs(ctx, programToken, trendAcademicRequest, http.MethodPost, "/academic-requests", payload,
			check.Status("create request status is 201", http.StatusCreated),
			check.IsArray("create request returns array"),
		)
		if ok {
			requestID, created = resp.Int("[0].id")
		}
		s.pause(ctx, stepPause)
	}

	s.get(ctx, trendAcademicRequest, "/academic-requests",
		check.Status("getAll requests status is 200", http.StatusOK),
		check.IsArray("getAll requests returns array"),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendAcademicRequest, "/academic-requests/current-semester",
		check.Status("getCurrentSemester status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendAcademicRequest, "/academic-requests/by-semester?semesterId=2",
		check.Status("getBySemester status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	if !created {
		return
	}
	path := fmt.Sprintf("/academic-requests/%d", requestID)

	s.get(ctx, trendAcademicRequest, path,
		check.Status("getById request status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	update := map[string]any{"capacity": 45, "observation": "Updated capacity - Load Test"}
	s.send(ctx, trendAcademicRequest, http.MethodPut, path, update,
		check.Status("update request status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendAcademicRequest, path+"/schedules",
		check.Status("getSchedules status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	s.send(ctx, trendAcademicRequest, http.MethodDelete, path, nil,
		check.Status("delete request status is 204", http.StatusNoContent),
	)
	s.pause(ctx, stepPause)
}

// integrationStudentApplication は学生ロールで申請し、管理者が承認または却下する
// 重複申請の400は成功として扱うが、IDが得られないため以降は省略される
func integrationStudentApplication(ctx context.Context, s *session) {
	var applicationID int64
	created := false

	if studentToken := s.roleToken(ctx, auth.RoleStudent); studentToken != "" {
		app := choose(s, mockStudentApplications)
		resp, ok := s.sendAs(ctx, studentToken, trendStudentApplication, http.MethodPost, "/student-applications", app,
			check.Status("create application status is 200, 201 or 400", http.StatusOK, http.StatusCreated, http.StatusBadRequest),
		)
		if ok && resp.Status == http.StatusCreated {
			applicationID, created = resp.ID()
		}
		s.pause(ctx, stepPause)
	}

	s.get(ctx, trendStudentApplication, "/student-applications",
		check.Status("getAll applications status is 200", http.StatusOK),
		check.IsArray("getAll applications returns array"),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendStudentApplication, "/student-applications/current-semester",
		check.Status("getCurrentSemester applications status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendStudentApplication, fmt.Sprintf("/student-applications/status/%d", s.intn(1, 3)),
		check.Status("getByStatus applications status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendStudentApplication, fmt.Sprintf("/student-applications/section/%d", s.intn(1, 3)),
		check.Status("getBySection applications status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	if !created {
		return
	}
	path := fmt.Sprintf("/student-applications/%d", applicationID)

	s.get(ctx, trendStudentApplication, path,
		check.Status("getById application status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	if s.chance() {
		s.send(ctx, trendStudentApplication, http.MethodPut, path+"/approve", nil,
			check.Status("approve application status is 200", http.StatusOK),
		)
	} else {
		s.send(ctx, trendStudentApplication, http.MethodPut, path+"/reject", nil,
			check.Status("reject application status is 200", http.StatusOK),
		)
	}
	s.pause(ctx, stepPause)
}

// integrationTeacherClass は管理者が担当を割り当て、教員ロールが承諾または辞退する
func integrationTeacherClass(ctx context.Context, s *session) {
	teacherToken := s.roleToken(ctx, auth.RoleTeacher)
	teacherID := s.intn(1, 8)
	classID := s.intn(7, 29)

	payload := map[string]any{
		"teacherId": teacherID,
		"classId":   classID,
		"startDate": "2025-01-15",
		"endDate":   "2025-05-30",
	}
	resp, ok := s.send(ctx, trendTeacherClass, http.MethodPost, "/teachers/classes", payload,
		check.Status("create teacher class status is 200", http.StatusOK),
		check.Has("create teacher class returns id", "id"),
	)
	assignmentID, created := resp.ID()
	created = ok && created
	s.pause(ctx, stepPause)

	s.get(ctx, trendTeacherClass, "/teachers/classes/current-semester",
		check.Status("getCurrentSemester teacher classes status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendTeacherClass, fmt.Sprintf("/teachers/%d/classes", teacherID),
		check.Status("getAllByTeacher status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendTeacherClass, "/teachers/classes/pending-decision",
		check.Status("getPending classes status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendTeacherClass, fmt.Sprintf("/teachers/%d/classes/status/%d", teacherID, s.intn(1, 3)),
		check.Status("getByStatus teacher classes status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendTeacherClass, fmt.Sprintf("/teachers/classes/class/%d", classID),
		check.Status("getByClassId status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)

	if !created || teacherToken == "" {
		return
	}

	decision, observation := "reject", "Rejected - Load Test"
	if s.chance() {
		decision, observation = "accept", "Accepted - Load Test"
	}
	s.sendAs(ctx, teacherToken, trendTeacherClass, http.MethodPatch,
		fmt.Sprintf("/teachers/classes/%d/%s", assignmentID, decision),
		map[string]string{"observation": observation},
		check.StatusNot(decision+" teacher class status is not 500", http.StatusInternalServerError),
	)
	s.pause(ctx, stepPause)

	s.send(ctx, trendTeacherClass, http.MethodDelete, fmt.Sprintf("/teachers/classes/teacher/%d/class/%d", teacherID, classID), nil,
		check.Status("delete teacher class status is 204", http.StatusNoContent),
	)
	s.pause(ctx, stepPause)
}
