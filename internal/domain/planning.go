package domain

import (
	"context"
	"fmt"
	"net/http"

	"secchub-loadtest/internal/check"
	"secchub-loadtest/internal/client"
	"secchub-loadtest/internal/runstate"
	"secchub-loadtest/internal/weighted"
)

const (
	trendClassroom         = "planning_classroom_duration_ms"
	trendPlanning          = "planning_planning_duration_ms"
	trendTeachingAssistant = "planning_teaching_assistant_duration_ms"
)

type classroom struct {
	ClassroomTypeID int    `json:"classroomTypeId"`
	Campus          string `json:"campus"`
	Location        string `json:"location"`
	Room            string `json:"room"`
	Capacity        int    `json:"capacity"`
}

var mockClassrooms = []classroom{
	{ClassroomTypeID: 1, Campus: "Main Campus", Location: "Building A", Room: "A101", Capacity: 30},
	{ClassroomTypeID: 2, Campus: "Main Campus", Location: "Building B", Room: "B202", Capacity: 25},
	{ClassroomTypeID: 3, Campus: "Main Campus", Location: "Building C", Room: "C303", Capacity: 100},
	{ClassroomTypeID: 1, Campus: "North Campus", Location: "Building D", Room: "D404", Capacity: 35},
	{ClassroomTypeID: 2, Campus: "North Campus", Location: "Building E", Room: "E505", Capacity: 20},
}

type classSchedule struct {
	ClassroomID int    `json:"classroomId"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	DayOfWeek   string `json:"dayOfWeek"`
}

var mockSchedules = []classSchedule{
	{StartTime: "08:00:00", EndTime: "10:00:00", DayOfWeek: "Lunes"},
	{StartTime: "10:00:00", EndTime: "12:00:00", DayOfWeek: "Martes"},
	{StartTime: "14:00:00", EndTime: "16:00:00", DayOfWeek: "Miércoles"},
	{StartTime: "08:00:00", EndTime: "10:00:00", DayOfWeek: "Jueves"},
	{StartTime: "16:00:00", EndTime: "18:00:00", DayOfWeek: "Viernes"},
}

type assistantSchedule struct {
	Day       string `json:"day"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type teachingAssistant struct {
	ClassID              int                 `json:"classId"`
	StudentApplicationID int                 `json:"studentApplicationId"`
	WeeklyHours          int                 `json:"weeklyHours"`
	Weeks                int                 `json:"weeks"`
	TotalHours           *int                `json:"totalHours"` // バックエンドで計算される
	Schedules            []assistantSchedule `json:"schedules"`
}

// 割り当て可能な学生申請ID
var availableStudentApplicationIDs = []int{7, 8, 11, 12, 14, 16, 17, 18, 19}

var planningOps = weighted.MustTable(
	weighted.Option[operation]{Label: "planning", Weight: 80, Value: planningClass},
	weighted.Option[operation]{Label: "classroom", Weight: 10, Value: planningClassroom},
	weighted.Option[operation]{Label: "teachingAssistant", Weight: 10, Value: planningTeachingAssistant},
)

func runPlanning(ctx context.Context, s *session) {
	s.dispatch(ctx, planningOps)
}

func planningClassroom(ctx context.Context, s *session) {
	room := choose(s, mockClassrooms)
	room.Room = room.Room + "-" + s.uniqueID()

	resp, ok := s.send(ctx, trendClassroom, http.MethodPost, "/classrooms", room,
		check.Status("classroom created (201)", http.StatusCreated),
		check.Has("classroom has id", "id"),
	)
	classroomID, hasID := resp.ID()
	created := ok && hasID
	s.pause(ctx, stepPause)

	s.get(ctx, trendClassroom, "/classrooms",
		check.Status("get all classrooms (200)", http.StatusOK),
		check.IsArray("classrooms list is array"),
	)
	s.pause(ctx, stepPause)

	if !created {
		return
	}
	path := fmt.Sprintf("/classrooms/%d", classroomID)

	s.get(ctx, trendClassroom, path,
		check.Status("get classroom by id (200)", http.StatusOK),
		check.Equals("classroom has correct id", "id", classroomID),
	)
	s.pause(ctx, stepPause)

	update := classroom{
		ClassroomTypeID: 1,
		Campus:          "Updated Campus",
		Location:        "Updated Building",
		Room:            "Updated-" + s.uniqueID(),
		Capacity:        45,
	}
	s.send(ctx, trendClassroom, http.MethodPut, path, update,
		check.Status("classroom updated (200)", http.StatusOK),
		check.Equals("classroom room updated", "room", update.Room),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendClassroom, fmt.Sprintf("/classrooms/type/%d", s.intn(1, 3)),
		check.Status("get classrooms by type (200)", http.StatusOK),
		check.IsArray("filtered classrooms is array"),
	)
	s.pause(ctx, stepPause)

	s.send(ctx, trendClassroom, http.MethodDelete, path, nil,
		check.Status("classroom deleted (204)", http.StatusNoContent),
	)
	s.pause(ctx, stepPause)
}

// planningClass は授業と授業スケジュールのCRUDを行う
// 作成した授業はsectionsとして記録する
func planningClass(ctx context.Context, s *session) {
	class := map[string]any{
		"courseId":   s.intn(1, 20),
		"semesterId": 2,
		"section":    s.intn(1, 3),
		"capacity":   s.intn(30, 49),
		"teacherId":  s.intn(1, 8),
	}
	resp, ok := s.send(ctx, trendPlanning, http.MethodPost, "/planning/classes", class,
		check.Status("class created (201)", http.StatusCreated),
		check.Has("class has id", "id"),
	)
	classID, hasID := resp.ID()
	created := ok && hasID
	if created {
		s.record(ctx, runstate.Sections, classID)
	}
	s.pause(ctx, stepPause)

	s.get(ctx, trendPlanning, "/planning/classes/current-semester",
		check.Status("get current semester classes (200)", http.StatusOK),
		check.IsArray("classes list is array"),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendPlanning, "/planning/classes",
		check.Status("get all classes (200)", http.StatusOK),
		check.IsArray("all classes is array"),
	)
	s.pause(ctx, stepPause)

	if !created {
		return
	}
	path := fmt.Sprintf("/planning/classes/%d", classID)

	s.get(ctx, trendPlanning, path,
		check.Status("get class by id (200)", http.StatusOK),
		check.Equals("class has correct id", "id", classID),
	)
	s.pause(ctx, stepPause)

	capacity := s.intn(40, 59)
	update := map[string]any{
		"courseId":   s.intn(1, 20),
		"semesterId": 2,
		"section":    s.intn(1, 3),
		"capacity":   capacity,
		"teacherId":  s.intn(1, 8),
	}
	s.send(ctx, trendPlanning, http.MethodPut, path, update,
		check.Status("class updated (200)", http.StatusOK),
		check.Equals("class capacity updated", "capacity", capacity),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendPlanning, fmt.Sprintf("/planning/classes/course/%d", s.intn(1, 20)),
		check.Status("get classes by course (200)", http.StatusOK),
		check.IsArray("course classes is array"),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendPlanning, fmt.Sprintf("/planning/classes/section/%d", s.intn(1, 3)),
		check.Status("get classes by section (200)", http.StatusOK),
		check.IsArray("section classes is array"),
	)
	s.pause(ctx, stepPause)

	schedule := choose(s, mockSchedules)
	schedule.ClassroomID = s.intn(1, 5)
	resp, ok = s.send(ctx, trendPlanning, http.MethodPost, path+"/schedules", schedule,
		check.Status("schedule added (201)", http.StatusCreated),
		check.Has("schedule has id", "id"),
	)
	scheduleID, hasSchedule := resp.ID()
	hasSchedule = ok && hasSchedule
	s.pause(ctx, stepPause)

	s.get(ctx, trendPlanning, path+"/schedules",
		check.Status("get class schedules (200)", http.StatusOK),
		check.IsArray("schedules is array"),
	)
	s.pause(ctx, stepPause)

	if hasSchedule {
		schedulePath := fmt.Sprintf("/planning/schedules/%d", scheduleID)
		moved := classSchedule{
			ClassroomID: s.intn(1, 5),
			StartTime:   "10:00:00",
			EndTime:     "12:00:00",
			DayOfWeek:   "Miércoles",
		}
		s.send(ctx, trendPlanning, http.MethodPut, schedulePath, moved,
			check.Status("schedule updated (200)", http.StatusOK),
			check.Equals("schedule time updated", "startTime", moved.StartTime),
		)
		s.pause(ctx, stepPause)

		s.get(ctx, trendPlanning, schedulePath,
			check.Status("get schedule by id (200)", http.StatusOK),
			check.Equals("schedule has correct id", "id", scheduleID),
		)
		s.pause(ctx, stepPause)

		s.send(ctx, trendPlanning, http.MethodDelete, schedulePath, nil,
			check.Status("schedule deleted (204)", http.StatusNoContent),
		)
		s.pause(ctx, stepPause)
	}

	s.send(ctx, trendPlanning, http.MethodDelete, path, nil,
		check.Status("class deleted (204)", http.StatusNoContent),
	)
	s.pause(ctx, stepPause)
}

// planningTeachingAssistant はTAとTAスケジュールのCRUDを行う
// 重複割り当ての400は許容するが、以降の依存ステップは省略される
func planningTeachingAssistant(ctx context.Context, s *session) {
	ta := teachingAssistant{
		ClassID:              s.intn(7, 29),
		StudentApplicationID: choose(s, availableStudentApplicationIDs),
		WeeklyHours:          s.intn(10, 19),
		Weeks:                s.intn(10, 17),
		Schedules: []assistantSchedule{
			{Day: "Lunes", StartTime: "08:00:00", EndTime: "10:00:00"},
			{Day: "Miércoles", StartTime: "14:00:00", EndTime: "16:00:00"},
		},
	}
	resp, ok := s.send(ctx, trendTeachingAssistant, http.MethodPost, "/teaching-assistants", ta,
		check.Status("teaching assistant created or duplicate (201/400)", http.StatusCreated, http.StatusBadRequest),
		check.Custom("teaching assistant has id if created", func(r *client.Response) bool {
			return r.Status != http.StatusCreated || r.Has("id")
		}),
	)
	taID, hasID := resp.ID()
	created := ok && resp.Status == http.StatusCreated && hasID
	s.pause(ctx, stepPause)

	s.get(ctx, trendTeachingAssistant, "/teaching-assistants",
		check.Status("get all teaching assistants (200)", http.StatusOK),
		check.IsArray("teaching assistants list is array"),
	)
	s.pause(ctx, stepPause)

	if !created {
		return
	}
	path := fmt.Sprintf("/teaching-assistants/%d", taID)

	s.get(ctx, trendTeachingAssistant, path,
		check.Status("get teaching assistant by id (200)", http.StatusOK),
		check.Equals("teaching assistant has correct id", "id", taID),
	)
	s.pause(ctx, stepPause)

	update := ta
	update.WeeklyHours = s.intn(15, 24)
	update.Weeks = s.intn(12, 19)
	update.Schedules = []assistantSchedule{
		{Day: "Martes", StartTime: "10:00:00", EndTime: "12:00:00"},
		{Day: "Jueves", StartTime: "16:00:00", EndTime: "18:00:00"},
	}
	s.send(ctx, trendTeachingAssistant, http.MethodPut, path, update,
		check.Status("teaching assistant updated (200)", http.StatusOK),
		check.Equals("teaching assistant has correct id", "id", taID),
		check.Custom("teaching assistant hours updated", func(r *client.Response) bool {
			hours, ok := r.Int("weeklyHours")
			return ok && hours >= 15
		}),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendTeachingAssistant, fmt.Sprintf("/teaching-assistants/student-application/%d", s.intn(1, 19)),
		check.Status("get ta by application (200 or 404)", http.StatusOK, http.StatusNotFound),
	)
	s.pause(ctx, stepPause)

	resp, ok = s.send(ctx, trendTeachingAssistant, http.MethodPost, path+"/schedules",
		assistantSchedule{Day: "Lunes", StartTime: "08:00:00", EndTime: "10:00:00"},
		check.Status("ta schedule created (201)", http.StatusCreated),
		check.Has("ta schedule has id", "id"),
	)
	scheduleID, hasSchedule := resp.ID()
	s.pause(ctx, stepPause)

	if ok && hasSchedule {
		schedulePath := fmt.Sprintf("/teaching-assistants/schedules/%d", scheduleID)
		s.send(ctx, trendTeachingAssistant, http.MethodPut, schedulePath,
			assistantSchedule{Day: "Miércoles", StartTime: "14:00:00", EndTime: "16:00:00"},
			check.Status("ta schedule updated (200)", http.StatusOK),
		)
		s.pause(ctx, stepPause)

		s.send(ctx, trendTeachingAssistant, http.MethodDelete, schedulePath, nil,
			check.Status("ta schedule deleted (200)", http.StatusOK),
		)
		s.pause(ctx, stepPause)
	}

	s.get(ctx, trendTeachingAssistant, "/teaching-assistants/conflicts",
		check.Status("get ta conflicts (200)", http.StatusOK),
		check.IsArray("conflicts is array"),
	)
	s.pause(ctx, stepPause)

	s.send(ctx, trendTeachingAssistant, http.MethodDelete, path, nil,
		check.Status("teaching assistant deleted (200)", http.StatusOK),
	)
	s.pause(ctx, stepPause)
}
