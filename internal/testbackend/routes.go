package testbackend

import (
	"fmt"
	"maps"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

const defaultPassword = "password"

func (b *Backend) routes() {
	r := b.router

	// auth
	r.HandleFunc("/auth/login", b.login).Methods(http.MethodPost).Name("auth.login")
	r.HandleFunc("/auth/refresh", b.refresh).Methods(http.MethodPost).Name("auth.refresh")

	// admin
	b.crud("/courses", "courses", http.StatusCreated, http.StatusNoContent)
	r.HandleFunc("/teachers/employment-type/{id:[0-9]+}", b.list("teachers")).Methods(http.MethodGet).Name("teachers.byEmployment")
	b.crud("/teachers", "teachers", 0, http.StatusNoContent)
	r.HandleFunc("/sections/planning-status-stats", static(http.StatusOK, map[string]any{"openCount": 3, "closedCount": 1})).Methods(http.MethodGet).Name("sections.stats")
	r.HandleFunc("/sections/summary", static(http.StatusOK, []any{map[string]any{"sectionId": 1, "classes": 4}})).Methods(http.MethodGet).Name("sections.summary")
	r.HandleFunc("/sections/{id:[0-9]+}", b.echoID).Methods(http.MethodGet).Name("sections.get")
	r.HandleFunc("/sections", static(http.StatusOK, []any{map[string]any{"id": 1, "name": "Systems"}})).Methods(http.MethodGet).Name("sections.list")
	r.HandleFunc("/semesters/current", static(http.StatusOK, currentSemester)).Methods(http.MethodGet).Name("semesters.current")
	r.HandleFunc("/semesters/all", static(http.StatusOK, []any{currentSemester})).Methods(http.MethodGet).Name("semesters.all")
	r.HandleFunc("/semesters", static(http.StatusOK, currentSemester)).Methods(http.MethodGet).Name("semesters.byParams")
	r.HandleFunc("/admin/register/student", b.registerStudent).Methods(http.MethodPost).Name("register.student")
	r.HandleFunc("/admin/register/teacher", b.create("registeredTeachers", http.StatusCreated)).Methods(http.MethodPost).Name("register.teacher")

	// security
	r.HandleFunc("/user", b.currentUser).Methods(http.MethodGet).Name("user.current")
	r.HandleFunc("/user/all", b.allUsers).Methods(http.MethodGet).Name("user.all")
	r.HandleFunc("/user/email", b.userByEmail).Methods(http.MethodGet).Name("user.byEmail")
	r.HandleFunc("/user/id/{id:[0-9]+}", b.userByID).Methods(http.MethodGet).Name("user.byId")

	// parametric
	r.HandleFunc("/parametric/{kind}", static(http.StatusOK, []any{map[string]any{"id": 1, "name": "DEFAULT"}})).Methods(http.MethodGet).Name("parametric.list")
	r.HandleFunc("/parametric/{kind}/{id:[0-9]+}", static(http.StatusOK, "DEFAULT")).Methods(http.MethodGet).Name("parametric.get")

	// notification
	r.HandleFunc("/emails/templates/name/{name}", b.templateByName).Methods(http.MethodGet).Name("templates.byName")
	b.crud("/emails/templates", "templates", http.StatusCreated, http.StatusOK)

	// log
	r.HandleFunc("/audit-logs", b.auditLogs).Methods(http.MethodGet).Name("audit.all")
	r.HandleFunc("/audit-logs/date-range", b.auditLogs).Methods(http.MethodGet).Name("audit.dateRange")
	r.HandleFunc("/audit-logs/email/{email}/action/{action}", b.auditLogs).Methods(http.MethodGet).Name("audit.combined")
	r.HandleFunc("/audit-logs/email/{email}", b.auditLogs).Methods(http.MethodGet).Name("audit.byEmail")
	r.HandleFunc("/audit-logs/action/{action}", b.auditLogs).Methods(http.MethodGet).Name("audit.byAction")
	r.HandleFunc("/audit-logs/method/{method}", b.auditLogs).Methods(http.MethodGet).Name("audit.byMethod")

	// integration
	r.HandleFunc("/academic-requests", b.createAcademicRequests).Methods(http.MethodPost).Name("requests.create")
	r.HandleFunc("/academic-requests/current-semester", b.list("requests")).Methods(http.MethodGet).Name("requests.currentSemester")
	r.HandleFunc("/academic-requests/by-semester", b.list("requests")).Methods(http.MethodGet).Name("requests.bySemester")
	r.HandleFunc("/academic-requests/{id:[0-9]+}/schedules", static(http.StatusOK, []any{})).Methods(http.MethodGet).Name("requests.schedules")
	b.crud("/academic-requests", "requests", 0, http.StatusNoContent)

	r.HandleFunc("/student-applications/current-semester", b.list("applications")).Methods(http.MethodGet).Name("applications.currentSemester")
	r.HandleFunc("/student-applications/status/{id:[0-9]+}", b.list("applications")).Methods(http.MethodGet).Name("applications.byStatus")
	r.HandleFunc("/student-applications/section/{id:[0-9]+}", b.list("applications")).Methods(http.MethodGet).Name("applications.bySection")
	r.HandleFunc("/student-applications/{id:[0-9]+}/approve", b.echoID).Methods(http.MethodPut).Name("applications.approve")
	r.HandleFunc("/student-applications/{id:[0-9]+}/reject", b.echoID).Methods(http.MethodPut).Name("applications.reject")
	b.crud("/student-applications", "applications", http.StatusCreated, http.StatusNoContent)

	r.HandleFunc("/teachers/classes", b.create("assignments", http.StatusOK)).Methods(http.MethodPost).Name("assignments.create")
	r.HandleFunc("/teachers/classes/current-semester", b.list("assignments")).Methods(http.MethodGet).Name("assignments.currentSemester")
	r.HandleFunc("/teachers/classes/pending-decision", b.list("assignments")).Methods(http.MethodGet).Name("assignments.pending")
	r.HandleFunc("/teachers/classes/class/{id:[0-9]+}", b.list("assignments")).Methods(http.MethodGet).Name("assignments.byClass")
	r.HandleFunc("/teachers/classes/{id:[0-9]+}/accept", b.echoID).Methods(http.MethodPatch).Name("assignments.accept")
	r.HandleFunc("/teachers/classes/{id:[0-9]+}/reject", b.echoID).Methods(http.MethodPatch).Name("assignments.reject")
	r.HandleFunc("/teachers/classes/teacher/{teacher:[0-9]+}/class/{class:[0-9]+}", static(http.StatusNoContent, nil)).Methods(http.MethodDelete).Name("assignments.delete")
	r.HandleFunc("/teachers/{id:[0-9]+}/classes", b.list("assignments")).Methods(http.MethodGet).Name("assignments.byTeacher")
	r.HandleFunc("/teachers/{id:[0-9]+}/classes/status/{status:[0-9]+}", b.list("assignments")).Methods(http.MethodGet).Name("assignments.byStatus")

	// planning
	r.HandleFunc("/classrooms/type/{id:[0-9]+}", b.list("classrooms")).Methods(http.MethodGet).Name("classrooms.byType")
	b.crud("/classrooms", "classrooms", http.StatusCreated, http.StatusNoContent)

	r.HandleFunc("/planning/classes/current-semester", b.list("classes")).Methods(http.MethodGet).Name("classes.currentSemester")
	r.HandleFunc("/planning/classes/course/{id:[0-9]+}", b.list("classes")).Methods(http.MethodGet).Name("classes.byCourse")
	r.HandleFunc("/planning/classes/section/{id:[0-9]+}", b.list("classes")).Methods(http.MethodGet).Name("classes.bySection")
	r.HandleFunc("/planning/classes/{id:[0-9]+}/schedules", b.create("schedules", http.StatusCreated)).Methods(http.MethodPost).Name("schedules.create")
	r.HandleFunc("/planning/classes/{id:[0-9]+}/schedules", b.list("schedules")).Methods(http.MethodGet).Name("schedules.byClass")
	b.crud("/planning/classes", "classes", http.StatusCreated, http.StatusNoContent)
	b.crud("/planning/schedules", "schedules", 0, http.StatusNoContent)

	r.HandleFunc("/teaching-assistants/conflicts", static(http.StatusOK, []any{})).Methods(http.MethodGet).Name("assistants.conflicts")
	r.HandleFunc("/teaching-assistants/student-application/{id:[0-9]+}", static(http.StatusNotFound, map[string]any{"error": "not found"})).Methods(http.MethodGet).Name("assistants.byApplication")
	r.HandleFunc("/teaching-assistants/{id:[0-9]+}/schedules", b.create("assistantSchedules", http.StatusCreated)).Methods(http.MethodPost).Name("assistantSchedules.create")
	b.crud("/teaching-assistants/schedules", "assistantSchedules", 0, http.StatusOK)
	b.crud("/teaching-assistants", "assistants", http.StatusCreated, http.StatusOK)
}

var currentSemester = map[string]any{"id": 2, "year": 2025, "period": 10}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	body, err := decode(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	email, _ := body["email"].(string)
	password, _ := body["password"].(string)

	b.mu.Lock()
	rejected := b.rejected[email]
	b.mu.Unlock()

	if email == "" || password != defaultPassword || rejected {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  TokenFor(email),
		"refreshToken": "refresh-" + email,
	})
}

func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	body, err := decode(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	token, _ := body["refreshToken"].(string)
	email, ok := strings.CutPrefix(token, "refresh-")
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid refresh token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  TokenFor(email),
		"refreshToken": "refresh-" + email,
	})
}

func (b *Backend) echoID(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"id": pathID(r, "id")})
}

// registerStudent returns the new ID as a bare integer body.
func (b *Backend) registerStudent(w http.ResponseWriter, r *http.Request) {
	body, err := decode(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	item := b.insert("students", body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "%d", item["id"])
}

func (b *Backend) createAcademicRequests(w http.ResponseWriter, r *http.Request) {
	body, err := decode(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	requests, _ := body["requests"].([]any)
	created := make([]map[string]any, 0, len(requests))
	for _, req := range requests {
		fields, _ := req.(map[string]any)
		created = append(created, b.insert("requests", fields))
	}
	writeJSON(w, http.StatusCreated, created)
}

func (b *Backend) templateByName(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	b.mu.Lock()
	var found map[string]any
	for _, item := range b.store["templates"] {
		if item["name"] == name {
			found = maps.Clone(item)
			break
		}
	}
	b.mu.Unlock()
	if found == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (b *Backend) currentUser(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimPrefix(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "), "access-")
	writeJSON(w, http.StatusOK, user(1, email))
}

func (b *Backend) allUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []any{user(1, "admin@secchub.com"), user(2, "user@secchub.com")})
}

func (b *Backend) userByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, user(1, email))
}

func (b *Backend) userByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if id > 25 {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, user(id, fmt.Sprintf("user%d@secchub.com", id)))
}

func user(id int64, email string) map[string]any {
	username, _, _ := strings.Cut(email, "@")
	return map[string]any{"id": id, "username": username, "email": email}
}

// auditLogs streams two NDJSON records.
func (b *Backend) auditLogs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"id":1,"action":"CREATE","email":"admin@secchub.com"}`)
	fmt.Fprintln(w, `{"id":2,"action":"UPDATE","email":"admin@secchub.com"}`)
}
