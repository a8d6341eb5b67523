package domain

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"secchub-loadtest/internal/check"
	"secchub-loadtest/internal/weighted"
)

const trendNotificationTemplate = "notification_email_template_duration_ms"

type emailTemplate struct {
	Name      string   `json:"name"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Variables []string `json:"variables"`
}

var mockEmailTemplates = []emailTemplate{
	{"welcome_email", "Welcome to SecHub", "Hello {{name}}, welcome to our platform!", []string{"name"}},
	{"password_reset", "Password Reset Request", "Click here to reset your password: {{resetLink}}", []string{"resetLink"}},
	{"course_enrollment", "Course Enrollment Confirmation", "You have been enrolled in {{courseName}}", []string{"courseName"}},
	{"grade_notification", "Grade Posted", "Your grade for {{courseName}} is {{grade}}", []string{"courseName", "grade"}},
	{"schedule_update", "Schedule Change Notification", "Your schedule has been updated for {{semester}}", []string{"semester"}},
}

const updatedSubject = "Updated Subject - Load Test"

var notificationOps = weighted.MustTable(
	weighted.Option[operation]{Label: "emailTemplate", Weight: 100, Value: notificationTemplate},
)

func runNotification(ctx context.Context, s *session) {
	s.dispatch(ctx, notificationOps)
}

// notificationTemplate はメールテンプレートのCRUDを行う
// 作成できなかった場合は以降の呼び出しをすべて省略する
func notificationTemplate(ctx context.Context, s *session) {
	tmpl := choose(s, mockEmailTemplates)
	tmpl.Name = tmpl.Name + "_" + s.uniqueID()

	resp, ok := s.send(ctx, trendNotificationTemplate, http.MethodPost, "/emails/templates", tmpl,
		check.Status("create template status is 201", http.StatusCreated),
		check.Has("create template returns id", "id"),
	)
	s.pause(ctx, stepPause)
	templateID, hasID := resp.ID()
	if !ok || !hasID {
		return
	}
	name, hasName := resp.String("name")
	if !hasName {
		name = tmpl.Name
	}

	path := fmt.Sprintf("/emails/templates/%d", templateID)

	s.get(ctx, trendNotificationTemplate, "/emails/templates",
		check.Status("getAll templates status is 200", http.StatusOK),
		check.IsArray("getAll templates returns array"),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendNotificationTemplate, path,
		check.Status("getById template status is 200", http.StatusOK),
		check.Equals("getById template returns correct id", "id", templateID),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendNotificationTemplate, "/emails/templates/name/"+url.PathEscape(name),
		check.Status("getByName template status is 200", http.StatusOK),
		check.Equals("getByName template returns correct name", "name", name),
	)
	s.pause(ctx, stepPause)

	update := emailTemplate{
		Name:      name,
		Subject:   updatedSubject,
		Body:      "Updated body content for template {{variable}}",
		Variables: []string{"variable"},
	}
	s.send(ctx, trendNotificationTemplate, http.MethodPut, path, update,
		check.Status("update template status is 200", http.StatusOK),
		check.Equals("update template returns updated data", "subject", updatedSubject),
	)
	s.pause(ctx, stepPause)

	s.send(ctx, trendNotificationTemplate, http.MethodDelete, path, nil,
		check.Status("delete template status is 200", http.StatusOK),
	)
	s.pause(ctx, stepPause)
}
