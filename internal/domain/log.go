package domain

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"secchub-loadtest/internal/check"
	"secchub-loadtest/internal/client"
	"secchub-loadtest/internal/weighted"
)

const (
	ndjson = "application/x-ndjson"

	trendLogAll       = "log_audit_query_duration_ms"
	trendLogByEmail   = "log_audit_by_email_duration_ms"
	trendLogByAction  = "log_audit_by_action_duration_ms"
	trendLogDateRange = "log_audit_by_date_range_duration_ms"
	trendLogByMethod  = "log_audit_by_method_duration_ms"
	trendLogCombined  = "log_audit_combined_duration_ms"
)

var (
	auditEmails  = []string{"admin@secchub.com", "teacher1@secchub.com", "student1@secchub.com"}
	auditActions = []string{"CREATE", "UPDATE", "DELETE", "READ"}
	auditMethods = []string{"createCourse", "updateCourse", "deleteCourse", "getAllTeachers", "updateTeacher", "registerStudent"}
)

var logOps = weighted.MustTable(
	weighted.Option[operation]{Label: "allLogs", Weight: 25, Value: logAll},
	weighted.Option[operation]{Label: "byEmail", Weight: 20, Value: logByEmail},
	weighted.Option[operation]{Label: "byAction", Weight: 20, Value: logByAction},
	weighted.Option[operation]{Label: "byDateRange", Weight: 15, Value: logByDateRange},
	weighted.Option[operation]{Label: "byMethod", Weight: 10, Value: logByMethod},
	weighted.Option[operation]{Label: "combined", Weight: 10, Value: logCombined},
)

func runLog(ctx context.Context, s *session) {
	s.dispatch(ctx, logOps)
}

// stream は監査ログのNDJSONストリームを取得する
func (s *session) stream(ctx context.Context, trend, path string, checks ...check.Check) {
	s.do(ctx, trend, client.Request{
		Method: http.MethodGet,
		Path:   path,
		Token:  s.rc.Token(),
		Accept: ndjson,
	}, checks...)
}

func logAll(ctx context.Context, s *session) {
	s.stream(ctx, trendLogAll, "/audit-logs",
		check.Status("get all audit logs (200)", http.StatusOK),
		check.ContentType("response is NDJSON", ndjson),
		check.NDJSONLines("logs returned", 1),
	)
}

func logByEmail(ctx context.Context, s *session) {
	email := choose(s, auditEmails)
	s.stream(ctx, trendLogByEmail, "/audit-logs/email/"+url.PathEscape(email),
		check.Status("get audit logs by email (200)", http.StatusOK),
		check.ContentType("response is NDJSON", ndjson),
	)
}

func logByAction(ctx context.Context, s *session) {
	s.stream(ctx, trendLogByAction, "/audit-logs/action/"+choose(s, auditActions),
		check.Status("get audit logs by action (200)", http.StatusOK),
		check.ContentType("response is NDJSON", ndjson),
	)
}

// logByDateRange は直近24時間の監査ログを取得する
func logByDateRange(ctx context.Context, s *session) {
	end := s.env.Now().UTC()
	start := end.Add(-24 * time.Hour)

	query := url.Values{}
	query.Set("start", start.Format("2006-01-02T15:04:05"))
	query.Set("end", end.Format("2006-01-02T15:04:05"))

	s.stream(ctx, trendLogDateRange, "/audit-logs/date-range?"+query.Encode(),
		check.Status("get audit logs by date range (200)", http.StatusOK),
		check.ContentType("response is NDJSON", ndjson),
	)
}

func logByMethod(ctx context.Context, s *session) {
	s.stream(ctx, trendLogByMethod, "/audit-logs/method/"+url.PathEscape(choose(s, auditMethods)),
		check.Status("get audit logs by method (200)", http.StatusOK),
		check.ContentType("response is NDJSON", ndjson),
	)
}

func logCombined(ctx context.Context, s *session) {
	action := choose(s, auditActions[:3])
	s.stream(ctx, trendLogCombined, "/audit-logs/email/"+url.PathEscape("admin@secchub.com")+"/action/"+action,
		check.Status("get audit logs by email and action (200)", http.StatusOK),
		check.ContentType("response is NDJSON", ndjson),
	)
}
