package domain

import (
	"context"
	"math/rand/v2"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secchub-loadtest/internal/client"
	"secchub-loadtest/internal/errs"
	"secchub-loadtest/internal/metrics"
	"secchub-loadtest/internal/runstate"
	"secchub-loadtest/internal/testbackend"
	"secchub-loadtest/internal/weighted"
)

const adminEmail = "admin@secchub.com"

type fixture struct {
	backend *testbackend.Backend
	env     Env
	rc      *runstate.Context
	metrics *metrics.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := testbackend.New()
	t.Cleanup(b.Close)

	reg := metrics.NewRegistry(metrics.RegistryConfig{Namespace: "test", MaxTrendSamples: 1000})
	c := client.New(client.Config{BaseURL: b.URL(), Timeout: 5 * time.Second}, reg)
	env := Env{
		Client:  c,
		Metrics: reg,
		Rand:    rand.New(rand.NewPCG(7, 11)),
		Sleep:   func(context.Context, time.Duration) {},
	}.withDefaults()

	return &fixture{
		backend: b,
		env:     env,
		rc:      runstate.New("test-run", testbackend.TokenFor(adminEmail), b.URL(), nil),
		metrics: reg,
	}
}

func (f *fixture) run(d Domain, op operation) {
	op(context.Background(), newSession(&f.env, f.rc, d))
}

func (f *fixture) count(t *testing.T, cat runstate.Category) int {
	t.Helper()
	n, err := f.rc.Resources().Count(context.Background(), cat)
	require.NoError(t, err)
	return n
}

func TestDomainNames(t *testing.T) {
	want := []string{"admin", "security", "parametric", "notification", "log", "integration", "planning"}
	domains := Domains()
	require.Len(t, domains, len(want))
	for i, d := range domains {
		assert.Equal(t, want[i], d.String())

		parsed, err := ParseDomain(" " + want[i] + " ")
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
	}

	_, err := ParseDomain("billing")
	assert.Error(t, err)
	assert.Equal(t, "domain(42)", Domain(42).String())
	assert.False(t, Domain(-1).Valid())
}

func TestDefaultWeights(t *testing.T) {
	weights := DefaultWeights()
	total := 0.0
	for _, d := range Domains() {
		total += weights[d]
	}
	assert.Equal(t, 95.0, total)
	assert.Equal(t, 14.0, weights[Admin])
	assert.Equal(t, 30.0, weights[Planning])
}

func TestEveryDomainHasRunner(t *testing.T) {
	for _, d := range Domains() {
		assert.NotNil(t, runners[d], d.String())
	}
}

func TestInnerTableWeights(t *testing.T) {
	tests := []struct {
		name  string
		table *weighted.Table[operation]
		want  map[string]float64
	}{
		{"admin", adminOps, map[string]float64{"course": 35, "teacher": 25, "section": 20, "semester": 19, "register": 1}},
		{"security", securityOps, map[string]float64{"user": 70, "authentication": 30}},
		{"parametric", parametricOps, map[string]float64{"status": 20, "role": 15, "documentType": 20, "employmentType": 15, "modality": 15, "classroomType": 15}},
		{"notification", notificationOps, map[string]float64{"emailTemplate": 100}},
		{"log", logOps, map[string]float64{"allLogs": 25, "byEmail": 20, "byAction": 20, "byDateRange": 15, "byMethod": 10, "combined": 10}},
		{"integration", integrationOps, map[string]float64{"academicRequest": 34, "studentApplication": 33, "teacherClass": 33}},
		{"planning", planningOps, map[string]float64{"planning": 80, "classroom": 10, "teachingAssistant": 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make(map[string]float64)
			for _, opt := range tt.table.Options() {
				got[opt.Label] = opt.Weight
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// Every operation of every domain passes all of its checks against a
// backend that behaves.
func TestEveryOperationPasses(t *testing.T) {
	tables := map[Domain]*weighted.Table[operation]{
		Admin:        adminOps,
		Security:     securityOps,
		Parametric:   parametricOps,
		Notification: notificationOps,
		Log:          logOps,
		Integration:  integrationOps,
		Planning:     planningOps,
	}
	for d, table := range tables {
		for _, opt := range table.Options() {
			t.Run(d.String()+"/"+opt.Label, func(t *testing.T) {
				f := newFixture(t)
				f.run(d, opt.Value)

				errRate := f.metrics.Rate(d.String() + "_errors")
				assert.Positive(t, errRate.Count())
				assert.Zero(t, errRate.Trues(), "failed checks in %s", opt.Label)
				assert.Zero(t, f.metrics.Rate(metrics.Errors).Trues())
				assert.Equal(t, errRate.Count(), f.metrics.Rate(metrics.Errors).Count())
			})
		}
	}
}

func TestCourseChainRecordsCourse(t *testing.T) {
	f := newFixture(t)
	f.run(Admin, adminCourse)

	assert.Equal(t, 1, f.backend.Hits("courses.create"))
	assert.Equal(t, 1, f.backend.Hits("courses.list"))
	assert.Equal(t, 2, f.backend.Hits("courses.get"))
	assert.Equal(t, 1, f.backend.Hits("courses.patch"))
	assert.Equal(t, 1, f.backend.Hits("courses.delete"))
	assert.Equal(t, 1, f.count(t, runstate.Courses))
	assert.Equal(t, uint64(6), f.metrics.Trend(trendAdminCourse).Stats().Count)
}

func TestFailedCreateSkipsDependentSteps(t *testing.T) {
	tests := []struct {
		name    string
		domain  Domain
		op      operation
		create  string
		still   []string
		skipped []string
	}{
		{
			name:    "course",
			domain:  Admin,
			op:      adminCourse,
			create:  "courses.create",
			still:   []string{"courses.list"},
			skipped: []string{"courses.get", "courses.patch", "courses.delete"},
		},
		{
			name:    "email template",
			domain:  Notification,
			op:      notificationTemplate,
			create:  "templates.create",
			skipped: []string{"templates.list", "templates.get", "templates.byName", "templates.update", "templates.delete"},
		},
		{
			name:    "classroom",
			domain:  Planning,
			op:      planningClassroom,
			create:  "classrooms.create",
			still:   []string{"classrooms.list"},
			skipped: []string{"classrooms.get", "classrooms.update", "classrooms.byType", "classrooms.delete"},
		},
		{
			name:    "planning class",
			domain:  Planning,
			op:      planningClass,
			create:  "classes.create",
			still:   []string{"classes.currentSemester", "classes.list"},
			skipped: []string{"classes.get", "classes.update", "schedules.create", "schedules.update", "classes.delete"},
		},
		{
			name:    "academic request",
			domain:  Integration,
			op:      integrationAcademicRequest,
			create:  "requests.create",
			still:   []string{"requests.list", "requests.currentSemester", "requests.bySemester"},
			skipped: []string{"requests.get", "requests.update", "requests.schedules", "requests.delete"},
		},
		{
			name:    "teacher class",
			domain:  Integration,
			op:      integrationTeacherClass,
			create:  "assignments.create",
			still:   []string{"assignments.currentSemester", "assignments.pending"},
			skipped: []string{"assignments.accept", "assignments.reject", "assignments.delete"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.backend.Fail(tt.create, http.StatusInternalServerError)
			f.run(tt.domain, tt.op)

			assert.Equal(t, 1, f.backend.Hits(tt.create))
			for _, route := range tt.still {
				assert.Equal(t, 1, f.backend.Hits(route), route)
			}
			for _, route := range tt.skipped {
				assert.Zero(t, f.backend.Hits(route), route)
			}
			assert.Equal(t, uint64(1), f.metrics.Rate(tt.domain.String()+"_errors").Trues())
			assert.Equal(t, uint64(1), f.metrics.Rate(metrics.Errors).Trues())
		})
	}
}

func TestFailedTemplateCreateStillPauses(t *testing.T) {
	f := newFixture(t)
	var slept []time.Duration
	f.env.Sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }
	f.backend.Fail("templates.create", http.StatusInternalServerError)

	f.run(Notification, notificationTemplate)

	assert.Equal(t, []time.Duration{stepPause}, slept)
}

func TestPlanningClassRecordsSection(t *testing.T) {
	f := newFixture(t)
	f.run(Planning, planningClass)

	assert.Equal(t, 1, f.count(t, runstate.Sections))
	assert.Equal(t, 1, f.backend.Hits("schedules.update"))
	assert.Equal(t, 1, f.backend.Hits("schedules.delete"))
	assert.Equal(t, 1, f.backend.Hits("classes.delete"))
}

func TestRegisterRecordsStudentAndTeacher(t *testing.T) {
	f := newFixture(t)
	f.run(Admin, adminRegister)

	assert.Equal(t, 1, f.count(t, runstate.Students))
	assert.Equal(t, 1, f.count(t, runstate.Teachers))
}

func TestDuplicateTeachingAssistantIsNotAnError(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail("assistants.create", http.StatusBadRequest)
	f.run(Planning, planningTeachingAssistant)

	assert.Equal(t, 1, f.backend.Hits("assistants.list"))
	assert.Zero(t, f.backend.Hits("assistants.get"))
	assert.Zero(t, f.backend.Hits("assistantSchedules.create"))
	assert.Zero(t, f.backend.Hits("assistants.delete"))
	assert.Zero(t, f.metrics.Rate("planning_errors").Trues())
}

func TestSecondaryRoleFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.backend.RejectLogin("program@secchub.com")
	f.run(Integration, integrationAcademicRequest)

	assert.Zero(t, f.backend.Hits("requests.create"))
	assert.Equal(t, 1, f.backend.Hits("requests.list"))
	assert.Equal(t, 1, f.backend.Hits("requests.currentSemester"))
	assert.Equal(t, 1, f.backend.Hits("requests.bySemester"))
	assert.Zero(t, f.backend.Hits("requests.get"))
	assert.Zero(t, f.metrics.Rate("integration_errors").Trues())
}

func TestSecondaryRoleTokens(t *testing.T) {
	f := newFixture(t)
	f.run(Integration, integrationAcademicRequest)

	assert.Equal(t, testbackend.TokenFor("program@secchub.com"), f.backend.LastToken("requests.create"))
	assert.Equal(t, testbackend.TokenFor(adminEmail), f.backend.LastToken("requests.list"))
	assert.Equal(t, testbackend.TokenFor(adminEmail), f.backend.LastToken("requests.delete"))
}

func TestTeacherDecisionNeedsTeacherToken(t *testing.T) {
	f := newFixture(t)
	f.backend.RejectLogin("teacher@secchub.com")
	f.run(Integration, integrationTeacherClass)

	assert.Equal(t, 1, f.backend.Hits("assignments.create"))
	assert.Zero(t, f.backend.Hits("assignments.accept")+f.backend.Hits("assignments.reject"))
	assert.Zero(t, f.backend.Hits("assignments.delete"))
}

func TestSecurityLoginSendsNoBearer(t *testing.T) {
	f := newFixture(t)
	f.run(Security, securityAuthentication)

	assert.Equal(t, 1, f.backend.Hits("auth.login"))
	assert.Equal(t, 1, f.backend.Hits("auth.refresh"))
	assert.Empty(t, f.backend.LastToken("auth.login"))
}

func TestCancelledContextSendsNothing(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adminSection(ctx, newSession(&f.env, f.rc, Admin))

	assert.Zero(t, f.backend.TotalHits())
	assert.Zero(t, f.metrics.Rate("admin_errors").Count())
}

func TestNewExecutorValidation(t *testing.T) {
	f := newFixture(t)

	_, err := NewExecutor(Env{}, DefaultExecutorConfig())
	assert.Error(t, err)

	_, err = NewExecutor(f.env, ExecutorConfig{Weights: map[Domain]float64{Admin: -1}})
	assert.ErrorIs(t, err, weighted.ErrInvalidWeight)

	_, err = NewExecutor(f.env, ExecutorConfig{ThinkMin: 2 * time.Second, ThinkMax: time.Second})
	assert.Error(t, err)

	_, err = NewExecutor(f.env, ExecutorConfig{Weights: map[Domain]float64{Domain(99): 1}})
	assert.Error(t, err)
}

func TestRunIterationMissingToken(t *testing.T) {
	f := newFixture(t)
	exec, err := NewExecutor(f.env, DefaultExecutorConfig())
	require.NoError(t, err)

	err = exec.RunIteration(context.Background(), runstate.New("run", "", f.backend.URL(), nil))
	assert.ErrorIs(t, err, errs.ErrMissingToken)
	assert.True(t, errs.IsFatal(err))

	err = exec.RunIteration(context.Background(), nil)
	assert.ErrorIs(t, err, errs.ErrMissingToken)

	assert.Zero(t, f.backend.TotalHits())
	assert.Zero(t, f.metrics.Counter(metrics.OperationsByModule).Total())
}

func TestRunIterationCountsDomain(t *testing.T) {
	f := newFixture(t)
	exec, err := NewExecutor(f.env, ExecutorConfig{Weights: map[Domain]float64{Log: 1}})
	require.NoError(t, err)

	for range 5 {
		require.NoError(t, exec.RunIteration(context.Background(), f.rc))
	}

	byTag := f.metrics.Counter(metrics.OperationsByModule).ByTag()
	assert.Equal(t, map[string]float64{"log": 5}, byTag)
	assert.Equal(t, 5, f.backend.HitsWithPrefix("audit."))
	assert.Same(t, f.metrics, exec.Metrics())
}

func TestRunIterationZeroWeightsRunsNothing(t *testing.T) {
	f := newFixture(t)
	exec, err := NewExecutor(f.env, ExecutorConfig{Weights: map[Domain]float64{}})
	require.NoError(t, err)

	require.NoError(t, exec.RunIteration(context.Background(), f.rc))
	assert.Zero(t, f.backend.TotalHits())
	assert.Zero(t, f.metrics.Counter(metrics.OperationsByModule).Total())
}

func TestThinkTimeRange(t *testing.T) {
	f := newFixture(t)
	var slept []time.Duration
	f.env.Sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }

	exec, err := NewExecutor(f.env, ExecutorConfig{
		Weights:  map[Domain]float64{},
		ThinkMin: time.Second,
		ThinkMax: 3 * time.Second,
	})
	require.NoError(t, err)

	for range 50 {
		require.NoError(t, exec.RunIteration(context.Background(), f.rc))
	}
	require.Len(t, slept, 50)
	for _, d := range slept {
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 3*time.Second)
	}
}

func TestRunIterationReturnsContextError(t *testing.T) {
	f := newFixture(t)
	exec, err := NewExecutor(f.env, ExecutorConfig{Weights: map[Domain]float64{Admin: 1}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = exec.RunIteration(ctx, f.rc)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.backend.TotalHits())
}

func TestSleepHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	Sleep(ctx, time.Minute)
	assert.Less(t, time.Since(start), time.Second)
}
