package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"surveyplanner/internal/models"
	"surveyplanner/internal/planning"
	"surveyplanner/internal/repository"
	"surveyplanner/internal/trigger"
	"surveyplanner/internal/worker"
)

type fakePlanner struct {
	runOpts planning.RunOptions
	report  planning.RunReport
	plan    *planning.Plan
	err     error
}

func (f *fakePlanner) Run(_ context.Context, opts planning.RunOptions) planning.RunReport {
	f.runOpts = opts
	return f.report
}

func (f *fakePlanner) Preview(context.Context, planning.Date) (*planning.Plan, error) {
	return f.plan, f.err
}

func (f *fakePlanner) DefaultBaseDate() planning.Date {
	return planning.Date{Year: 2025, Month: 1, Day: 10}
}

func (f *fakePlanner) Group() string { return "crypto-forecast-schedules" }

type fakeInspector struct {
	group   string
	planned []string
	listErr error
}

func (f *fakeInspector) List(_ context.Context, group string) ([]trigger.Summary, error) {
	f.group = group
	return []trigger.Summary{{Name: "a", State: "ENABLED"}}, f.listErr
}

func (f *fakeInspector) Summary(_ context.Context, group string) (trigger.GroupSummary, error) {
	return trigger.GroupSummary{Group: group, Exists: true, Total: 1}, nil
}

func (f *fakeInspector) Reconcile(_ context.Context, planned []string, group string) (trigger.ReconcileReport, error) {
	f.planned = planned
	return trigger.ReconcileReport{Group: group, Missing: planned}, nil
}

type fakeCleaner struct {
	force  bool
	report trigger.DeletionReport
}

func (f *fakeCleaner) DeleteGroup(_ context.Context, group string, force bool) trigger.DeletionReport {
	f.force = force
	f.report.Group = group
	return f.report
}

type fakeSurveys struct {
	active map[int64]bool
	hasQ   map[int64]bool
}

func (f *fakeSurveys) FindAll(limit, page int, active *bool) ([]models.Survey, int64, error) {
	var out []models.Survey
	for id, a := range f.active {
		if active == nil || *active == a {
			out = append(out, models.Survey{SurveyID: id, IsActive: a})
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeSurveys) FindByID(id int64) (*models.Survey, error) {
	a, ok := f.active[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.Survey{SurveyID: id, IsActive: a}, nil
}

func (f *fakeSurveys) SetActive(id int64, active bool) error {
	if _, ok := f.active[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.active[id] = active
	return nil
}

func (f *fakeSurveys) Delete(id int64) error {
	if _, ok := f.active[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	if f.hasQ[id] {
		return repository.ErrSurveyHasQueries
	}
	delete(f.active, id)
	return nil
}

type fakeInvoker struct {
	got planning.Payload
	out worker.Outcome
	err error
}

func (f *fakeInvoker) Handle(_ context.Context, p planning.Payload) (worker.Outcome, error) {
	f.got = p
	return f.out, f.err
}

func do(t *testing.T, h echo.HandlerFunc, method, target, body string, params ...string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestPlanningRun(t *testing.T) {
	t.Parallel()

	p := &fakePlanner{report: planning.RunReport{Status: trigger.StatusPartialSuccess}}
	h := NewPlanningHandler(p, zap.NewNop())

	rec, resp := do(t, h.Run, http.MethodPost, "/api/planning/run", `{"base_date":"2025-02-01","repair":true}`)
	if rec.Code != http.StatusOK || !resp.Status || resp.Msg != trigger.StatusPartialSuccess {
		t.Fatalf("code = %d, resp = %+v", rec.Code, resp)
	}
	if p.runOpts.BaseDate != (planning.Date{Year: 2025, Month: 2, Day: 1}) || !p.runOpts.Repair {
		t.Fatalf("opts = %+v", p.runOpts)
	}

	p.report.Status = trigger.StatusError
	if rec, _ := do(t, h.Run, http.MethodPost, "/api/planning/run", `{}`); rec.Code != http.StatusBadGateway {
		t.Fatalf("error run code = %d", rec.Code)
	}
	if p.runOpts.BaseDate != p.DefaultBaseDate() {
		t.Fatalf("default base date = %v", p.runOpts.BaseDate)
	}

	if rec, _ := do(t, h.Run, http.MethodPost, "/api/planning/run", `{"base_date":"10/01/2025"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date code = %d", rec.Code)
	}
}

func TestPlanningPreview(t *testing.T) {
	t.Parallel()

	p := &fakePlanner{plan: &planning.Plan{SurveysConsidered: 2}}
	h := NewPlanningHandler(p, zap.NewNop())
	if rec, resp := do(t, h.Preview, http.MethodGet, "/api/planning/preview?base_date=2025-01-10", ""); rec.Code != http.StatusOK || !resp.Status {
		t.Fatalf("code = %d, resp = %+v", rec.Code, resp)
	}

	p.err = errors.New("db down")
	if rec, _ := do(t, h.Preview, http.MethodGet, "/api/planning/preview", ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestScheduledQueries(t *testing.T) {
	t.Parallel()

	p := &fakePlanner{plan: &planning.Plan{Triggers: []planning.PlannedTrigger{{Name: "t1"}, {Name: "t2"}}}}
	insp := &fakeInspector{}
	cl := &fakeCleaner{report: trigger.DeletionReport{Status: trigger.StatusSuccess}}
	h := NewScheduledQueryHandler(p, insp, cl, zap.NewNop())

	if _, resp := do(t, h.List, http.MethodGet, "/api/scheduled-queries", ""); !resp.Status || insp.group != "crypto-forecast-schedules" {
		t.Fatalf("list resp = %+v, group = %q", resp, insp.group)
	}
	do(t, h.List, http.MethodGet, "/api/scheduled-queries?group=other", "")
	if insp.group != "other" {
		t.Fatalf("group = %q", insp.group)
	}

	insp.listErr = trigger.ErrGroupNotFound
	if rec, resp := do(t, h.List, http.MethodGet, "/api/scheduled-queries", ""); rec.Code != http.StatusOK || resp.Msg != "Group not found" {
		t.Fatalf("missing group: code = %d, resp = %+v", rec.Code, resp)
	}

	if _, resp := do(t, h.Reconcile, http.MethodGet, "/api/scheduled-queries/reconcile?base_date=2025-01-10", ""); !resp.Status || len(insp.planned) != 2 {
		t.Fatalf("reconcile resp = %+v, planned = %v", resp, insp.planned)
	}

	if rec, _ := do(t, h.DeleteAll, http.MethodDelete, "/api/scheduled-queries?force=true", ""); rec.Code != http.StatusOK || !cl.force {
		t.Fatalf("delete code = %d, force = %v", rec.Code, cl.force)
	}
	cl.report.Status = trigger.StatusError
	if rec, _ := do(t, h.DeleteAll, http.MethodDelete, "/api/scheduled-queries", ""); rec.Code != http.StatusBadGateway || cl.force {
		t.Fatalf("failed delete code = %d", rec.Code)
	}
}

func TestSurveys(t *testing.T) {
	t.Parallel()

	s := &fakeSurveys{active: map[int64]bool{1: true, 2: false}, hasQ: map[int64]bool{1: true}}
	h := NewSurveyHandler(s, zap.NewNop())

	if _, resp := do(t, h.List, http.MethodGet, "/api/surveys?active=true", ""); !resp.Status {
		t.Fatalf("list resp = %+v", resp)
	}
	if rec, _ := do(t, h.List, http.MethodGet, "/api/surveys?active=maybe", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter code = %d", rec.Code)
	}

	if _, resp := do(t, h.Deactivate, http.MethodPost, "/", "", "id", "1"); !resp.Status || s.active[1] {
		t.Fatalf("deactivate resp = %+v, active = %v", resp, s.active[1])
	}
	if rec, _ := do(t, h.Activate, http.MethodPost, "/", "", "id", "99"); rec.Code != http.StatusNotFound {
		t.Fatalf("activate unknown code = %d", rec.Code)
	}

	if rec, _ := do(t, h.Delete, http.MethodDelete, "/", "", "id", "1"); rec.Code != http.StatusConflict {
		t.Fatalf("delete with queries code = %d", rec.Code)
	}
	if rec, _ := do(t, h.Delete, http.MethodDelete, "/", "", "id", "2"); rec.Code != http.StatusOK {
		t.Fatalf("delete code = %d", rec.Code)
	}
	if rec, _ := do(t, h.Get, http.MethodGet, "/", "", "id", "2"); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted code = %d", rec.Code)
	}
}

func TestWorkerInvoke(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{out: worker.Outcome{QueryID: 4, Status: models.QueryStatusSucceeded}}
	h := NewWorkerHandler(inv, zap.NewNop())

	body := `{"trigger_name":"t-1","survey_id":1,"query_kind":"Baseline","fire_at_utc":"2025-01-10T01:00:00Z","asset_name":null}`
	rec, resp := do(t, h.Invoke, http.MethodPost, "/api/worker/invoke", body)
	if rec.Code != http.StatusOK || resp.Msg != "Query succeeded" || inv.got.TriggerName != "t-1" || inv.got.AssetName != nil {
		t.Fatalf("code = %d, resp = %+v, got = %+v", rec.Code, resp, inv.got)
	}

	inv.out.Duplicate = true
	if _, resp := do(t, h.Invoke, http.MethodPost, "/api/worker/invoke", body); resp.Msg != "Query already succeeded" {
		t.Fatalf("duplicate msg = %q", resp.Msg)
	}

	inv.err = errors.New("llm timeout")
	if rec, _ := do(t, h.Invoke, http.MethodPost, "/api/worker/invoke", body); rec.Code != http.StatusBadGateway {
		t.Fatalf("failure code = %d", rec.Code)
	}
	inv.err = worker.ErrInvalidPayload
	if rec, _ := do(t, h.Invoke, http.MethodPost, "/api/worker/invoke", body); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid code = %d", rec.Code)
	}
}

func TestQueriesList(t *testing.T) {
	t.Parallel()

	h := NewQueryHandler(queryListerFunc(func(limit, page int, surveyID int64, status string) ([]models.Query, int64, error) {
		if surveyID != 3 || status != "FAILED" || limit != 10 {
			t.Errorf("filters = %d %q %d", surveyID, status, limit)
		}
		return []models.Query{{QueryID: 1}}, 1, nil
	}), zap.NewNop())

	if _, resp := do(t, h.List, http.MethodGet, "/api/queries?survey_id=3&status=failed&limit=10", ""); !resp.Status {
		t.Fatalf("resp = %+v", resp)
	}
	if rec, _ := do(t, h.List, http.MethodGet, "/api/queries?survey_id=x", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}

type queryListerFunc func(limit, page int, surveyID int64, status string) ([]models.Query, int64, error)

func (f queryListerFunc) FindAll(limit, page int, surveyID int64, status string) ([]models.Query, int64, error) {
	return f(limit, page, surveyID, status)
}

type fakeReports struct {
	runs map[int64]*models.RunReport
	err  error
}

func (f *fakeReports) SurveyRuns(_ context.Context, id int64) (*models.RunReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.runs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r, nil
}

func (f *fakeReports) Comparison(ctx context.Context, id int64) ([]models.HorizonComparison, error) {
	r, err := f.SurveyRuns(ctx, id)
	if err != nil {
		return nil, err
	}
	return repository.CompareRuns(r.Runs), nil
}

func TestReports(t *testing.T) {
	t.Parallel()

	forecast := int64(2)
	day := time.Date(2025, 1, 10, 1, 0, 0, 0, time.UTC)
	reports := &fakeReports{runs: map[int64]*models.RunReport{
		1: {SurveyID: 1, TotalQueries: 2, ExpectedQueries: 3, Runs: []models.SurveyRun{
			{QueryID: 2, QueryKind: "BaselineForecast", HorizonType: "24h", Recommendation: "Buy", ScheduledForUTC: day},
			{QueryID: 4, QueryKind: "FollowUp", HorizonType: "followup-24h", Recommendation: "Sell", PairedQueryID: &forecast, ScheduledForUTC: day.Add(24 * time.Hour)},
		}},
	}}
	h := NewReportHandler(reports, zap.NewNop())

	rec, resp := do(t, h.Runs, http.MethodGet, "/", "", "id", "1")
	if rec.Code != http.StatusOK || !resp.Status {
		t.Fatalf("runs = %d %+v", rec.Code, resp)
	}
	obj := resp.Obj.(map[string]interface{})
	if obj["expected_queries"].(float64) != 3 || len(obj["runs"].([]interface{})) != 2 {
		t.Fatalf("runs obj = %+v", obj)
	}

	_, resp = do(t, h.Comparison, http.MethodGet, "/", "", "id", "1")
	rows := resp.Obj.(map[string]interface{})["comparisons"].([]interface{})
	if len(rows) != 1 {
		t.Fatalf("comparisons = %+v", rows)
	}
	row := rows[0].(map[string]interface{})
	if row["horizon_type"] != "24h" || row["initial_prediction"] != "Buy" || row["follow_up_actual"] != "Sell" || row["match"] != false {
		t.Fatalf("comparison row = %+v", row)
	}

	if rec, _ := do(t, h.Runs, http.MethodGet, "/", "", "id", "9"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown survey code = %d", rec.Code)
	}
	if rec, _ := do(t, h.Comparison, http.MethodGet, "/", "", "id", "x"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id code = %d", rec.Code)
	}

	reports.err = errors.New("db down")
	if rec, _ := do(t, h.Comparison, http.MethodGet, "/", "", "id", "1"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("store error code = %d", rec.Code)
	}
}
