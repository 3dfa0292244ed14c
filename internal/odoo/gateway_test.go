package odoo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/timebot/core/errs"
)

type rpcCall struct {
	Service string
	Method  string
	Model   string
	Op      string
	Args    []any
	Kwargs  map[string]any
}

// fakeOdoo is an httptest JSON-RPC server answering execute_kw by "model.method".
type fakeOdoo struct {
	t       *testing.T
	mu      sync.Mutex
	calls   []rpcCall
	uid     any
	answers map[string]any
	errors  map[string]string
}

func newFakeOdoo(t *testing.T) (*fakeOdoo, *Client) {
	f := &fakeOdoo{t: t, uid: 7, answers: map[string]any{}, errors: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, NewClient(ClientOptions{URL: srv.URL + "/", DB: "db", Username: "me", APIKey: "key", Timeout: 5 * time.Second})
}

func (f *fakeOdoo) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/jsonrpc" {
		http.NotFound(w, r)
		return
	}
	var req struct {
		ID     int64 `json:"id"`
		Params struct {
			Service string `json:"service"`
			Method  string `json:"method"`
			Args    []any  `json:"args"`
		} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		f.t.Errorf("decode: %v", err)
		return
	}
	call := rpcCall{Service: req.Params.Service, Method: req.Params.Method}
	var result any
	var rpcErr string
	if call.Service == "common" {
		f.mu.Lock()
		result = f.uid
		f.mu.Unlock()
	} else {
		args := req.Params.Args
		call.Model, _ = args[3].(string)
		call.Op, _ = args[4].(string)
		call.Args, _ = args[5].([]any)
		call.Kwargs, _ = args[6].(map[string]any)
		key := call.Model + "." + call.Op
		f.mu.Lock()
		result = f.answers[key]
		rpcErr = f.errors[key]
		f.mu.Unlock()
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != "" {
		resp["error"] = map[string]any{"code": 200, "message": "Odoo Server Error", "data": map[string]any{"message": rpcErr}}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeOdoo) set(key string, v any) {
	f.mu.Lock()
	f.answers[key] = v
	f.mu.Unlock()
}

func (f *fakeOdoo) fail(key, msg string) {
	f.mu.Lock()
	f.errors[key] = msg
	f.mu.Unlock()
}

func (f *fakeOdoo) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.Service == "common" {
			out = append(out, "authenticate")
			continue
		}
		out = append(out, c.Model+"."+c.Op)
	}
	return out
}

func (f *fakeOdoo) last(op string) rpcCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Model+"."+f.calls[i].Op == op {
			return f.calls[i]
		}
	}
	f.t.Fatalf("no call %s", op)
	return rpcCall{}
}

var companies = []any{
	map[string]any{"id": 1, "name": "Acme"},
	map[string]any{"id": 2, "name": "Side Gig"},
}

func TestAuthenticateOnce(t *testing.T) {
	f, c := newFakeOdoo(t)
	f.set("res.company.search_read", companies)
	g := NewGateway(c, 0)

	_, err := g.Companies(context.Background())
	require.NoError(t, err)
	_, err = g.Companies(context.Background())
	require.NoError(t, err)

	want := []string{"authenticate", "res.company.search_read", "res.company.search_read"}
	if diff := cmp.Diff(want, f.ops()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestAuthenticateRejected(t *testing.T) {
	f, c := newFakeOdoo(t)
	f.mu.Lock()
	f.uid = false
	f.mu.Unlock()
	_, err := NewGateway(c, 0).Companies(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindExternal))
	assert.Contains(t, err.Error(), "authentication failed")
}

func TestCompanyDefaults(t *testing.T) {
	f, c := newFakeOdoo(t)
	f.set("res.company.search_read", companies)

	got, err := NewGateway(c, 0).Company(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, Company{ID: 1, Name: "Acme"}, got)

	got, err = NewGateway(c, 2).Company(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "Side Gig", got.Name)

	_, err = NewGateway(c, 0).Company(context.Background(), 9)
	assert.Error(t, err)

	f.set("res.company.search_read", []any{})
	_, err = NewGateway(c, 0).Company(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoCompany)
}

func TestProjectsAndTasks(t *testing.T) {
	f, c := newFakeOdoo(t)
	f.set("res.company.search_read", companies)
	f.set("project.project.search_read", []any{map[string]any{"id": 10, "name": "Website"}})
	f.set("project.task.search_read", []any{map[string]any{"id": 20, "name": "Bugfix"}, map[string]any{"id": 21, "name": false}})
	g := NewGateway(c, 0)

	projects, err := g.Projects(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: 10, Name: "Website"}}, projects)
	domain := f.last("project.project.search_read").Args[0].([]any)
	assert.Equal(t, []any{"company_id", "=", float64(1)}, domain[0])

	tasks, err := g.Tasks(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: 20, Name: "Bugfix"}, {ID: 21}}, tasks)
}

func TestTimeEntriesDecodesRows(t *testing.T) {
	f, c := newFakeOdoo(t)
	f.set("res.company.search_read", companies)
	f.set("account.analytic.line.search_read", []any{
		map[string]any{"id": 5, "date": "2026-10-15", "project_id": []any{10, "Website"}, "task_id": []any{20, "Bugfix"}, "name": "Fixed header", "unit_amount": 3.5},
		map[string]any{"id": 6, "date": false, "project_id": []any{10, "Website"}, "task_id": false, "name": false, "unit_amount": 1},
	})
	from := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	entries, err := NewGateway(c, 0).TimeEntries(context.Background(), from, from.AddDate(0, 0, 6), 0)
	require.NoError(t, err)

	want := []TimeEntry{
		{ID: 5, Date: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), Project: "Website", Task: "Bugfix", Description: "Fixed header", Hours: 3.5},
		{ID: 6, Project: "Website", Hours: 1},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	domain := f.last("account.analytic.line.search_read").Args[0].([]any)
	assert.Contains(t, domain, []any{"date", ">=", "2026-10-12"})
	assert.Contains(t, domain, []any{"date", "<=", "2026-10-18"})
	assert.Contains(t, domain, []any{"user_id", "=", float64(7)})
}

func TestRecentEntriesLimit(t *testing.T) {
	f, c := newFakeOdoo(t)
	f.set("res.company.search_read", companies)
	f.set("account.analytic.line.search_read", []any{})
	_, err := NewGateway(c, 0).RecentEntries(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(5), f.last("account.analytic.line.search_read").Kwargs["limit"])
}

func TestInvoices(t *testing.T) {
	f, c := newFakeOdoo(t)
	f.set("res.company.search_read", companies)
	f.set("account.move.search_read", []any{
		map[string]any{"id": 1, "name": "INV/2026/0001", "invoice_date": "2026-10-02", "amount_total": 1000, "amount_residual": 250, "amount_untaxed": 800},
	})
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	got, err := NewGateway(c, 0).Invoices(context.Background(), from, from.AddDate(0, 1, -1), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 250.0, got[0].AmountResidual)
	domain := f.last("account.move.search_read").Args[0].([]any)
	assert.Contains(t, domain, []any{"move_type", "=", "out_invoice"})
	assert.Contains(t, domain, []any{"state", "=", "posted"})
}

func TestCreateTimeEntryRequiresEmployee(t *testing.T) {
	f, c := newFakeOdoo(t)
	f.set("res.company.search_read", companies)
	f.set("hr.employee.search", []any{})
	f.set("account.analytic.line.create", 99)

	_, err := NewGateway(c, 0).CreateTimeEntry(context.Background(), TimeEntryInput{ProjectID: 10, TaskID: 20, Hours: 1, Description: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoEmployee))
	assert.NotContains(t, f.ops(), "account.analytic.line.create")
}

func TestCreateTimeEntry(t *testing.T) {
	f, c := newFakeOdoo(t)
	f.set("res.company.search_read", companies)
	f.set("hr.employee.search", []any{3})
	f.set("account.analytic.line.create", 99)

	id, err := NewGateway(c, 0).CreateTimeEntry(context.Background(), TimeEntryInput{
		ProjectID:   10,
		TaskID:      20,
		Hours:       3.5,
		Description: "Fixed header",
		Date:        time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(99), id)

	values := f.last("account.analytic.line.create").Args[0].(map[string]any)
	want := map[string]any{
		"date":        "2026-10-16",
		"project_id":  float64(10),
		"task_id":     float64(20),
		"name":        "Fixed header",
		"unit_amount": 3.5,
		"employee_id": float64(3),
		"company_id":  float64(1),
	}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("create values mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateTimeEntryValidates(t *testing.T) {
	f, c := newFakeOdoo(t)
	_, err := NewGateway(c, 0).CreateTimeEntry(context.Background(), TimeEntryInput{ProjectID: 1, TaskID: 1})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Empty(t, f.ops())
}

func TestServerErrorIsExternal(t *testing.T) {
	f, c := newFakeOdoo(t)
	f.fail("res.company.search_read", "Access Denied")
	_, err := NewGateway(c, 0).Companies(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindExternal))
	assert.Contains(t, err.Error(), "Access Denied")
}
