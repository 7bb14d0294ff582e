package docservice_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/starford/labdesk/internal/apperr"
	"github.com/starford/labdesk/internal/checksum"
	"github.com/starford/labdesk/internal/docservice"
	"github.com/starford/labdesk/internal/grading"
	"github.com/starford/labdesk/internal/sse"
	"github.com/starford/labdesk/internal/storage"
	"github.com/starford/labdesk/internal/testutil"
)

const notebook = `{"cells":[
	{"cell_type":"markdown","source":"# Lab 1"},
	{"cell_type":"code","source":"print(1)","execution_count":1,
	 "outputs":[{"output_type":"stream","text":"1\n"}]}
]}`

type recorder struct {
	mu     sync.Mutex
	docs   []string
	events []sse.Event
}

func (r *recorder) PublishDocumentEvent(kind, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, kind+":"+path)
}

func (r *recorder) Publish(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestUploadPath(t *testing.T) {
	p, err := docservice.UploadPath("lab_1", `C:\Users\me\hw.ipynb`)
	if err != nil || p != "lab_1/hw.ipynb" {
		t.Errorf("got %q, %v", p, err)
	}
	p, err = docservice.UploadPath("", "a.py")
	if err != nil || !strings.HasSuffix(p, "/a.py") || len(p) < len("x/a.py") {
		t.Errorf("random slot: %q, %v", p, err)
	}
	if _, err := docservice.UploadPath("../up", "a.py"); err == nil {
		t.Error("expected error for traversal slot")
	}
	if _, err := docservice.UploadPath("s", ".."); err == nil {
		t.Error("expected error for bad name")
	}
}

func TestUpload_StoresIndexesAndNotifies(t *testing.T) {
	rec := &recorder{}
	svc, store, db := testutil.TestService(t, "", rec)
	ctx := context.Background()

	d, err := svc.Upload(ctx, "lab_1", "hw.ipynb", []byte(notebook))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if d.Path != "lab_1/hw.ipynb" || d.Title != "Lab 1" {
		t.Errorf("detail = %+v", d)
	}
	if d.Checksum != checksum.Sum([]byte(notebook)) {
		t.Errorf("checksum = %q", d.Checksum)
	}
	if _, err := store.Read(ctx, "lab_1/hw.ipynb"); err != nil {
		t.Errorf("store read: %v", err)
	}
	row, err := db.GetDocument("lab_1/hw.ipynb")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if row.CodeCells != 1 || row.MarkdownCells != 1 {
		t.Errorf("row = %+v", row)
	}
	if len(rec.docs) != 1 || rec.docs[0] != "ingested:lab_1/hw.ipynb" {
		t.Errorf("events = %v", rec.docs)
	}
	if cur, ok := svc.Tracker().Current("lab_1/hw.ipynb"); !ok || cur.FileName != "hw.ipynb" {
		t.Errorf("tracker current = %+v", cur)
	}
}

func TestUpload_Errors(t *testing.T) {
	svc, _, db := testutil.TestService(t, "", nil)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, "s", "notes.txt", []byte("x")); !errors.Is(err, apperr.ErrUnsupportedFileType) {
		t.Errorf("unsupported: %v", err)
	}
	if _, err := svc.Upload(ctx, "s", "bad.ipynb", []byte("{")); !errors.Is(err, apperr.ErrMalformedNotebook) {
		t.Errorf("malformed: %v", err)
	}
	if _, err := db.GetDocument("s/bad.ipynb"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("malformed upload was indexed: %v", err)
	}
	if _, err := svc.Upload(ctx, "s", "a.py", []byte("x=1")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Upload(ctx, "s", "a.py", []byte("x=2")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate: %v", err)
	}
}

func TestReplace_IfMatch(t *testing.T) {
	svc, _, _ := testutil.TestService(t, "", nil)
	ctx := context.Background()
	d, err := svc.Upload(ctx, "s", "a.py", []byte("x=1"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Replace(ctx, d.Path, []byte("x=2"), "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale if-match: %v", err)
	}
	got, err := svc.Replace(ctx, d.Path, []byte("x=2"), d.Checksum)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got.Document.RawText != "x=2" {
		t.Errorf("raw = %q", got.Document.RawText)
	}
	if _, err := svc.Replace(ctx, "s/missing.py", []byte("y"), ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: %v", err)
	}
}

// failingWrites wraps a store and rejects writes while failing is set.
type failingWrites struct {
	storage.Provider
	failing bool
}

func (f *failingWrites) Write(ctx context.Context, p string, content []byte) error {
	if f.failing {
		return errors.New("disk full")
	}
	return f.Provider.Write(ctx, p, content)
}

func TestPut_FailedWriteKeepsIndexConsistent(t *testing.T) {
	ctx := context.Background()
	_, inner := testutil.TestInbox(t)
	db := testutil.TestDB(t)
	store := &failingWrites{Provider: inner}
	svc, err := docservice.NewService(docservice.Deps{
		Store:  store,
		DB:     db,
		Grader: grading.NewClient(grading.Config{}),
		Logger: testutil.QuietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	old := []byte("print('v1')\n")
	if _, err := svc.Upload(ctx, "lab", "a.py", old); err != nil {
		t.Fatal(err)
	}
	store.failing = true

	if _, err := svc.Replace(ctx, "lab/a.py", []byte("print('v2')\n"), ""); err == nil {
		t.Fatal("expected write error")
	}
	if cs, _ := db.GetChecksum("lab/a.py"); cs != checksum.Sum(old) {
		t.Errorf("index checksum after failed replace = %q, want previous %q", cs, checksum.Sum(old))
	}
	if _, total, _ := svc.List(ctx, 10, 0, "", ""); total != 1 {
		t.Errorf("list total = %d, want 1", total)
	}
	if res, _ := svc.Search(ctx, "v2", 10); len(res) != 0 {
		t.Errorf("search found unwritten content: %+v", res)
	}

	if _, err := svc.Upload(ctx, "lab", "b.py", []byte("x = 1\n")); err == nil {
		t.Fatal("expected write error")
	}
	if cs, _ := db.GetChecksum("lab/b.py"); cs != "" {
		t.Errorf("failed upload left index row %q", cs)
	}
}

func TestViews(t *testing.T) {
	svc, _, _ := testutil.TestService(t, "", nil)
	ctx := context.Background()
	d, err := svc.Upload(ctx, "s", "hw.ipynb", []byte(notebook))
	if err != nil {
		t.Fatal(err)
	}

	name, raw, err := svc.Raw(ctx, d.Path)
	if err != nil {
		t.Fatal(err)
	}
	if name != "hw.ipynb_raw.txt" || !strings.Contains(raw, "print(1)") {
		t.Errorf("raw = %q %q", name, raw)
	}

	eval, err := svc.EvaluationText(ctx, d.Path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(eval, "# Lab 1") || !strings.Contains(eval, "# Output:\n1") {
		t.Errorf("eval = %q", eval)
	}
	short, _ := svc.EvaluationText(ctx, d.Path, 5)
	if len([]rune(short)) != 5 {
		t.Errorf("truncated = %q", short)
	}

	md, err := svc.Markdown(ctx, d.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(md, "# hw.ipynb") || !strings.Contains(md, "```python\nprint(1)\n```") {
		t.Errorf("markdown = %q", md)
	}
}

func TestDelete(t *testing.T) {
	rec := &recorder{}
	svc, _, db := testutil.TestService(t, "", rec)
	ctx := context.Background()
	d, _ := svc.Upload(ctx, "s", "a.py", []byte("x=1"))

	if err := svc.Delete(ctx, d.Path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.GetDocument(d.Path); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("still indexed: %v", err)
	}
	if err := svc.Delete(ctx, d.Path); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
	if _, ok := svc.Tracker().Current(d.Path); ok {
		t.Error("tracker still holds deleted document")
	}
	if rec.docs[len(rec.docs)-1] != "removed:s/a.py" {
		t.Errorf("events = %v", rec.docs)
	}
}

func TestListAndSearch(t *testing.T) {
	svc, _, _ := testutil.TestService(t, "", nil)
	ctx := context.Background()
	_, _ = svc.Upload(ctx, "s", "a.py", []byte("import numpy"))
	_, _ = svc.Upload(ctx, "s", "b.ipynb", []byte(notebook))

	items, total, err := svc.List(ctx, 10, 0, "notebook", "path")
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 || items[0].Path != "s/b.ipynb" {
		t.Errorf("items = %+v total = %d", items, total)
	}

	results, err := svc.Search(ctx, "zzznothing", 10)
	if err != nil {
		t.Fatal(err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("results = %#v", results)
	}
	results, _ = svc.Search(ctx, "numpy", 10)
	if len(results) != 1 || results[0].Path != "s/a.py" {
		t.Errorf("results = %+v", results)
	}
}

func TestGrade_Success(t *testing.T) {
	var got grading.GradeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","grading_result":{"success":true,"overall_score":87,"detailed_feedback":"nice"}}`))
	}))
	defer srv.Close()

	rec := &recorder{}
	svc, _, _ := testutil.TestService(t, srv.URL, rec)
	ctx := context.Background()
	d, _ := svc.Upload(ctx, "s", "hw.ipynb", []byte(notebook))

	res, err := svc.Grade(ctx, d.Path, "lab_1", grading.LabInfo{Title: "Lab"})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if res.OverallScore != 87 || !res.Success {
		t.Errorf("result = %+v", res)
	}
	if got.LabID != "lab_1" || got.FileName != "hw.ipynb" || len(got.CellsInfo) != 2 {
		t.Errorf("request = %+v", got)
	}

	subs, total, err := svc.Submissions(ctx, "lab_1", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || subs[0].OverallScore != 87 || subs[0].Feedback != "nice" {
		t.Errorf("subs = %+v", subs)
	}
	if len(rec.events) != 1 || rec.events[0].Type != sse.EventSubmissionGraded {
		t.Errorf("events = %+v", rec.events)
	}
}

func TestGrade_BackendFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"model overloaded"}`))
	}))
	defer srv.Close()

	svc, _, _ := testutil.TestService(t, srv.URL, nil)
	ctx := context.Background()
	d, _ := svc.Upload(ctx, "s", "a.py", []byte("x=1"))

	res, err := svc.Grade(ctx, d.Path, "lab_2", grading.LabInfo{})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if res.Success || res.DetailedFeedback != "model overloaded" {
		t.Errorf("result = %+v", res)
	}
	if len(res.AreasForImprovement) != 1 || res.AreasForImprovement[0] != "Unable to complete AI analysis" {
		t.Errorf("areas = %v", res.AreasForImprovement)
	}
	subs, _, _ := svc.Submissions(ctx, "", 10, 0)
	if len(subs) != 1 || subs[0].Success {
		t.Errorf("failed attempt not logged: %+v", subs)
	}
}

func TestGrade_MissingDocument(t *testing.T) {
	svc, _, _ := testutil.TestService(t, "", nil)
	if _, err := svc.Grade(context.Background(), "s/none.py", "lab", grading.LabInfo{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestEvaluateProject(t *testing.T) {
	var got grading.ProjectRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","result":{"success":true,"overall_score":70}}`))
	}))
	defer srv.Close()

	svc, _, _ := testutil.TestService(t, srv.URL, nil)
	ctx := context.Background()
	a, _ := svc.Upload(ctx, "p", "a.py", []byte("x=1"))
	b, _ := svc.Upload(ctx, "p", "b.ipynb", []byte(notebook))

	res, err := svc.EvaluateProject(ctx, grading.ProjectInfo{Title: "Proj"}, []string{a.Path, b.Path})
	if err != nil {
		t.Fatal(err)
	}
	if res.OverallScore != 70 {
		t.Errorf("result = %+v", res)
	}
	if len(got.FilesContent) != 2 || got.FilesContent[0].FileName != "a.py" {
		t.Errorf("files = %+v", got.FilesContent)
	}
	if got.ProjectInfo.TechStack == nil {
		t.Error("tech_stack should be sent as an empty list")
	}
}

func TestEvaluateProject_NotConfigured(t *testing.T) {
	svc, _, _ := testutil.TestService(t, "", nil)
	ctx := context.Background()
	a, _ := svc.Upload(ctx, "p", "a.py", []byte("x=1"))
	res, err := svc.EvaluateProject(ctx, grading.ProjectInfo{}, []string{a.Path})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Error == "" {
		t.Errorf("result = %+v", res)
	}
}
