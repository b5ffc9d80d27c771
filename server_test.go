package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func testConfig() Config {
	return Config{Addr: ":0", DefaultRows: 3, DefaultCols: 2, LogLevel: "info"}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer(testConfig(), NewStore(), nil)
	t.Cleanup(srv.Close)
	return srv
}

func seedWorkbook(t *testing.T, s *Server) *Workbook {
	t.Helper()
	wb, err := s.store.CreateWorkbook("test", 3, 2)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return wb
}

func post(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) WorkbookSnapshot {
	t.Helper()
	var snap WorkbookSnapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func TestSheetPageRoute(t *testing.T) {
	srv := newTestServer(t)
	wb := seedWorkbook(t, srv)

	w := get(srv, "/sheet/"+wb.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Fatalf("expected text/html, got %s", ct)
	}
	body := w.Body.String()
	for _, want := range []string{`id="grid"`, `<th>A</th>`, `placeholder="row 1 : col 1"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("page does not contain %q", want)
		}
	}

	if w := get(srv, "/sheet/nonexistent"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sheet, got %d", w.Code)
	}
}

func TestFullSheetFlow(t *testing.T) {
	srv := newTestServer(t)

	// Create with default size.
	w := post(t, srv, "/api/sheets", `{}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	snap := decodeSnapshot(t, w)
	if snap.ID == "" || snap.Sheet.Rows != 3 || snap.Sheet.Cols != 2 {
		t.Fatalf("unexpected sheet %+v", snap)
	}
	base := "/api/sheets/" + snap.ID

	// Select B1 and type a number.
	if w := post(t, srv, base+"/click", `{"row_index":1,"cell_index":2}`); w.Code != http.StatusNoContent {
		t.Fatalf("click: expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if w := post(t, srv, base+"/input", `{"value":"5"}`); w.Code != http.StatusNoContent {
		t.Fatalf("input: expected 204, got %d: %s", w.Code, w.Body.String())
	}

	// Select column B and insert before it.
	post(t, srv, base+"/click", `{"row_index":0,"cell_index":2}`)
	if w := post(t, srv, base+"/cols", ""); w.Code != http.StatusNoContent {
		t.Fatalf("add column: expected 204, got %d", w.Code)
	}
	if w := post(t, srv, base+"/rows", ""); w.Code != http.StatusNoContent {
		t.Fatalf("add row: expected 204, got %d", w.Code)
	}

	w = get(srv, base)
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	snap = decodeSnapshot(t, w)
	if snap.Sheet.Rows != 4 || snap.Sheet.Cols != 3 {
		t.Fatalf("expected 4x3, got %dx%d", snap.Sheet.Rows, snap.Sheet.Cols)
	}
	if v := snap.Sheet.Values[0][2]; v == nil || *v != "5" {
		t.Fatalf("expected 5 moved to column C, got %v", v)
	}
	if snap.Sheet.Sums[1] != nil {
		t.Fatal("inserted column should have no sum")
	}
	if v := snap.Sheet.Sums[2]; v == nil || *v != 5 {
		t.Fatalf("expected column C sum 5, got %v", v)
	}
	if snap.Selection != (Location{Row: HeaderRow, Col: 2}) {
		t.Fatalf("unexpected selection %v", snap.Selection)
	}

	// Listed.
	var list []WorkbookSnapshot
	json.NewDecoder(get(srv, "/api/sheets").Body).Decode(&list)
	if len(list) != 1 || list[0].ID != snap.ID {
		t.Fatalf("expected the sheet in the list, got %+v", list)
	}
}

func TestCreateSheetValidation(t *testing.T) {
	srv := newTestServer(t)

	if w := post(t, srv, "/api/sheets", `{"rows":0,"cols":3}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty sheet, got %d", w.Code)
	}
	if w := post(t, srv, "/api/sheets", `{"rows":`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
	w := post(t, srv, "/api/sheets", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for empty body, got %d", w.Code)
	}
	if snap := decodeSnapshot(t, w); snap.Sheet.Rows != 3 {
		t.Fatalf("expected default size, got %+v", snap.Sheet)
	}
}

func TestClickValidation(t *testing.T) {
	srv := newTestServer(t)
	wb := seedWorkbook(t, srv)
	base := "/api/sheets/" + wb.ID

	// Footer row.
	if w := post(t, srv, base+"/click", `{"row_index":4,"cell_index":1}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for footer click, got %d", w.Code)
	}
	if w := post(t, srv, base+"/click", `{"row_index":1}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing cell_index, got %d", w.Code)
	}
	if w := post(t, srv, "/api/sheets/nonexistent/click", `{"row_index":1,"cell_index":1}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sheet, got %d", w.Code)
	}
	if w := post(t, srv, "/api/sheets/nonexistent/input", `{"value":"1"}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sheet, got %d", w.Code)
	}
}

func TestImportExportRoutes(t *testing.T) {
	srv := newTestServer(t)
	wb := seedWorkbook(t, srv)
	base := "/api/sheets/" + wb.ID

	post(t, srv, base+"/input", `{"value":"4"}`)
	post(t, srv, base+"/click", `{"row_index":2,"cell_index":1}`)
	post(t, srv, base+"/input", `{"value":"6"}`)

	w := get(srv, base+"/export.xlsx")
	if w.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, wb.ID+".xlsx") {
		t.Fatalf("unexpected Content-Disposition %q", cd)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "numbers.xlsx")
	part.Write(w.Body.Bytes())
	mw.Close()

	req := httptest.NewRequest("POST", "/api/sheets/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("import: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	snap := decodeSnapshot(t, rec)
	if snap.Name != "numbers.xlsx" || snap.ID == wb.ID {
		t.Fatalf("unexpected imported sheet %q %q", snap.ID, snap.Name)
	}
	if v := snap.Sheet.Sums[0]; v == nil || *v != 10 {
		t.Fatalf("expected imported column A sum 10, got %v", v)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "bad.xlsx")
	part.Write([]byte("not a workbook"))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/sheets/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestScanWithoutGemini(t *testing.T) {
	srv := newTestServer(t)
	if w := post(t, srv, "/api/sheets/scan", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	w := get(srv, "/")

	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for key, expected := range headers {
		if got := w.Header().Get(key); got != expected {
			t.Errorf("header %s: expected %q, got %q", key, expected, got)
		}
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy header missing")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(3, time.Second)
	defer rl.Close()

	for i := range 3 {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Fatal("4th request should be rate limited")
	}
	if !rl.allow("5.6.7.8") {
		t.Fatal("different client should be allowed")
	}
}

func TestRateLimiterClose(t *testing.T) {
	rl := newRateLimiter(1, time.Second)
	rl.Close()
	rl.Close()

	select {
	case <-rl.done:
	case <-time.After(time.Second):
		t.Fatal("eviction goroutine still running after Close")
	}
	if !rl.allow("1.2.3.4") {
		t.Fatal("a closed limiter should still answer allow")
	}
}

func TestSheetSizeLimits(t *testing.T) {
	srv := newTestServer(t)

	if w := post(t, srv, "/api/sheets", `{"rows":1000000,"cols":100000}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a huge sheet, got %d", w.Code)
	}
	if n := len(srv.store.ListWorkbooks()); n != 0 {
		t.Fatalf("expected no sheet to be stored, got %d", n)
	}

	wb, err := srv.store.CreateWorkbook("wide", 1, maxCols)
	if err != nil {
		t.Fatalf("create at the limit: %v", err)
	}
	if w := post(t, srv, "/api/sheets/"+wb.ID+"/cols", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when adding past the column limit, got %d", w.Code)
	}
	if got := wb.Snapshot().Sheet.Cols; got != maxCols {
		t.Fatalf("expected %d columns, got %d", maxCols, got)
	}
}

func TestImportRejectsOversizedWorkbook(t *testing.T) {
	srv := newTestServer(t)

	f := excelize.NewFile()
	f.SetCellStr("Sheet1", "XFD1", "x")
	var data bytes.Buffer
	if err := f.Write(&data); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "huge.xlsx")
	part.Write(data.Bytes())
	mw.Close()

	req := httptest.NewRequest("POST", "/api/sheets/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "invalid sheet size") {
		t.Fatalf("expected a size error, got %s", w.Body.String())
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := clientKey(req); got != "10.0.0.1" {
		t.Fatalf("expected host only, got %q", got)
	}
	req.RemoteAddr = "pipe"
	if got := clientKey(req); got != "pipe" {
		t.Fatalf("expected raw address, got %q", got)
	}
}
