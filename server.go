package main

import (
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

//go:embed frontend
var frontendFS embed.FS

const maxUploadSize = 10 << 20 // 10 MB

var allowedImageMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Server is the HTTP front end of the sheet store.
type Server struct {
	mux      *http.ServeMux
	cfg      Config
	store    *Store
	gemini   *GeminiClient
	events   *Broadcaster
	uploadRL *rateLimiter
	inputRL  *rateLimiter
}

// NewServer creates a configured HTTP server. gemini may be nil, which
// disables image scanning.
func NewServer(cfg Config, store *Store, gemini *GeminiClient) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		cfg:      cfg,
		store:    store,
		gemini:   gemini,
		events:   NewBroadcaster(),
		uploadRL: newRateLimiter(5, time.Minute),  // 5 uploads/min per client
		inputRL:  newRateLimiter(60, time.Second), // 60 keystrokes/sec per client
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Sheet API
	s.mux.HandleFunc("POST /api/sheets", s.handleCreateSheet)
	s.mux.HandleFunc("GET /api/sheets", s.handleListSheets)
	s.mux.HandleFunc("POST /api/sheets/import", s.handleImportSheet)
	s.mux.HandleFunc("POST /api/sheets/scan", s.handleScanSheet)
	s.mux.HandleFunc("GET /api/sheets/{id}", s.handleGetSheet)
	s.mux.HandleFunc("GET /api/sheets/{id}/export.xlsx", s.handleExportSheet)

	// UI events
	s.mux.HandleFunc("POST /api/sheets/{id}/click", s.handleClick)
	s.mux.HandleFunc("POST /api/sheets/{id}/input", s.handleInput)
	s.mux.HandleFunc("POST /api/sheets/{id}/rows", s.handleAddRow)
	s.mux.HandleFunc("POST /api/sheets/{id}/cols", s.handleAddColumn)
	s.mux.HandleFunc("GET /api/sheets/{id}/events", s.handleSheetEvents)
	s.mux.HandleFunc("GET /api/sheets/{id}/ws", s.handleSheetSocket)

	// Pages
	frontendDir, _ := fs.Sub(frontendFS, "frontend")
	s.mux.HandleFunc("GET /sheet/{id}", s.handleSheetPage)
	s.mux.Handle("GET /", http.FileServer(http.FS(frontendDir)))
}

// Close stops the server's background goroutines.
func (s *Server) Close() {
	s.uploadRL.Close()
	s.inputRL.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
	log.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path, "remote": r.RemoteAddr}).Debug("request")
	s.mux.ServeHTTP(w, r)
}

// --- Sheet handlers ---

// POST /api/sheets — create an empty sheet.
func (s *Server) handleCreateSheet(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Name string `json:"name"`
		Rows int    `json:"rows"`
		Cols int    `json:"cols"`
	}{Rows: s.cfg.DefaultRows, Cols: s.cfg.DefaultCols}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	wb, err := s.store.CreateWorkbook(req.Name, req.Rows, req.Cols)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	log.WithFields(log.Fields{"sheet": wb.ID, "rows": req.Rows, "cols": req.Cols}).Info("sheet created")
	writeJSON(w, http.StatusCreated, wb.Snapshot())
}

// GET /api/sheets — list all sheets.
func (s *Server) handleListSheets(w http.ResponseWriter, _ *http.Request) {
	list := s.store.ListWorkbooks()
	out := make([]WorkbookSnapshot, 0, len(list))
	for _, wb := range list {
		out = append(out, wb.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/sheets/{id} — sheet values, sums and selection.
func (s *Server) handleGetSheet(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbook(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wb.Snapshot())
}

// POST /api/sheets/import — create a sheet from an uploaded .xlsx file.
func (s *Server) handleImportSheet(w http.ResponseWriter, r *http.Request) {
	if !s.uploadRL.allow(clientKey(r)) {
		jsonError(w, "too many requests, try again later", http.StatusTooManyRequests)
		return
	}
	file, header, ok := formFile(w, r, "file")
	if !ok {
		return
	}
	defer file.Close()

	sheet, err := ReadXLSX(file)
	if err != nil {
		log.WithError(err).Warn("xlsx import failed")
		msg := "could not read workbook"
		if errors.Is(err, ErrInvalidSize) {
			msg = err.Error()
		}
		jsonError(w, msg, http.StatusBadRequest)
		return
	}
	wb := s.store.AddSheet(header.Filename, sheet)
	log.WithField("sheet", wb.ID).Info("sheet imported")
	writeJSON(w, http.StatusCreated, wb.Snapshot())
}

// POST /api/sheets/scan — create a sheet from a photo of a table.
func (s *Server) handleScanSheet(w http.ResponseWriter, r *http.Request) {
	if !s.uploadRL.allow(clientKey(r)) {
		jsonError(w, "too many requests, try again later", http.StatusTooManyRequests)
		return
	}
	if s.gemini == nil {
		jsonError(w, "image scanning is not configured", http.StatusServiceUnavailable)
		return
	}
	file, header, ok := formFile(w, r, "image")
	if !ok {
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !allowedImageMIME[mimeType] {
		jsonError(w, "accepted formats: JPEG or PNG", http.StatusBadRequest)
		return
	}
	imageData, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, "could not read image", http.StatusInternalServerError)
		return
	}

	sheet, err := s.gemini.ScanTable(r.Context(), imageData, mimeType)
	if err != nil {
		log.WithError(err).Error("gemini scan failed")
		jsonError(w, "could not extract a table from the image", http.StatusInternalServerError)
		return
	}
	wb := s.store.AddSheet(header.Filename, sheet)
	log.WithField("sheet", wb.ID).Info("sheet scanned")
	writeJSON(w, http.StatusCreated, wb.Snapshot())
}

// GET /api/sheets/{id}/export.xlsx — download the sheet.
func (s *Server) handleExportSheet(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbook(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+wb.ID+`.xlsx"`)
	err := wb.withSheet(func(sheet *Sheet) error { return WriteXLSX(w, sheet) })
	if err != nil {
		log.WithError(err).WithField("sheet", wb.ID).Error("xlsx export failed")
	}
}

// --- UI event handlers ---

// POST /api/sheets/{id}/click — select the clicked cell.
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbook(w, r)
	if !ok {
		return
	}
	var req struct {
		RowIndex  *int `json:"row_index"`
		CellIndex *int `json:"cell_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RowIndex == nil || req.CellIndex == nil {
		jsonError(w, "fields 'row_index' and 'cell_index' are required", http.StatusBadRequest)
		return
	}
	s.dispatch(w, wb, func() (RenderEvent, error) { return wb.Click(*req.RowIndex, *req.CellIndex) })
}

// POST /api/sheets/{id}/input — formula bar keystroke.
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	if !s.inputRL.allow(clientKey(r)) {
		jsonError(w, "too many requests, try again later", http.StatusTooManyRequests)
		return
	}
	wb, ok := s.workbook(w, r)
	if !ok {
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.dispatch(w, wb, func() (RenderEvent, error) { return wb.Input(req.Value) })
}

// POST /api/sheets/{id}/rows — insert a row at the selection.
func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbook(w, r)
	if !ok {
		return
	}
	s.dispatch(w, wb, wb.AddRow)
}

// POST /api/sheets/{id}/cols — insert a column at the selection.
func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbook(w, r)
	if !ok {
		return
	}
	s.dispatch(w, wb, wb.AddColumn)
}

// GET /api/sheets/{id}/events — SSE stream of render events.
func (s *Server) handleSheetEvents(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbook(w, r)
	if !ok {
		return
	}
	initial, err := wb.Current()
	if err != nil {
		jsonError(w, "render failed", http.StatusInternalServerError)
		return
	}
	s.events.ServeSSE(w, r, wb.ID, marshalEvent(initial))
}

// dispatch runs one UI event and pushes the result to every client of the sheet.
func (s *Server) dispatch(w http.ResponseWriter, wb *Workbook, apply func() (RenderEvent, error)) {
	evt, err := apply()
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	s.events.Broadcast(wb.ID, marshalEvent(evt))
	w.WriteHeader(http.StatusNoContent)
}

// --- Pages ---

// GET /sheet/{id} — the grid page.
func (s *Server) handleSheetPage(w http.ResponseWriter, r *http.Request) {
	wb, err := s.store.GetWorkbook(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := wb.WritePage(w); err != nil {
		log.WithError(err).WithField("sheet", wb.ID).Error("page render failed")
	}
}

// --- Helpers ---

func (s *Server) workbook(w http.ResponseWriter, r *http.Request) (*Workbook, bool) {
	wb, err := s.store.GetWorkbook(r.PathValue("id"))
	if err != nil {
		jsonError(w, "sheet not found", http.StatusNotFound)
		return nil, false
	}
	return wb, true
}

func formFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		jsonError(w, "upload too large (max 10 MB)", http.StatusRequestEntityTooLarge)
		return nil, nil, false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		jsonError(w, "field '"+field+"' is required", http.StatusBadRequest)
		return nil, nil, false
	}
	return file, header, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSheetNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOutOfRange), errors.Is(err, ErrInvalidSize):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func marshalEvent(evt any) string {
	b, err := json.Marshal(evt)
	if err != nil {
		log.WithError(err).Error("marshal event")
		return ""
	}
	return string(b)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
