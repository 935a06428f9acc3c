package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"orderpad/internal/form"
	"orderpad/internal/response"
)

// handleAPI dispatches /api/v1/ requests. Path segments after the prefix
// drive a single switch, e.g. sessions/{id}/lines/{lineID}.
func (a *App) handleAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case parts[0] == "products" && len(parts) == 1 && r.Method == "GET":
		a.handleListProducts(w, r)

	case parts[0] == "sessions" && len(parts) == 1 && r.Method == "POST":
		a.handleCreateSession(w, r)
	case parts[0] == "sessions" && len(parts) == 2 && r.Method == "GET":
		a.withSession(w, parts[1], a.handleGetSession(r))
	case parts[0] == "sessions" && len(parts) == 2 && r.Method == "DELETE":
		a.handleCloseSession(w, parts[1])
	case parts[0] == "sessions" && len(parts) == 3 && parts[2] == "header" && r.Method == "PATCH":
		a.withSession(w, parts[1], a.handleUpdateHeader(r))
	case parts[0] == "sessions" && len(parts) == 3 && parts[2] == "lines" && r.Method == "POST":
		a.withSession(w, parts[1], a.handleAddLines(r))
	case parts[0] == "sessions" && len(parts) == 4 && parts[2] == "lines" && r.Method == "PATCH":
		a.withSession(w, parts[1], a.handleUpdateField(r, parts[3]))
	case parts[0] == "sessions" && len(parts) == 4 && parts[2] == "lines" && r.Method == "DELETE":
		a.withSession(w, parts[1], a.handleRemoveLine(parts[3]))
	case parts[0] == "sessions" && len(parts) == 5 && parts[2] == "lines" && parts[4] == "clear" && r.Method == "POST":
		a.withSession(w, parts[1], a.handleClearLine(parts[3]))
	case parts[0] == "sessions" && len(parts) == 5 && parts[2] == "lines" && parts[4] == "candidates" && r.Method == "GET":
		a.withSession(w, parts[1], a.handleCandidates(r, parts[3]))
	case parts[0] == "sessions" && len(parts) == 3 && parts[2] == "scan" && r.Method == "POST":
		a.withSession(w, parts[1], a.handleScanRequest(r))
	case parts[0] == "sessions" && len(parts) == 3 && parts[2] == "import" && r.Method == "POST":
		a.withSession(w, parts[1], a.handleImport(r))
	case parts[0] == "sessions" && len(parts) == 3 && parts[2] == "submit" && r.Method == "POST":
		a.withSession(w, parts[1], a.handleSubmit(r))

	default:
		response.Err(w, "not found", http.StatusNotFound)
	}
}

// sessionHandler runs one operation against a resolved session.
type sessionHandler func(w http.ResponseWriter, s *form.Session)

func (a *App) withSession(w http.ResponseWriter, id string, fn sessionHandler) {
	s := a.session(id)
	if s == nil {
		response.Err(w, "session not found", http.StatusNotFound)
		return
	}
	fn(w, s)
}

// errStatus maps engine sentinels to HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, form.ErrLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, form.ErrDuplicateProduct):
		return http.StatusConflict
	case errors.Is(err, form.ErrLastLine),
		errors.Is(err, form.ErrLockedLine),
		errors.Is(err, form.ErrUnknownField),
		errors.Is(err, form.ErrNotInCatalog),
		errors.Is(err, form.ErrBadCount):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (a *App) handleListProducts(w http.ResponseWriter, r *http.Request) {
	scope := form.Scope{
		BusinessUnitID: r.URL.Query().Get("business_unit_id"),
		LocationID:     r.URL.Query().Get("location_id"),
	}
	products, err := a.Store.ListProducts(r.Context(), scope)
	if err != nil {
		response.Err(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if products == nil {
		products = []form.ProductSnapshot{}
	}
	response.JSON(w, products)
}

func (a *App) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type form.DocType `json:"type"`
	}
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	valid := false
	for _, t := range form.ValidDocTypes {
		if req.Type == t {
			valid = true
			break
		}
	}
	if !valid {
		response.Err(w, "unknown document type", http.StatusBadRequest)
		return
	}
	s := a.newSession(req.Type)
	response.JSON(w, s.Snapshot())
}

func (a *App) handleGetSession(_ *http.Request) sessionHandler {
	return func(w http.ResponseWriter, s *form.Session) {
		response.JSON(w, s.Snapshot())
	}
}

func (a *App) handleCloseSession(w http.ResponseWriter, id string) {
	if !a.dropSession(id) {
		response.Err(w, "session not found", http.StatusNotFound)
		return
	}
	response.JSON(w, map[string]string{"closed": id})
}

func (a *App) handleUpdateHeader(r *http.Request) sessionHandler {
	return func(w http.ResponseWriter, s *form.Session) {
		var req struct {
			Field form.HeaderField `json:"field"`
			Value string           `json:"value"`
		}
		if err := response.DecodeBody(r, &req); err != nil {
			response.Err(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := s.UpdateHeader(req.Field, req.Value); err != nil {
			response.Err(w, err.Error(), errStatus(err))
			return
		}
		response.JSON(w, s.Snapshot())
	}
}

func (a *App) handleAddLines(r *http.Request) sessionHandler {
	return func(w http.ResponseWriter, s *form.Session) {
		var req struct {
			Count int `json:"count"`
		}
		// Empty body means one line.
		if err := response.DecodeBody(r, &req); err != nil && err != io.EOF {
			response.Err(w, "invalid body", http.StatusBadRequest)
			return
		}
		if req.Count == 0 {
			req.Count = 1
		}
		if err := s.AddLines(req.Count); err != nil {
			response.Err(w, err.Error(), errStatus(err))
			return
		}
		response.JSON(w, s.Snapshot())
	}
}

func (a *App) handleUpdateField(r *http.Request, lineID string) sessionHandler {
	return func(w http.ResponseWriter, s *form.Session) {
		var req struct {
			Field form.Field `json:"field"`
			Value string     `json:"value"`
		}
		if err := response.DecodeBody(r, &req); err != nil {
			response.Err(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := s.UpdateField(r.Context(), lineID, req.Field, req.Value); err != nil {
			response.Err(w, err.Error(), errStatus(err))
			return
		}
		response.JSON(w, s.Snapshot())
	}
}

func (a *App) handleRemoveLine(lineID string) sessionHandler {
	return func(w http.ResponseWriter, s *form.Session) {
		if err := s.RemoveLine(lineID); err != nil {
			response.Err(w, err.Error(), errStatus(err))
			return
		}
		response.JSON(w, s.Snapshot())
	}
}

func (a *App) handleClearLine(lineID string) sessionHandler {
	return func(w http.ResponseWriter, s *form.Session) {
		if err := s.ClearLine(lineID); err != nil {
			response.Err(w, err.Error(), errStatus(err))
			return
		}
		response.JSON(w, s.Snapshot())
	}
}

func (a *App) handleCandidates(r *http.Request, lineID string) sessionHandler {
	return func(w http.ResponseWriter, s *form.Session) {
		products, err := s.CandidateProductsFor(r.Context(), lineID)
		if err != nil {
			response.Err(w, err.Error(), errStatus(err))
			return
		}
		if products == nil {
			products = []form.ProductSnapshot{}
		}
		response.JSON(w, products)
	}
}

func (a *App) handleScanRequest(r *http.Request) sessionHandler {
	return func(w http.ResponseWriter, s *form.Session) {
		var req struct {
			Code string `json:"code"`
		}
		if err := response.DecodeBody(r, &req); err != nil {
			response.Err(w, "invalid body", http.StatusBadRequest)
			return
		}
		response.JSON(w, s.Scan(r.Context(), req.Code))
	}
}

// handleImport accepts an xlsx upload as multipart form data under "file"
// and runs each row through the scan path.
func (a *App) handleImport(r *http.Request) sessionHandler {
	return func(w http.ResponseWriter, s *form.Session) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			response.Err(w, "invalid multipart body", http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			response.Err(w, "file field required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		sum, err := s.ImportLines(r.Context(), file)
		if err != nil {
			response.Err(w, err.Error(), http.StatusBadRequest)
			return
		}
		response.JSON(w, sum)
	}
}

func (a *App) handleSubmit(r *http.Request) sessionHandler {
	return func(w http.ResponseWriter, s *form.Session) {
		res, err := s.Submit(r.Context())
		if err != nil {
			response.Err(w, err.Error(), http.StatusBadGateway)
			return
		}
		response.JSON(w, res)
	}
}
