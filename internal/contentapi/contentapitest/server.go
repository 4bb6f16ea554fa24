// Package contentapitest provides an in-memory content service speaking the same HTTP
// API as the real one, for use with net/http/httptest.
package contentapitest

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rowjay/content-restore/internal/contentapi"
)

// Operation names accepted by Server.Calls.
const (
	OpCreateFolder = "create_folder"
	OpGetFolder    = "get_folder"
	OpStartImport  = "start_import"
	OpImportStatus = "import_status"
)

type node struct {
	id       string
	name     string
	itemType string
	parentID string
	children []string
}

type job struct {
	parentID string
	name     string
	itemType string
	polls    int
	failed   bool
	done     bool
}

// Server is a fake content service. Configure it before serving requests.
type Server struct {
	// AccessID and AccessKey, when set, are required as basic auth on every request.
	AccessID  string
	AccessKey string
	// InProgressPolls is how many status polls report InProgress before a job ends.
	InProgressPolls int
	// FailImports names imported items whose job ends in Failed.
	FailImports map[string]bool
	// FailFolders maps folder names to the HTTP status returned when creating them.
	FailFolders map[string]int

	mu         sync.Mutex
	personalID string
	nodes      map[string]*node
	jobs       map[string]*job
	calls      map[string]int
	adminModes []string
	router     chi.Router
}

// NewServer returns a fake service holding only the caller's personal folder.
func NewServer() *Server {
	s := &Server{
		FailImports: map[string]bool{},
		FailFolders: map[string]int{},
		nodes:       map[string]*node{},
		jobs:        map[string]*job{},
		calls:       map[string]int{},
	}
	s.personalID = newID()
	s.nodes[s.personalID] = &node{id: s.personalID, name: "Personal", itemType: "Folder", parentID: "0000000000000000"}

	r := chi.NewRouter()
	r.Use(s.authenticate)
	r.Get("/legacy/api/v1/collectors", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/api/v1/collectors", http.StatusMovedPermanently)
	})
	r.Get("/api/v1/collectors", func(w http.ResponseWriter, _ *http.Request) {
		sendJSON(w, http.StatusOK, map[string]any{"collectors": []any{}})
	})
	r.Route("/api/v2/content/folders", func(folders chi.Router) {
		folders.Post("/", s.createFolder)
		folders.Get("/personal", s.getPersonal)
		folders.Get("/{id}", s.getFolder)
		folders.Post("/{id}/import", s.startImport)
		folders.Get("/{id}/import/{jobID}/status", s.importStatus)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// PersonalID returns the id of the personal folder.
func (s *Server) PersonalID() string {
	return s.personalID
}

// Calls returns how many times an operation was invoked.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// AdminModes returns the isAdminMode header of every import request, in order.
func (s *Server) AdminModes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.adminModes...)
}

// Paths returns every node below rootID as slash-joined names mapped to item types.
func (s *Server) Paths(rootID string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	var walk func(id, prefix string)
	walk = func(id, prefix string) {
		for _, childID := range s.nodes[id].children {
			child := s.nodes[childID]
			p := child.name
			if prefix != "" {
				p = prefix + "/" + child.name
			}
			out[p] = child.itemType
			walk(childID, p)
		}
	}
	if _, ok := s.nodes[rootID]; ok {
		walk(rootID, "")
	}
	return out
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AccessID != "" {
			id, key, ok := r.BasicAuth()
			if !ok || id != s.AccessID || key != s.AccessKey {
				sendError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getPersonal(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpGetFolder]++
	sendJSON(w, http.StatusOK, s.folderLocked(s.personalID))
}

func (s *Server) getFolder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpGetFolder]++
	id := chi.URLParam(r, "id")
	n, ok := s.nodes[id]
	if !ok || n.itemType != "Folder" {
		sendError(w, http.StatusNotFound, "folder not found")
		return
	}
	sendJSON(w, http.StatusOK, s.folderLocked(id))
}

func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		ParentID string `json:"parentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpCreateFolder]++
	if code, ok := s.FailFolders[req.Name]; ok {
		sendError(w, code, "folder creation rejected")
		return
	}
	parent, ok := s.nodes[req.ParentID]
	if !ok || parent.itemType != "Folder" {
		sendError(w, http.StatusNotFound, "parent not found")
		return
	}
	for _, childID := range parent.children {
		if s.nodes[childID].name == req.Name {
			sendError(w, http.StatusBadRequest, "duplicate name")
			return
		}
	}
	id := s.addLocked(req.Name, "Folder", req.ParentID)
	sendJSON(w, http.StatusOK, s.folderLocked(id))
}

func (s *Server) startImport(w http.ResponseWriter, r *http.Request) {
	var doc struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		sendError(w, http.StatusBadRequest, "invalid content document")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpStartImport]++
	s.adminModes = append(s.adminModes, r.Header.Get("isAdminMode"))
	parentID := chi.URLParam(r, "id")
	if _, ok := s.nodes[parentID]; !ok {
		sendError(w, http.StatusNotFound, "folder not found")
		return
	}
	itemType := strings.TrimSuffix(doc.Type, "SyncDefinition")
	if itemType == "" {
		itemType = "Content"
	}
	id := newID()
	s.jobs[id] = &job{parentID: parentID, name: doc.Name, itemType: itemType, failed: s.FailImports[doc.Name]}
	sendJSON(w, http.StatusOK, contentapi.ImportJob{ID: id})
}

func (s *Server) importStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpImportStatus]++
	j, ok := s.jobs[chi.URLParam(r, "jobID")]
	if !ok || j.parentID != chi.URLParam(r, "id") {
		sendError(w, http.StatusNotFound, "job not found")
		return
	}
	j.polls++
	if j.polls <= s.InProgressPolls {
		sendJSON(w, http.StatusOK, contentapi.ImportStatus{Status: contentapi.StatusInProgress})
		return
	}
	if j.failed {
		sendJSON(w, http.StatusOK, contentapi.ImportStatus{
			Status: contentapi.StatusFailed,
			Error:  &contentapi.JobError{Code: "content:import_failed", Message: "import rejected"},
		})
		return
	}
	if !j.done {
		j.done = true
		s.addLocked(j.name, j.itemType, j.parentID)
	}
	sendJSON(w, http.StatusOK, contentapi.ImportStatus{Status: contentapi.StatusSuccess})
}

func (s *Server) addLocked(name, itemType, parentID string) string {
	id := newID()
	s.nodes[id] = &node{id: id, name: name, itemType: itemType, parentID: parentID}
	parent := s.nodes[parentID]
	parent.children = append(parent.children, id)
	return id
}

func (s *Server) folderLocked(id string) contentapi.Folder {
	n := s.nodes[id]
	folder := contentapi.Folder{ID: n.id, Name: n.name, ItemType: n.itemType, ParentID: n.parentID, Children: []contentapi.Item{}}
	for _, childID := range n.children {
		child := s.nodes[childID]
		folder.Children = append(folder.Children, contentapi.Item{ID: child.id, Name: child.name, ItemType: child.itemType, ParentID: child.parentID})
	}
	return folder
}

func newID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}

func sendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, statusCode int, message string) {
	sendJSON(w, statusCode, map[string]string{"code": http.StatusText(statusCode), "message": message})
}
