package restore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rowjay/content-restore/internal/contentapi"
	"github.com/rowjay/content-restore/internal/storage"
)

type createCall struct {
	name     string
	parentID string
	id       string
}

type importCall struct {
	parentID string
	payload  string
	jobID    string
}

// fakeService records every call and serves a scripted sequence of job statuses.
type fakeService struct {
	creates     []createCall
	imports     []importCall
	statusCalls map[string]int
	// statuses is returned in order for each job; the last entry repeats.
	statuses   []string
	failCreate map[string]error
	failStart  error
	nextID     int
	folders    map[string]contentapi.Folder
}

func newFakeService() *fakeService {
	return &fakeService{
		statusCalls: map[string]int{},
		statuses:    []string{contentapi.StatusSuccess},
		failCreate:  map[string]error{},
		folders:     map[string]contentapi.Folder{},
	}
}

func (f *fakeService) id() string {
	f.nextID++
	return fmt.Sprintf("ID%04d", f.nextID)
}

func (f *fakeService) CreateFolder(_ context.Context, name, parentID string) (contentapi.Folder, error) {
	if err, ok := f.failCreate[name]; ok {
		return contentapi.Folder{}, err
	}
	id := f.id()
	f.creates = append(f.creates, createCall{name: name, parentID: parentID, id: id})
	return contentapi.Folder{ID: id, Name: name, ParentID: parentID}, nil
}

func (f *fakeService) GetFolder(_ context.Context, id string) (contentapi.Folder, error) {
	folder, ok := f.folders[id]
	if !ok {
		return contentapi.Folder{}, &contentapi.APIError{Method: "GET", Path: "/v2/content/folders/" + id, StatusCode: 404}
	}
	return folder, nil
}

func (f *fakeService) StartImport(_ context.Context, parentID string, payload json.RawMessage) (contentapi.ImportJob, error) {
	if f.failStart != nil {
		return contentapi.ImportJob{}, f.failStart
	}
	job := f.id()
	f.imports = append(f.imports, importCall{parentID: parentID, payload: string(payload), jobID: job})
	return contentapi.ImportJob{ID: job}, nil
}

func (f *fakeService) GetImportStatus(_ context.Context, _ string, jobID string) (contentapi.ImportStatus, error) {
	n := f.statusCalls[jobID]
	f.statusCalls[jobID]++
	if n >= len(f.statuses) {
		n = len(f.statuses) - 1
	}
	return contentapi.ImportStatus{Status: f.statuses[n]}, nil
}

func (f *fakeService) createdNames() []string {
	var names []string
	for _, c := range f.creates {
		names = append(names, c.name)
	}
	return names
}

// memPayloads serves documents keyed by backup path.
type memPayloads map[string]string

func (m memPayloads) Payload(_ context.Context, backupPath string) (json.RawMessage, error) {
	doc, ok := m[strings.Trim(backupPath, "/")]
	if !ok {
		return nil, fmt.Errorf("%w: content/%s.json", storage.ErrNotFound, backupPath)
	}
	return json.RawMessage(doc), nil
}
