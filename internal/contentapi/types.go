package contentapi

import "fmt"

// Import job states reported by the content service.
const (
	StatusInProgress = "InProgress"
	StatusSuccess    = "Success"
	StatusFailed     = "Failed"
)

// Item is a child entry returned when reading a folder.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ItemType string `json:"itemType"`
	ParentID string `json:"parentId"`
}

// Folder is the content service representation of a folder and its direct children.
type Folder struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ItemType    string `json:"itemType,omitempty"`
	ParentID    string `json:"parentId"`
	Children    []Item `json:"children"`
}

// ImportJob identifies an asynchronous import.
type ImportJob struct {
	ID string `json:"id"`
}

// JobError carries the service-side failure detail for a finished job.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportStatus is one poll result for an import job.
type ImportStatus struct {
	Status        string    `json:"status"`
	StatusMessage string    `json:"statusMessage,omitempty"`
	Error         *JobError `json:"error,omitempty"`
}

// InProgress reports whether the job has not reached a terminal state.
func (s ImportStatus) InProgress() bool {
	return s.Status == StatusInProgress
}

// Succeeded reports whether the job finished successfully.
func (s ImportStatus) Succeeded() bool {
	return s.Status == StatusSuccess
}

type createFolderRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    string `json:"parentId"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}
