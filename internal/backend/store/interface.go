package store

import (
	"errors"
	"time"

	"media-organizer/internal/backend/models"
)

var (
	ErrScanNotFound      = errors.New("scan not found")
	ErrFileNotFound      = errors.New("media file not found")
	ErrGroupNotFound     = errors.New("audiobook group not found")
	ErrPlanNotFound      = errors.New("plan not found")
	ErrOperationNotFound = errors.New("planned operation not found")
	ErrCacheMiss         = errors.New("provider cache miss")
)

// FileFilter narrows ListMediaFiles results. Zero values mean "no filter".
type FileFilter struct {
	MediaType     models.MediaType
	Status        models.FileStatus
	ScanID        string
	GroupID       string
	Ungrouped     bool
	MinConfidence float64
	Search        string
	Page          int
	PageSize      int
}

// GroupFilter narrows ListGroups results.
type GroupFilter struct {
	Status   models.FileStatus
	ScanID   string
	Search   string
	Page     int
	PageSize int
}

// Page is a paginated result envelope.
type Page[T any] struct {
	Items    []T  `json:"items"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`
}

// Store defines the persistence interface for the organizer backend.
// SQLite is the production implementation; the memory store backs tests.
type Store interface {
	// Scan operations
	CreateScan(scan *models.Scan) error
	GetScan(id string) (*models.Scan, error)
	ListScans(limit int) ([]*models.Scan, error)
	UpdateScan(scan *models.Scan) error
	DeleteScan(id string) error

	// Media file operations
	UpsertMediaFile(file *models.MediaFile) error
	GetMediaFile(id string) (*models.MediaFile, error)
	GetMediaFileByPath(path string) (*models.MediaFile, error)
	ListMediaFiles(filter FileFilter) (*Page[*models.MediaFile], error)
	UpdateMediaFile(file *models.MediaFile) error
	SetFileStatus(id string, status models.FileStatus) error
	BulkSetFileStatus(ids []string, status models.FileStatus) (int, error)

	// Audiobook group operations
	UpsertGroup(group *models.AudiobookGroup) error
	GetGroup(id string) (*models.AudiobookGroup, error)
	ListGroups(filter GroupFilter) (*Page[*models.AudiobookGroup], error)
	UpdateGroup(group *models.AudiobookGroup) error
	SetGroupStatus(id string, status models.FileStatus) error
	GetGroupFiles(groupID string) ([]*models.MediaFile, error)

	// Plan operations
	CreatePlan(plan *models.Plan) error
	GetPlan(id string) (*models.Plan, error)
	ListPlans(limit int) ([]*models.Plan, error)
	UpdatePlanStatus(id string, status models.PlanStatus, errorMsg string, completedCount int) error
	DeletePlan(id string) error
	GetPlanOperations(planID string) ([]*models.PlannedOperation, error)
	UpdateOperationStatus(id string, status models.OperationStatus, errorMsg string) error

	// Settings (key/value)
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
	AllSettings() (map[string]string, error)

	// Provider response cache
	GetCachedResponse(provider, queryKey string) ([]byte, error)
	PutCachedResponse(provider, queryKey string, response []byte, ttl time.Duration) error

	// Audit log
	AppendAudit(entry *models.AuditEntry) error
	ListAudit(planID string) ([]*models.AuditEntry, error)

	// Aggregates
	GetDashboardStats() (*models.DashboardStats, error)

	// Lifecycle
	Close() error
	HealthCheck() error
	Vacuum() error
}
