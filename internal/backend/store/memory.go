package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"media-organizer/internal/backend/models"
)

// MemoryStore is an in-memory Store used by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	scans    map[string]*models.Scan
	files    map[string]*models.MediaFile
	groups   map[string]*models.AudiobookGroup
	plans    map[string]*models.Plan
	ops      map[string]*models.PlannedOperation
	settings map[string]string
	cache    map[string]cachedResponse
	audit    []*models.AuditEntry
	auditSeq int64
}

type cachedResponse struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scans:    make(map[string]*models.Scan),
		files:    make(map[string]*models.MediaFile),
		groups:   make(map[string]*models.AudiobookGroup),
		plans:    make(map[string]*models.Plan),
		ops:      make(map[string]*models.PlannedOperation),
		settings: make(map[string]string),
		cache:    make(map[string]cachedResponse),
	}
}

// Scan operations

func (s *MemoryStore) CreateScan(scan *models.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}
	s.scans[scan.ID] = scan
	return nil
}

func (s *MemoryStore) GetScan(id string) (*models.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scan, ok := s.scans[id]
	if !ok {
		return nil, ErrScanNotFound
	}
	return scan, nil
}

func (s *MemoryStore) ListScans(limit int) ([]*models.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	scans := make([]*models.Scan, 0, len(s.scans))
	for _, scan := range s.scans {
		scans = append(scans, scan)
	}
	sort.Slice(scans, func(i, j int) bool {
		return scans[i].CreatedAt.After(scans[j].CreatedAt)
	})
	if len(scans) > limit {
		scans = scans[:limit]
	}
	return scans, nil
}

func (s *MemoryStore) UpdateScan(scan *models.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scans[scan.ID]; !ok {
		return ErrScanNotFound
	}
	s.scans[scan.ID] = scan
	return nil
}

func (s *MemoryStore) DeleteScan(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scans[id]; !ok {
		return ErrScanNotFound
	}
	delete(s.scans, id)
	for fid, f := range s.files {
		if f.ScanID == id {
			delete(s.files, fid)
		}
	}
	for gid, g := range s.groups {
		if g.ScanID == id {
			delete(s.groups, gid)
		}
	}
	return nil
}

// Media file operations

func (s *MemoryStore) UpsertMediaFile(file *models.MediaFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, existing := range s.files {
		if existing.FilePath == file.FilePath {
			existing.ScanID = file.ScanID
			existing.FileHash = file.FileHash
			existing.FileSize = file.FileSize
			existing.Type = file.Type
			existing.GroupID = file.GroupID
			existing.IsGroupPrimary = file.IsGroupPrimary
			existing.TrackNumber = file.TrackNumber
			existing.ExtractedTitle = file.ExtractedTitle
			existing.ExtractedAuthor = file.ExtractedAuthor
			existing.ExtractedNarrator = file.ExtractedNarrator
			existing.ExtractedSeries = file.ExtractedSeries
			existing.ExtractedSeriesIndex = file.ExtractedSeriesIndex
			existing.ExtractedYear = file.ExtractedYear
			existing.DurationSeconds = file.DurationSeconds
			existing.Confidence = file.Confidence
			existing.UpdatedAt = now
			file.ID = existing.ID
			return nil
		}
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now
	s.files[file.ID] = file
	return nil
}

func (s *MemoryStore) GetMediaFile(id string) (*models.MediaFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	return file, nil
}

func (s *MemoryStore) GetMediaFileByPath(path string) (*models.MediaFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, file := range s.files {
		if file.FilePath == path {
			return file, nil
		}
	}
	return nil, ErrFileNotFound
}

func (s *MemoryStore) ListMediaFiles(filter FileFilter) (*Page[*models.MediaFile], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.MediaFile, 0)
	for _, file := range s.files {
		if fileMatches(file, filter) {
			matched = append(matched, file)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].IsGroupPrimary != matched[j].IsGroupPrimary {
			return matched[i].IsGroupPrimary
		}
		return matched[i].FilePath < matched[j].FilePath
	})

	return paginate(matched, filter.Page, filter.PageSize), nil
}

func fileMatches(file *models.MediaFile, filter FileFilter) bool {
	if filter.MediaType != "" && file.Type != filter.MediaType {
		return false
	}
	if filter.Status != "" && file.Status != filter.Status {
		return false
	}
	if filter.ScanID != "" && file.ScanID != filter.ScanID {
		return false
	}
	if filter.GroupID != "" && file.GroupID != filter.GroupID {
		return false
	}
	if filter.Ungrouped && file.GroupID != "" {
		return false
	}
	if filter.MinConfidence > 0 && file.Confidence < filter.MinConfidence {
		return false
	}
	if filter.Search != "" {
		q := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(file.FilePath), q) &&
			!strings.Contains(strings.ToLower(file.ExtractedTitle), q) &&
			!strings.Contains(strings.ToLower(file.ExtractedAuthor), q) {
			return false
		}
	}
	return true
}

func paginate[T any](items []T, page, pageSize int) *Page[T] {
	page, pageSize = normalizePage(page, pageSize)
	total := len(items)

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &Page[T]{
		Items:    items[start:end],
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  end < total,
	}
}

func (s *MemoryStore) UpdateMediaFile(file *models.MediaFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[file.ID]; !ok {
		return ErrFileNotFound
	}
	file.UpdatedAt = time.Now().UTC()
	s.files[file.ID] = file
	return nil
}

func (s *MemoryStore) SetFileStatus(id string, status models.FileStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[id]
	if !ok {
		return ErrFileNotFound
	}
	file.Status = status
	file.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) BulkSetFileStatus(ids []string, status models.FileStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	now := time.Now().UTC()
	for _, id := range ids {
		if file, ok := s.files[id]; ok {
			file.Status = status
			file.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

// Audiobook group operations

func (s *MemoryStore) UpsertGroup(group *models.AudiobookGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, existing := range s.groups {
		if existing.FolderPath == group.FolderPath {
			existing.ScanID = group.ScanID
			existing.FileCount = group.FileCount
			existing.TotalDurationSeconds = group.TotalDurationSeconds
			existing.Title = group.Title
			existing.Author = group.Author
			existing.Narrator = group.Narrator
			existing.Series = group.Series
			existing.SeriesIndex = group.SeriesIndex
			existing.Year = group.Year
			existing.Confidence = group.Confidence
			existing.UpdatedAt = now
			group.ID = existing.ID
			return nil
		}
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	s.groups[group.ID] = group
	return nil
}

func (s *MemoryStore) GetGroup(id string) (*models.AudiobookGroup, error) {
	s.mu.RLock()
	group, ok := s.groups[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrGroupNotFound
	}
	files, err := s.GetGroupFiles(id)
	if err != nil {
		return nil, err
	}
	group.Files = files
	return group, nil
}

func (s *MemoryStore) ListGroups(filter GroupFilter) (*Page[*models.AudiobookGroup], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.AudiobookGroup, 0)
	for _, group := range s.groups {
		if filter.Status != "" && group.Status != filter.Status {
			continue
		}
		if filter.ScanID != "" && group.ScanID != filter.ScanID {
			continue
		}
		if filter.Search != "" {
			q := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(group.FolderPath), q) &&
				!strings.Contains(strings.ToLower(group.Title), q) &&
				!strings.Contains(strings.ToLower(group.Author), q) {
				continue
			}
		}
		matched = append(matched, group)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].FolderPath < matched[j].FolderPath
	})

	return paginate(matched, filter.Page, filter.PageSize), nil
}

func (s *MemoryStore) UpdateGroup(group *models.AudiobookGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.ID]; !ok {
		return ErrGroupNotFound
	}
	group.UpdatedAt = time.Now().UTC()
	s.groups[group.ID] = group
	return nil
}

func (s *MemoryStore) SetGroupStatus(id string, status models.FileStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[id]
	if !ok {
		return ErrGroupNotFound
	}
	group.Status = status
	group.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) GetGroupFiles(groupID string) ([]*models.MediaFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make([]*models.MediaFile, 0)
	for _, file := range s.files {
		if file.GroupID == groupID {
			files = append(files, file)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].TrackNumber != files[j].TrackNumber {
			return files[i].TrackNumber < files[j].TrackNumber
		}
		return files[i].FilePath < files[j].FilePath
	})
	return files, nil
}

// Plan operations

func (s *MemoryStore) CreatePlan(plan *models.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	plan.ItemCount = len(plan.Operations)
	s.plans[plan.ID] = plan
	for _, op := range plan.Operations {
		op.PlanID = plan.ID
		s.ops[op.ID] = op
	}
	return nil
}

func (s *MemoryStore) GetPlan(id string) (*models.Plan, error) {
	s.mu.RLock()
	plan, ok := s.plans[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrPlanNotFound
	}
	ops, err := s.GetPlanOperations(id)
	if err != nil {
		return nil, err
	}
	plan.Operations = ops
	return plan, nil
}

func (s *MemoryStore) ListPlans(limit int) ([]*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	plans := make([]*models.Plan, 0, len(s.plans))
	for _, plan := range s.plans {
		plans = append(plans, plan)
	}
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].CreatedAt.After(plans[j].CreatedAt)
	})
	if len(plans) > limit {
		plans = plans[:limit]
	}
	return plans, nil
}

func (s *MemoryStore) UpdatePlanStatus(id string, status models.PlanStatus, errorMsg string, completedCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return ErrPlanNotFound
	}
	now := time.Now().UTC()
	plan.Status = status
	plan.ErrorMessage = errorMsg
	plan.CompletedCount = completedCount
	switch status {
	case models.PlanStatusCompleted, models.PlanStatusFailed:
		plan.AppliedAt = &now
	case models.PlanStatusRolledBack:
		plan.RolledBackAt = &now
	}
	return nil
}

func (s *MemoryStore) DeletePlan(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return ErrPlanNotFound
	}
	delete(s.plans, id)
	for opID, op := range s.ops {
		if op.PlanID == id {
			delete(s.ops, opID)
		}
	}
	return nil
}

func (s *MemoryStore) GetPlanOperations(planID string) ([]*models.PlannedOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ops := make([]*models.PlannedOperation, 0)
	for _, op := range s.ops {
		if op.PlanID == planID {
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].ExecutionOrder < ops[j].ExecutionOrder
	})
	return ops, nil
}

func (s *MemoryStore) UpdateOperationStatus(id string, status models.OperationStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[id]
	if !ok {
		return ErrOperationNotFound
	}
	op.Status = status
	op.ErrorMessage = errorMsg
	if status == models.OperationStatusCompleted || status == models.OperationStatusFailed {
		now := time.Now().UTC()
		op.ExecutedAt = &now
	}
	return nil
}

// Settings

func (s *MemoryStore) GetSetting(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[key], nil
}

func (s *MemoryStore) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *MemoryStore) AllSettings() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

// Provider cache

func (s *MemoryStore) GetCachedResponse(provider, queryKey string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[provider+"\x00"+queryKey]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrCacheMiss
	}
	return entry.data, nil
}

func (s *MemoryStore) PutCachedResponse(provider, queryKey string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[provider+"\x00"+queryKey] = cachedResponse{
		data:      response,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Audit log

func (s *MemoryStore) AppendAudit(entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditSeq++
	entry.ID = s.auditSeq
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.audit = append(s.audit, entry)
	return nil
}

func (s *MemoryStore) ListAudit(planID string) ([]*models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]*models.AuditEntry, 0)
	for _, entry := range s.audit {
		if entry.PlanID == planID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Aggregates

func (s *MemoryStore) GetDashboardStats() (*models.DashboardStats, error) {
	s.mu.RLock()
	stats := &models.DashboardStats{
		TotalFiles:  len(s.files),
		TotalGroups: len(s.groups),
	}
	var durationSec, sizeBytes int64
	for _, file := range s.files {
		switch file.Status {
		case models.FileStatusPending:
			stats.PendingCount++
		case models.FileStatusReviewed:
			stats.ReviewedCount++
		case models.FileStatusApproved:
			stats.ApprovedCount++
		case models.FileStatusApplied:
			stats.AppliedCount++
		}
		durationSec += int64(file.DurationSeconds)
		sizeBytes += file.FileSize
	}
	s.mu.RUnlock()

	stats.TotalDurationHours = float64(durationSec) / 3600.0
	stats.TotalSizeGB = float64(sizeBytes) / (1024 * 1024 * 1024)

	scans, _ := s.ListScans(5)
	plans, _ := s.ListPlans(5)
	stats.RecentScans = scans
	stats.RecentPlans = plans
	return stats, nil
}

// Lifecycle

func (s *MemoryStore) Close() error       { return nil }
func (s *MemoryStore) HealthCheck() error { return nil }
func (s *MemoryStore) Vacuum() error      { return nil }
