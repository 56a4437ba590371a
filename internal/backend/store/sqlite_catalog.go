package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"media-organizer/internal/backend/models"
)

// Scan operations

func (s *SQLiteStore) CreateScan(scan *models.Scan) error {
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO scans (id, root_path, status, started_at, completed_at, files_found, groups_created, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, scan.ID, scan.RootPath, scan.Status, scan.StartedAt, scan.CompletedAt,
		scan.FilesFound, scan.GroupsCreated, scan.ErrorMessage, scan.CreatedAt)
	return err
}

func (s *SQLiteStore) GetScan(id string) (*models.Scan, error) {
	row := s.db.QueryRow(`
		SELECT id, root_path, status, started_at, completed_at, files_found, groups_created, error_message, created_at
		FROM scans WHERE id = ?
	`, id)
	scan, err := scanScanRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrScanNotFound
	}
	return scan, err
}

func (s *SQLiteStore) ListScans(limit int) ([]*models.Scan, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, root_path, status, started_at, completed_at, files_found, groups_created, error_message, created_at
		FROM scans ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scans := make([]*models.Scan, 0)
	for rows.Next() {
		scan, err := scanScanRow(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

func (s *SQLiteStore) UpdateScan(scan *models.Scan) error {
	res, err := s.db.Exec(`
		UPDATE scans SET status = ?, started_at = ?, completed_at = ?,
			files_found = ?, groups_created = ?, error_message = ?
		WHERE id = ?
	`, scan.Status, scan.StartedAt, scan.CompletedAt,
		scan.FilesFound, scan.GroupsCreated, scan.ErrorMessage, scan.ID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrScanNotFound)
}

// DeleteScan removes a scan and the files and groups it discovered.
func (s *SQLiteStore) DeleteScan(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM media_files WHERE scan_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM audiobook_groups WHERE scan_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrScanNotFound
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScanRow(row rowScanner) (*models.Scan, error) {
	var scan models.Scan
	var started, completed sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&scan.ID, &scan.RootPath, &scan.Status, &started, &completed,
		&scan.FilesFound, &scan.GroupsCreated, &errMsg, &scan.CreatedAt)
	if err != nil {
		return nil, err
	}
	if started.Valid {
		scan.StartedAt = &started.Time
	}
	if completed.Valid {
		scan.CompletedAt = &completed.Time
	}
	scan.ErrorMessage = errMsg.String
	return &scan, nil
}

// Media file operations

const mediaFileColumns = `id, scan_id, file_path, file_hash, file_size, media_type,
	group_id, is_group_primary, track_number,
	extracted_title, extracted_author, extracted_narrator, extracted_series, extracted_series_index, extracted_year,
	duration_seconds,
	final_title, final_author, final_narrator, final_series, final_series_index, final_year,
	status, confidence, provider_match_source, provider_match_id, created_at, updated_at`

// UpsertMediaFile inserts the file or, when the path is already cataloged,
// refreshes its extracted metadata while preserving review state.
func (s *SQLiteStore) UpsertMediaFile(file *models.MediaFile) error {
	now := time.Now().UTC()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO media_files (`+mediaFileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			scan_id = excluded.scan_id,
			file_hash = excluded.file_hash,
			file_size = excluded.file_size,
			media_type = excluded.media_type,
			group_id = excluded.group_id,
			is_group_primary = excluded.is_group_primary,
			track_number = excluded.track_number,
			extracted_title = excluded.extracted_title,
			extracted_author = excluded.extracted_author,
			extracted_narrator = excluded.extracted_narrator,
			extracted_series = excluded.extracted_series,
			extracted_series_index = excluded.extracted_series_index,
			extracted_year = excluded.extracted_year,
			duration_seconds = excluded.duration_seconds,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at
	`, file.ID, file.ScanID, file.FilePath, file.FileHash, file.FileSize, file.Type,
		file.GroupID, file.IsGroupPrimary, file.TrackNumber,
		file.ExtractedTitle, file.ExtractedAuthor, file.ExtractedNarrator,
		file.ExtractedSeries, file.ExtractedSeriesIndex, file.ExtractedYear,
		file.DurationSeconds,
		file.FinalTitle, file.FinalAuthor, file.FinalNarrator,
		file.FinalSeries, file.FinalSeriesIndex, file.FinalYear,
		file.Status, file.Confidence, file.ProviderMatchSource, file.ProviderMatchID,
		file.CreatedAt, file.UpdatedAt)
	return err
}

func (s *SQLiteStore) GetMediaFile(id string) (*models.MediaFile, error) {
	row := s.db.QueryRow(`SELECT `+mediaFileColumns+` FROM media_files WHERE id = ?`, id)
	file, err := scanFileRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrFileNotFound
	}
	return file, err
}

func (s *SQLiteStore) GetMediaFileByPath(path string) (*models.MediaFile, error) {
	row := s.db.QueryRow(`SELECT `+mediaFileColumns+` FROM media_files WHERE file_path = ?`, path)
	file, err := scanFileRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrFileNotFound
	}
	return file, err
}

func (s *SQLiteStore) ListMediaFiles(filter FileFilter) (*Page[*models.MediaFile], error) {
	where, args := buildFileWhere(filter)

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM media_files`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := `SELECT ` + mediaFileColumns + ` FROM media_files` + where +
		` ORDER BY is_group_primary DESC, file_path LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]*models.MediaFile, 0)
	for rows.Next() {
		file, err := scanFileRow(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Page[*models.MediaFile]{
		Items:    files,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  page*pageSize < total,
	}, nil
}

func buildFileWhere(filter FileFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if filter.MediaType != "" {
		clauses = append(clauses, "media_type = ?")
		args = append(args, filter.MediaType)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.ScanID != "" {
		clauses = append(clauses, "scan_id = ?")
		args = append(args, filter.ScanID)
	}
	if filter.GroupID != "" {
		clauses = append(clauses, "group_id = ?")
		args = append(args, filter.GroupID)
	}
	if filter.Ungrouped {
		clauses = append(clauses, "(group_id IS NULL OR group_id = '')")
	}
	if filter.MinConfidence > 0 {
		clauses = append(clauses, "confidence >= ?")
		args = append(args, filter.MinConfidence)
	}
	if filter.Search != "" {
		clauses = append(clauses, "(file_path LIKE ? OR extracted_title LIKE ? OR extracted_author LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 100
	}
	return page, pageSize
}

func (s *SQLiteStore) UpdateMediaFile(file *models.MediaFile) error {
	file.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE media_files SET
			final_title = ?, final_author = ?, final_narrator = ?,
			final_series = ?, final_series_index = ?, final_year = ?,
			status = ?, confidence = ?,
			provider_match_source = ?, provider_match_id = ?,
			group_id = ?, is_group_primary = ?, track_number = ?,
			file_hash = ?, file_path = ?, updated_at = ?
		WHERE id = ?
	`, file.FinalTitle, file.FinalAuthor, file.FinalNarrator,
		file.FinalSeries, file.FinalSeriesIndex, file.FinalYear,
		file.Status, file.Confidence,
		file.ProviderMatchSource, file.ProviderMatchID,
		file.GroupID, file.IsGroupPrimary, file.TrackNumber,
		file.FileHash, file.FilePath, file.UpdatedAt, file.ID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrFileNotFound)
}

func (s *SQLiteStore) SetFileStatus(id string, status models.FileStatus) error {
	res, err := s.db.Exec(`UPDATE media_files SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrFileNotFound)
}

func (s *SQLiteStore) BulkSetFileStatus(ids []string, status models.FileStatus) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, status, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := s.db.Exec(
		fmt.Sprintf(`UPDATE media_files SET status = ?, updated_at = ? WHERE id IN (%s)`, placeholders),
		args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanFileRow(row rowScanner) (*models.MediaFile, error) {
	var f models.MediaFile
	var scanID, hash, groupID sql.NullString
	var exTitle, exAuthor, exNarrator, exSeries sql.NullString
	var fiTitle, fiAuthor, fiNarrator, fiSeries sql.NullString
	var provSource, provID sql.NullString

	err := row.Scan(&f.ID, &scanID, &f.FilePath, &hash, &f.FileSize, &f.Type,
		&groupID, &f.IsGroupPrimary, &f.TrackNumber,
		&exTitle, &exAuthor, &exNarrator, &exSeries, &f.ExtractedSeriesIndex, &f.ExtractedYear,
		&f.DurationSeconds,
		&fiTitle, &fiAuthor, &fiNarrator, &fiSeries, &f.FinalSeriesIndex, &f.FinalYear,
		&f.Status, &f.Confidence, &provSource, &provID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}

	f.ScanID = scanID.String
	f.FileHash = hash.String
	f.GroupID = groupID.String
	f.ExtractedTitle = exTitle.String
	f.ExtractedAuthor = exAuthor.String
	f.ExtractedNarrator = exNarrator.String
	f.ExtractedSeries = exSeries.String
	f.FinalTitle = fiTitle.String
	f.FinalAuthor = fiAuthor.String
	f.FinalNarrator = fiNarrator.String
	f.FinalSeries = fiSeries.String
	f.ProviderMatchSource = provSource.String
	f.ProviderMatchID = provID.String
	return &f, nil
}

// Audiobook group operations

const groupColumns = `id, scan_id, folder_path, file_count, total_duration_seconds,
	title, author, narrator, series, series_index, year,
	final_title, final_author, final_narrator, final_series, final_series_index, final_year,
	status, confidence, provider_match_source, provider_match_id, created_at, updated_at`

// UpsertGroup inserts the group or refreshes scan-derived fields when the
// folder is already known, preserving review state.
func (s *SQLiteStore) UpsertGroup(group *models.AudiobookGroup) error {
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO audiobook_groups (`+groupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(folder_path) DO UPDATE SET
			scan_id = excluded.scan_id,
			file_count = excluded.file_count,
			total_duration_seconds = excluded.total_duration_seconds,
			title = excluded.title,
			author = excluded.author,
			narrator = excluded.narrator,
			series = excluded.series,
			series_index = excluded.series_index,
			year = excluded.year,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at
	`, group.ID, group.ScanID, group.FolderPath, group.FileCount, group.TotalDurationSeconds,
		group.Title, group.Author, group.Narrator, group.Series, group.SeriesIndex, group.Year,
		group.FinalTitle, group.FinalAuthor, group.FinalNarrator,
		group.FinalSeries, group.FinalSeriesIndex, group.FinalYear,
		group.Status, group.Confidence, group.ProviderMatchSource, group.ProviderMatchID,
		group.CreatedAt, group.UpdatedAt)
	return err
}

func (s *SQLiteStore) GetGroup(id string) (*models.AudiobookGroup, error) {
	row := s.db.QueryRow(`SELECT `+groupColumns+` FROM audiobook_groups WHERE id = ?`, id)
	group, err := scanGroupRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}

	files, err := s.GetGroupFiles(group.ID)
	if err != nil {
		return nil, err
	}
	group.Files = files
	return group, nil
}

func (s *SQLiteStore) ListGroups(filter GroupFilter) (*Page[*models.AudiobookGroup], error) {
	var clauses []string
	var args []interface{}

	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.ScanID != "" {
		clauses = append(clauses, "scan_id = ?")
		args = append(args, filter.ScanID)
	}
	if filter.Search != "" {
		clauses = append(clauses, "(folder_path LIKE ? OR title LIKE ? OR author LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM audiobook_groups`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.Query(`SELECT `+groupColumns+` FROM audiobook_groups`+where+
		` ORDER BY folder_path LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]*models.AudiobookGroup, 0)
	for rows.Next() {
		group, err := scanGroupRow(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Page[*models.AudiobookGroup]{
		Items:    groups,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  page*pageSize < total,
	}, nil
}

func (s *SQLiteStore) UpdateGroup(group *models.AudiobookGroup) error {
	group.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE audiobook_groups SET
			final_title = ?, final_author = ?, final_narrator = ?,
			final_series = ?, final_series_index = ?, final_year = ?,
			status = ?, confidence = ?,
			provider_match_source = ?, provider_match_id = ?,
			folder_path = ?, updated_at = ?
		WHERE id = ?
	`, group.FinalTitle, group.FinalAuthor, group.FinalNarrator,
		group.FinalSeries, group.FinalSeriesIndex, group.FinalYear,
		group.Status, group.Confidence,
		group.ProviderMatchSource, group.ProviderMatchID,
		group.FolderPath, group.UpdatedAt, group.ID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrGroupNotFound)
}

func (s *SQLiteStore) SetGroupStatus(id string, status models.FileStatus) error {
	res, err := s.db.Exec(`UPDATE audiobook_groups SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrGroupNotFound)
}

// GetGroupFiles returns a group's files in playback order.
func (s *SQLiteStore) GetGroupFiles(groupID string) ([]*models.MediaFile, error) {
	rows, err := s.db.Query(`SELECT `+mediaFileColumns+` FROM media_files
		WHERE group_id = ? ORDER BY track_number, file_path`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]*models.MediaFile, 0)
	for rows.Next() {
		file, err := scanFileRow(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func scanGroupRow(row rowScanner) (*models.AudiobookGroup, error) {
	var g models.AudiobookGroup
	var scanID sql.NullString
	var title, author, narrator, series sql.NullString
	var fiTitle, fiAuthor, fiNarrator, fiSeries sql.NullString
	var provSource, provID sql.NullString

	err := row.Scan(&g.ID, &scanID, &g.FolderPath, &g.FileCount, &g.TotalDurationSeconds,
		&title, &author, &narrator, &series, &g.SeriesIndex, &g.Year,
		&fiTitle, &fiAuthor, &fiNarrator, &fiSeries, &g.FinalSeriesIndex, &g.FinalYear,
		&g.Status, &g.Confidence, &provSource, &provID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}

	g.ScanID = scanID.String
	g.Title = title.String
	g.Author = author.String
	g.Narrator = narrator.String
	g.Series = series.String
	g.FinalTitle = fiTitle.String
	g.FinalAuthor = fiAuthor.String
	g.FinalNarrator = fiNarrator.String
	g.FinalSeries = fiSeries.String
	g.ProviderMatchSource = provSource.String
	g.ProviderMatchID = provID.String
	return &g, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
