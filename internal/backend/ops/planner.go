package ops

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"media-organizer/internal/backend/models"
	"media-organizer/internal/backend/store"
	"media-organizer/pkg/logging"
)

// Settings keys consulted by the planner.
const (
	SettingOutputRoot              = "output_root"
	SettingAudiobookFolderTemplate = "audiobook_folder_template"
	SettingAudiobookFileTemplate   = "audiobook_file_template"
)

// PlanRequest selects which approved items a plan should cover.
// With no explicit IDs and IncludeAllApproved set, every approved
// standalone file and group is planned.
type PlanRequest struct {
	Name               string   `json:"name,omitempty"`
	Description        string   `json:"description,omitempty"`
	FileIDs            []string `json:"file_ids,omitempty"`
	GroupIDs           []string `json:"group_ids,omitempty"`
	IncludeAllApproved bool     `json:"include_all_approved"`
}

// PlanBuild is a generated plan plus the issues found while building it.
type PlanBuild struct {
	Plan       *models.Plan `json:"plan"`
	Collisions []string     `json:"collisions,omitempty"`
	Duplicates []string     `json:"duplicates,omitempty"`
	Warnings   []string     `json:"warnings,omitempty"`
}

// HasIssues reports whether the build found collisions or duplicate targets.
func (b *PlanBuild) HasIssues() bool {
	return len(b.Collisions) > 0 || len(b.Duplicates) > 0
}

// Planner turns approved catalog entries into executable plans.
type Planner struct {
	store store.Store
	log   *logging.Logger
}

// NewPlanner creates a planner over the given store.
func NewPlanner(st store.Store, log *logging.Logger) *Planner {
	return &Planner{store: st, log: log}
}

// determineOperationType picks the cheapest safe relocation:
// same folder is a rename, same volume an atomic move, and anything
// crossing volumes a verified copy-then-delete.
func determineOperationType(sourcePath, targetPath string) models.OperationType {
	if filepath.Dir(sourcePath) == filepath.Dir(targetPath) {
		return models.OperationRename
	}
	if filepath.VolumeName(sourcePath) == filepath.VolumeName(targetPath) {
		return models.OperationMove
	}
	return models.OperationCopyDelete
}

// Generate builds a plan for the requested items without saving it.
func (p *Planner) Generate(req PlanRequest) (*PlanBuild, error) {
	build := &PlanBuild{
		Plan: &models.Plan{
			ID:          uuid.NewString(),
			Name:        req.Name,
			Description: req.Description,
			Status:      models.PlanStatusDraft,
		},
	}

	outputRoot, err := p.store.GetSetting(SettingOutputRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read output root: %w", err)
	}
	if outputRoot == "" {
		build.Warnings = append(build.Warnings, "No output root configured. Please set output folder in Settings.")
		return build, nil
	}
	audiobookRoot := filepath.Join(outputRoot, "Audiobooks")

	folderTemplate, err := p.settingOr(SettingAudiobookFolderTemplate, DefaultAudiobookFolderTemplate)
	if err != nil {
		return nil, err
	}
	fileTemplate, err := p.settingOr(SettingAudiobookFileTemplate, DefaultAudiobookFileTemplate)
	if err != nil {
		return nil, err
	}

	plannedTargets := make(map[string]bool)
	executionOrder := 0

	files, err := p.selectFiles(req)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		meta := PathMetadata{
			Title:       file.Title(),
			Author:      file.Author(),
			Narrator:    firstNonEmpty(file.FinalNarrator, file.ExtractedNarrator),
			Series:      firstNonEmpty(file.FinalSeries, file.ExtractedSeries),
			SeriesIndex: firstNonZeroF(file.FinalSeriesIndex, file.ExtractedSeriesIndex),
			Year:        firstNonZero(file.FinalYear, file.ExtractedYear),
			Extension:   filepath.Ext(file.FilePath),
		}

		op, err := p.buildOperation(meta, file.FilePath, file.FileHash, audiobookRoot,
			folderTemplate, fileTemplate, plannedTargets, build)
		if err != nil {
			return nil, err
		}
		op.MediaFileID = file.ID
		op.ExecutionOrder = executionOrder
		executionOrder++
		build.Plan.Operations = append(build.Plan.Operations, op)
	}

	groups, err := p.selectGroups(req)
	if err != nil {
		return nil, err
	}
	for _, group := range groups {
		groupFiles, err := p.store.GetGroupFiles(group.ID)
		if err != nil {
			return nil, err
		}
		totalParts := len(groupFiles)

		for partNum, file := range groupFiles {
			meta := PathMetadata{
				Title:       firstNonEmpty(group.FinalTitle, group.Title),
				Author:      firstNonEmpty(group.FinalAuthor, group.Author),
				Narrator:    firstNonEmpty(group.FinalNarrator, group.Narrator),
				Series:      firstNonEmpty(group.FinalSeries, group.Series),
				SeriesIndex: firstNonZeroF(group.FinalSeriesIndex, group.SeriesIndex),
				Year:        firstNonZero(group.FinalYear, group.Year),
				Extension:   filepath.Ext(file.FilePath),
			}
			if totalParts > 1 {
				meta.PartNumber = partNum + 1
				meta.TotalParts = totalParts
			}

			op, err := p.buildOperation(meta, file.FilePath, file.FileHash, audiobookRoot,
				folderTemplate, fileTemplate, plannedTargets, build)
			if err != nil {
				return nil, err
			}
			op.MediaFileID = file.ID
			op.GroupID = group.ID
			op.ExecutionOrder = executionOrder
			executionOrder++
			build.Plan.Operations = append(build.Plan.Operations, op)
		}
	}

	build.Plan.ItemCount = len(build.Plan.Operations)
	return build, nil
}

func (p *Planner) buildOperation(meta PathMetadata, sourcePath, fileHash, audiobookRoot,
	folderTemplate, fileTemplate string, plannedTargets map[string]bool, build *PlanBuild) (*models.PlannedOperation, error) {

	targetPath, err := GenerateAudiobookPaths(meta, audiobookRoot, folderTemplate, fileTemplate, plannedTargets)
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(targetPath); statErr == nil && targetPath != sourcePath {
		build.Collisions = append(build.Collisions, fmt.Sprintf("Target exists: %s", targetPath))
	}
	if plannedTargets[targetPath] {
		build.Duplicates = append(build.Duplicates, fmt.Sprintf("Duplicate target: %s", targetPath))
	}
	plannedTargets[targetPath] = true

	return &models.PlannedOperation{
		ID:         uuid.NewString(),
		Type:       determineOperationType(sourcePath, targetPath),
		SourcePath: sourcePath,
		TargetPath: targetPath,
		FileHash:   fileHash,
		Status:     models.OperationStatusPending,
	}, nil
}

// Save persists the plan as ready for execution.
func (p *Planner) Save(plan *models.Plan) error {
	plan.Status = models.PlanStatusReady
	for _, op := range plan.Operations {
		op.Status = models.OperationStatusPending
	}
	return p.store.CreatePlan(plan)
}

func (p *Planner) settingOr(key, fallback string) (string, error) {
	value, err := p.store.GetSetting(key)
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	if value == "" {
		return fallback, nil
	}
	return value, nil
}

// selectFiles returns the standalone files to plan.
func (p *Planner) selectFiles(req PlanRequest) ([]*models.MediaFile, error) {
	if len(req.FileIDs) > 0 {
		files := make([]*models.MediaFile, 0, len(req.FileIDs))
		for _, id := range req.FileIDs {
			file, err := p.store.GetMediaFile(id)
			if err != nil {
				return nil, err
			}
			files = append(files, file)
		}
		return files, nil
	}
	if !req.IncludeAllApproved {
		return nil, nil
	}

	var files []*models.MediaFile
	for page := 1; ; page++ {
		result, err := p.store.ListMediaFiles(store.FileFilter{
			Status:    models.FileStatusApproved,
			Ungrouped: true,
			Page:      page,
			PageSize:  500,
		})
		if err != nil {
			return nil, err
		}
		files = append(files, result.Items...)
		if !result.HasMore {
			return files, nil
		}
	}
}

// selectGroups returns the groups to plan.
func (p *Planner) selectGroups(req PlanRequest) ([]*models.AudiobookGroup, error) {
	if len(req.GroupIDs) > 0 {
		groups := make([]*models.AudiobookGroup, 0, len(req.GroupIDs))
		for _, id := range req.GroupIDs {
			group, err := p.store.GetGroup(id)
			if err != nil {
				return nil, err
			}
			groups = append(groups, group)
		}
		return groups, nil
	}
	if !req.IncludeAllApproved {
		return nil, nil
	}

	var groups []*models.AudiobookGroup
	for page := 1; ; page++ {
		result, err := p.store.ListGroups(store.GroupFilter{
			Status:   models.FileStatusApproved,
			Page:     page,
			PageSize: 500,
		})
		if err != nil {
			return nil, err
		}
		groups = append(groups, result.Items...)
		if !result.HasMore {
			return groups, nil
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonZeroF(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
