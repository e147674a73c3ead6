package ipc

import (
	"fmt"
	"time"

	"ludex/internal/daemon"
	"ludex/internal/library"
	"ludex/internal/provider"
	"ludex/internal/search"
	"ludex/internal/sync"
	"ludex/internal/task"
)

// PathKey identifies one library path on the wire.
type PathKey struct {
	Library string `json:"library"`
	Dir     string `json:"dir"`
}

func (k PathKey) key() library.Key {
	return library.Key{Library: k.Library, Dir: k.Dir}
}

func fromKey(key library.Key) PathKey {
	return PathKey{Library: key.Library, Dir: key.Dir}
}

// SearchResultDTO mirrors one provider search hit.
type SearchResultDTO struct {
	ProviderGameID string   `json:"provider_game_id"`
	Name           string   `json:"name"`
	ReleaseDate    string   `json:"release_date"`
	CriticScore    *float64 `json:"critic_score,omitempty"`
	UserScore      *float64 `json:"user_score,omitempty"`
	ThumbnailURL   string   `json:"thumbnail_url,omitempty"`
}

func fromSearchResult(result provider.SearchResult) SearchResultDTO {
	return SearchResultDTO{
		ProviderGameID: result.ProviderGameID,
		Name:           result.Name,
		ReleaseDate:    result.ReleaseDate,
		CriticScore:    result.CriticScore,
		UserScore:      result.UserScore,
		ThumbnailURL:   result.ThumbnailURL,
	}
}

func (dto SearchResultDTO) result() provider.SearchResult {
	return provider.SearchResult{
		ProviderGameID: dto.ProviderGameID,
		Name:           dto.Name,
		ReleaseDate:    dto.ReleaseDate,
		CriticScore:    dto.CriticScore,
		UserScore:      dto.UserScore,
		ThumbnailURL:   dto.ThumbnailURL,
	}
}

// Choice kinds accepted on the wire. Preset choices are daemon-internal and
// never cross the socket.
const (
	ChoiceAccept    = "accept"
	ChoiceNewSearch = "new_search"
	ChoiceSkip      = "skip"
	ChoiceExclude   = "exclude"
	ChoiceCancel    = "cancel"
)

// ChoiceDTO is the tagged wire form of the choice union.
type ChoiceDTO struct {
	Kind   string           `json:"kind"`
	Result *SearchResultDTO `json:"result,omitempty"`
	Query  string           `json:"query,omitempty"`
}

func (dto ChoiceDTO) choice() (search.Choice, error) {
	switch dto.Kind {
	case ChoiceAccept:
		if dto.Result == nil {
			return nil, fmt.Errorf("accept choice requires a result")
		}
		return search.Accept{Result: dto.Result.result()}, nil
	case ChoiceNewSearch:
		return search.NewSearch{Query: dto.Query}, nil
	case ChoiceSkip:
		return search.Skip{}, nil
	case ChoiceExclude:
		return search.Exclude{}, nil
	case ChoiceCancel:
		return search.Cancel{}, nil
	}
	return nil, fmt.Errorf("unknown choice kind %q", dto.Kind)
}

func describeChoice(choice search.Choice) string {
	if choice == nil {
		return ""
	}
	return search.Describe(choice)
}

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/library status information.
type StatusResponse struct {
	Running        bool   `json:"running"`
	PID            int    `json:"pid"`
	DBPath         string `json:"db_path"`
	LockPath       string `json:"lock_path"`
	Paths          int    `json:"paths"`
	Games          int    `json:"games"`
	Excluded       int    `json:"excluded"`
	SyncRuns       int    `json:"sync_runs"`
	LastSyncAt     string `json:"last_sync_at,omitempty"`
	SchemaVersion  string `json:"schema_version"`
	IntegrityCheck bool   `json:"integrity_check"`
	SyncActive     bool   `json:"sync_active"`
}

// PathsListRequest lists registered paths.
type PathsListRequest struct{}

// PathDTO mirrors one registered library path.
type PathDTO struct {
	ID       int64  `json:"id"`
	Library  string `json:"library"`
	Platform string `json:"platform,omitempty"`
	Dir      string `json:"dir"`
	GameName string `json:"game_name,omitempty"`
}

// PathsListResponse contains registered paths.
type PathsListResponse struct {
	Paths []PathDTO `json:"paths"`
}

// PathsAddRequest registers a new path.
type PathsAddRequest struct {
	Library  string `json:"library"`
	Platform string `json:"platform,omitempty"`
	Dir      string `json:"dir"`
}

// PathsAddResponse returns the persisted path.
type PathsAddResponse struct {
	Path PathDTO `json:"path"`
}

// PathsRemoveRequest deletes a path and its game data.
type PathsRemoveRequest struct {
	Key PathKey `json:"key"`
}

// PathsRemoveResponse reports removal.
type PathsRemoveResponse struct {
	Removed bool `json:"removed"`
}

// SyncStartRequest begins a sync run.
type SyncStartRequest struct {
	Keys        []PathKey `json:"keys,omitempty"`
	Rescan      bool      `json:"rescan"`
	SmartChoose *bool     `json:"smart_choose,omitempty"`
}

// SyncStartResponse returns the run id.
type SyncStartResponse struct {
	RunID string `json:"run_id"`
	Total int    `json:"total"`
}

// SyncStateRequest fetches the run read model.
type SyncStateRequest struct{}

// SearchEntryDTO is one query attempt in a path's history.
type SearchEntryDTO struct {
	Provider           string            `json:"provider"`
	Query              string            `json:"query"`
	Offset             int               `json:"offset"`
	Searched           bool              `json:"searched"`
	Results            []SearchResultDTO `json:"results,omitempty"`
	CanShowMoreResults *bool             `json:"can_show_more_results,omitempty"`
	Choice             string            `json:"choice,omitempty"`
}

// PathStateDTO is the read model for one path in the run.
type PathStateDTO struct {
	Key             PathKey          `json:"key"`
	Status          string           `json:"status"`
	CurrentProvider string           `json:"current_provider,omitempty"`
	Progress        float64          `json:"progress"`
	Searches        []SearchEntryDTO `json:"searches,omitempty"`
}

// TaskDTO is the wire form of a task snapshot.
type TaskDTO struct {
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	Processed   int     `json:"processed"`
	Total       int     `json:"total"`
	Fraction    float64 `json:"fraction"`
	Cancellable bool    `json:"cancellable"`
}

// OutcomeDTO is the wire form of a finished task outcome.
type OutcomeDTO struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Elapsed string `json:"elapsed"`
}

// SyncStateResponse carries the whole run read model.
type SyncStateResponse struct {
	RunID       string         `json:"run_id"`
	Active      bool           `json:"active"`
	Processed   int            `json:"processed"`
	Total       int            `json:"total"`
	CurrentPath *PathKey       `json:"current_path,omitempty"`
	Paths       []PathStateDTO `json:"paths,omitempty"`
	Task        *TaskDTO       `json:"task,omitempty"`
	LastOutcome *OutcomeDTO    `json:"last_outcome,omitempty"`
}

func fromSnapshot(snap sync.Snapshot) SyncStateResponse {
	resp := SyncStateResponse{
		RunID:     snap.RunID,
		Active:    snap.Active,
		Processed: snap.Processed,
		Total:     snap.Total,
	}
	if snap.CurrentPath != nil {
		key := fromKey(*snap.CurrentPath)
		resp.CurrentPath = &key
	}
	for _, path := range snap.Paths {
		resp.Paths = append(resp.Paths, fromPathSnapshot(path))
	}
	if snap.Task != nil {
		resp.Task = fromTaskSnapshot(snap.Task)
	}
	if snap.LastOutcome != nil {
		resp.LastOutcome = &OutcomeDTO{
			Kind:    string(snap.LastOutcome.Kind),
			Message: snap.LastOutcome.Message,
			Elapsed: snap.LastOutcome.Elapsed.Round(time.Millisecond).String(),
		}
	}
	return resp
}

func fromPathSnapshot(path sync.PathSnapshot) PathStateDTO {
	dto := PathStateDTO{
		Key:             fromKey(path.Path.Key()),
		Status:          string(path.Status),
		CurrentProvider: string(path.CurrentProvider),
		Progress:        path.Progress,
	}
	for id, entries := range path.History {
		for _, entry := range entries {
			dto.Searches = append(dto.Searches, fromSearchEntry(id, entry))
		}
	}
	return dto
}

func fromSearchEntry(id provider.ID, entry search.ProviderSearch) SearchEntryDTO {
	dto := SearchEntryDTO{
		Provider:           string(id),
		Query:              entry.Query,
		Offset:             entry.Offset,
		Searched:           entry.Searched,
		CanShowMoreResults: entry.CanShowMoreResults,
		Choice:             describeChoice(entry.Choice),
	}
	for _, result := range entry.Results {
		dto.Results = append(dto.Results, fromSearchResult(result))
	}
	return dto
}

func fromTaskSnapshot(snap *task.Snapshot) *TaskDTO {
	return &TaskDTO{
		Title:       snap.Title,
		Message:     snap.Message,
		Processed:   snap.Processed,
		Total:       snap.Total,
		Fraction:    snap.Fraction,
		Cancellable: snap.Cancellable,
	}
}

// SubmitChoiceRequest applies a choice to the active sync path.
type SubmitChoiceRequest struct {
	Key      PathKey   `json:"key"`
	Provider string    `json:"provider"`
	Choice   ChoiceDTO `json:"choice"`
}

// SubmitChoiceResponse reports acceptance.
type SubmitChoiceResponse struct {
	Applied bool `json:"applied"`
}

// SearchMoreRequest issues a follow-up query for the pending provider.
type SearchMoreRequest struct {
	Key      PathKey `json:"key"`
	Provider string  `json:"provider"`
	Query    string  `json:"query"`
	Offset   int     `json:"offset"`
}

// SearchMoreResponse returns the page of results.
type SearchMoreResponse struct {
	Results            []SearchResultDTO `json:"results,omitempty"`
	CanShowMoreResults *bool             `json:"can_show_more_results,omitempty"`
}

// RestartRequest re-runs one terminal path.
type RestartRequest struct {
	Key PathKey `json:"key"`
}

// RestartResponse reports acceptance.
type RestartResponse struct {
	Restarted bool `json:"restarted"`
}

// CancelSyncRequest aborts the active run.
type CancelSyncRequest struct{}

// CancelSyncResponse reports whether a run was cancelled.
type CancelSyncResponse struct {
	Cancelled bool `json:"cancelled"`
}

// CancelTaskRequest cancels the engine's current task.
type CancelTaskRequest struct{}

// CancelTaskResponse reports whether a task was cancelled.
type CancelTaskResponse struct {
	Cancelled bool `json:"cancelled"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

func fromStatus(status daemon.Status) StatusResponse {
	resp := StatusResponse{
		Running:        status.Running,
		PID:            status.PID,
		DBPath:         status.DBPath,
		LockPath:       status.LockPath,
		Paths:          status.Stats.Paths,
		Games:          status.Stats.Games,
		Excluded:       status.Stats.Excluded,
		SyncRuns:       status.Stats.SyncRuns,
		SchemaVersion:  status.Health.SchemaVersion,
		IntegrityCheck: status.Health.IntegrityCheck,
		SyncActive:     status.Sync.Active,
	}
	if status.Stats.LastSyncAt != nil {
		resp.LastSyncAt = status.Stats.LastSyncAt.Format(time.RFC3339)
	}
	return resp
}
