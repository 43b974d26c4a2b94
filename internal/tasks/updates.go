package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	CheckSession Phase = iota
	ExportSection
	SectionFailed
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case CheckSession:
		return "check_session"
	case ExportSection:
		return "export_section"
	case SectionFailed:
		return "section_failed"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

func checkingSessionUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckSession,
		Step:    1,
		Total:   1,
		Message: "Checking session...",
	}
}

func sectionExportedUpdate(step, total int, res ExportResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportSection,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Exported %s", res.Name),
		Data:    res,
	}
}

func sectionFailedUpdate(step, total int, res ExportResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SectionFailed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Failed to export %s: %s", res.Name, res.Error),
		Data:    res,
	}
}

func writingManifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing manifest %s", path),
	}
}
