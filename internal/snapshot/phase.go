package snapshot

import "strings"

// Phase is the server-reported lifecycle stage.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseUploading   Phase = "uploading"
	PhaseDownloading Phase = "downloading"
	PhaseUploaded    Phase = "uploaded"
	PhaseDownloaded  Phase = "downloaded"
	PhaseConverting  Phase = "converting"
	PhaseConverted   Phase = "converted"
	PhaseProcessing  Phase = "processing"
	PhaseDone        Phase = "done"
	PhaseError       Phase = "error"
)

// NormalizePhase trims and lower-cases raw; an empty value means idle.
func NormalizePhase(raw string) Phase {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return PhaseIdle
	}
	return Phase(value)
}

// Active reports whether the phase denotes an ongoing server operation.
func (p Phase) Active() bool {
	switch p {
	case PhaseUploading, PhaseDownloading, PhaseConverting, PhaseProcessing:
		return true
	default:
		return false
	}
}

// Describe returns the human-readable description shown for the phase.
func (p Phase) Describe() string {
	switch p {
	case PhaseIdle:
		return ""
	case PhaseUploading:
		return "Uploading file to local storage."
	case PhaseDownloading:
		return "Downloading video from URL."
	case PhaseUploaded:
		return "File uploaded, analysis can be started."
	case PhaseDownloaded:
		return "Video downloaded, analysis can be started."
	case PhaseConverting:
		return "Converting video to a web format."
	case PhaseConverted:
		return "Conversion finished."
	case PhaseProcessing:
		return "Analyzing video."
	case PhaseDone:
		return "Processing finished."
	case PhaseError:
		return "Process failed. Check the event log."
	default:
		return "State updated."
	}
}

// StatusLabel is the short label shown while the phase is active.
func (p Phase) StatusLabel() string {
	switch p {
	case PhaseUploading:
		return "Uploading file"
	case PhaseDownloading:
		return "Downloading video"
	case PhaseConverting:
		return "Converting video"
	case PhaseProcessing:
		return "Analyzing video"
	default:
		return ""
	}
}
