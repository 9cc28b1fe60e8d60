package export

// Stage is a step of one export. An export moves forward through
// Compacting, Enumerating, Generating and Finalizing, then ends in
// Completed or Failed. Nothing is retried; any error goes straight to
// Failed.
type Stage int

const (
	StageIdle Stage = iota
	StageCompacting
	StageEnumerating
	StageGenerating
	StageFinalizing
	StageCompleted
	StageFailed
)

var stageNames = map[Stage]string{
	StageIdle:        "idle",
	StageCompacting:  "compacting",
	StageEnumerating: "enumerating",
	StageGenerating:  "generating",
	StageFinalizing:  "finalizing",
	StageCompleted:   "completed",
	StageFailed:      "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the export has finished.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}
