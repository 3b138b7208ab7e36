package complaint

// Stage is a point on the complaint progress track.
type Stage struct {
	Label    string `json:"label"`
	Progress int    `json:"progress"`
}

var (
	Raised       = Stage{Label: "Raised", Progress: 0}
	Acknowledged = Stage{Label: "Acknowledged", Progress: 33}
	InProgress   = Stage{Label: "In Progress", Progress: 66}
	Resolved     = Stage{Label: "Resolved", Progress: 100}
)

// stageByLabel maps canonical labels and the labels stored by earlier
// clients. Matching is exact.
var stageByLabel = map[string]Stage{
	Raised.Label:       Raised,
	Acknowledged.Label: Acknowledged,
	InProgress.Label:   InProgress,
	Resolved.Label:     Resolved,

	"Complaint Raised":       Raised,
	"Complaint Acknowledged": Acknowledged,
	"Action Under Progress":  InProgress,
	"Issue Resolved":         Resolved,
}

// Stages lists every stage in progress order.
func Stages() []Stage {
	return []Stage{Raised, Acknowledged, InProgress, Resolved}
}

// StageOf maps a stored status label to its stage. Unknown labels fall back
// to Raised.
func StageOf(label string) Stage {
	if s, ok := stageByLabel[label]; ok {
		return s
	}
	return Raised
}

// LookupStage is StageOf without the fallback.
func LookupStage(label string) (Stage, bool) {
	s, ok := stageByLabel[label]
	return s, ok
}

func (s Stage) Terminal() bool {
	return s == Resolved
}
