package model

// Field names produced by the extractor.
const (
	FieldName         = "name"
	FieldPhone        = "phone"
	FieldLocation     = "location"
	FieldIncidentDate = "incident_date"
)

// TranscriptEntry is one numbered turn of an extracted transcript.
type TranscriptEntry struct {
	ID      int      `json:"id"`
	Role    TurnRole `json:"role"`
	Message string   `json:"message"`
}

// ExtractedComplaint holds the fields read from the final summary message.
// Values the message does not carry are left empty.
type ExtractedComplaint struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Location     string `json:"location"`
	IncidentDate string `json:"incident_date"`

	// Report is the [report]:{...} narrative, Tags every bracketed tag.
	Report string            `json:"report,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`

	Transcript []TranscriptEntry `json:"transcript"`
	TurnCount  int               `json:"turn_count"`

	// Missing lists cue fields the final message did not match.
	Missing []string `json:"missing,omitempty"`
}

// Field returns the value of one of the cue fields.
func (e *ExtractedComplaint) Field(name string) string {
	switch name {
	case FieldName:
		return e.Name
	case FieldPhone:
		return e.Phone
	case FieldLocation:
		return e.Location
	case FieldIncidentDate:
		return e.IncidentDate
	}
	return ""
}

// SetField assigns a cue field; unknown names are reported as false.
func (e *ExtractedComplaint) SetField(name, value string) bool {
	switch name {
	case FieldName:
		e.Name = value
	case FieldPhone:
		e.Phone = value
	case FieldLocation:
		e.Location = value
	case FieldIncidentDate:
		e.IncidentDate = value
	default:
		return false
	}
	return true
}
