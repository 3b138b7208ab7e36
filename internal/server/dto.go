package server

import (
	"time"

	"github.com/aegis-safety/intake/internal/agent/model"
	"github.com/aegis-safety/intake/internal/agent/voice"
	"github.com/aegis-safety/intake/internal/complaint"
)

// Request payloads

type SubmitRequest struct {
	Text string `json:"text"`
}

type VoiceResultRequest struct {
	Transcript string `json:"transcript"`
	Final      bool   `json:"final,omitempty"`
	Error      string `json:"error,omitempty"`
}

// VoiceRequest carries the results of one recognition session run by the
// client's speech engine.
type VoiceRequest struct {
	Results []VoiceResultRequest `json:"results"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" example:"Acknowledged"`
}

type ContactRequest struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

type ContactBatchRequest struct {
	Contacts []ContactRequest `json:"contacts"`
}

// Response payloads

type SessionResponse struct {
	ID        string        `json:"id"`
	Consent   model.Consent `json:"consent"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type ReplyResponse struct {
	Reply   string `json:"reply,omitempty"`
	Ignored bool   `json:"ignored,omitempty"`
}

type VoiceResponse struct {
	Transcript string        `json:"transcript"`
	Reply      string        `json:"reply,omitempty"`
	Ignored    bool          `json:"ignored,omitempty"`
	Prosody    voice.Prosody `json:"prosody"`
}

type TranscriptResponse struct {
	SessionID string       `json:"session_id"`
	Turns     []model.Turn `json:"turns"`
}

type ComplaintResponse struct {
	ID           string                  `json:"id"`
	Title        string                  `json:"title"`
	Description  string                  `json:"description"`
	Status       string                  `json:"status"`
	Stage        complaint.Stage         `json:"stage"`
	DateFiled    time.Time               `json:"date_filed"`
	SessionID    string                  `json:"session_id,omitempty"`
	Name         string                  `json:"name,omitempty"`
	Phone        string                  `json:"phone,omitempty"`
	Location     string                  `json:"location,omitempty"`
	IncidentDate string                  `json:"incident_date,omitempty"`
	Transcript   []model.TranscriptEntry `json:"transcript,omitempty"`
	TurnCount    int                     `json:"turn_count"`
}

type RaiseComplaintResponse struct {
	Complaint ComplaintResponse `json:"complaint"`
	Missing   []string          `json:"missing,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

func sessionResponse(s *model.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Consent:   s.Consent,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func complaintResponse(r complaint.Record) ComplaintResponse {
	return ComplaintResponse{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Status:       r.Status,
		Stage:        r.Stage(),
		DateFiled:    r.DateFiled,
		SessionID:    r.SessionID,
		Name:         r.Name,
		Phone:        r.Phone,
		Location:     r.Location,
		IncidentDate: r.IncidentDate,
		Transcript:   r.Transcript,
		TurnCount:    r.TurnCount,
	}
}

func mapComplaints(items []complaint.Record) []ComplaintResponse {
	out := make([]ComplaintResponse, 0, len(items))
	for _, r := range items {
		out = append(out, complaintResponse(r))
	}
	return out
}

func mapContacts(items []complaint.Contact) []complaint.Contact {
	if items == nil {
		return []complaint.Contact{}
	}
	return items
}

func toContacts(in []ContactRequest) []complaint.Contact {
	out := make([]complaint.Contact, 0, len(in))
	for _, c := range in {
		out = append(out, complaint.Contact{Name: c.Name, Mobile: c.Mobile})
	}
	return out
}
