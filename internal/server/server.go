// Package server exposes the intake service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aegis-safety/intake/internal/agent/intake"
	"github.com/aegis-safety/intake/internal/agent/voice"
	"github.com/aegis-safety/intake/internal/complaint"
	errx "github.com/aegis-safety/intake/internal/core/error"
	logx "github.com/aegis-safety/intake/pkg/logger"
)

// Config for the HTTP API handler.
type Config struct {
	Intake  *intake.Service
	Voice   *voice.Adapter
	Version string
}

type apiErrorBody struct {
	Code    string `json:"code" example:"consent_required"`
	Message string `json:"message" example:"Please accept the consent to proceed and talk to the AI."`
}

// apiError is the error envelope of every failed request.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// huma's error constructor and array nullability are process-wide; every
// handler built by New shares the envelope installed here.
func init() {
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && len(errs) > 0 {
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		return huma.NewError(status, msg, errs...)
	}
}

// New returns an HTTP handler exposing the intake API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Intake == nil {
		return nil, fmt.Errorf("intake service is nil")
	}
	if cfg.Voice == nil {
		cfg.Voice = voice.NewAdapter(cfg.Intake, voice.LogSynthesizer{})
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger)

	hcfg := huma.DefaultConfig("Complaint Intake API", version)
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)

	registerHealth(api)
	registerSessions(api, cfg.Intake)
	registerConversation(api, cfg.Intake, cfg.Voice)
	registerComplaints(api, cfg.Intake)
	registerContacts(api, cfg.Intake)

	return router, nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logx.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func newAPIError(status int, code, message string) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
		},
	}
}

// handleError maps errx kinds onto the envelope. Internal failures never
// leak their cause to the client.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var appErr *errx.AppError
	if !errors.As(err, &appErr) {
		logx.Error().Err(err).Msg("Unhandled request error")
		return newAPIError(http.StatusInternalServerError, "", errx.SystemErrorMessage)
	}
	status := errx.StatusOf(err)
	if status >= http.StatusInternalServerError && appErr.Kind != errx.KindBackend {
		logx.Error().Err(err).Str("kind", string(appErr.Kind)).Msg("Request failed")
	}
	return newAPIError(status, string(appErr.Kind), appErr.Message)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type sessionPath struct {
	SessionID string `path:"session_id"`
}

type sessionOutput struct {
	Body SessionResponse `json:"body"`
}

func registerSessions(api huma.API, svc *intake.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/sessions",
		Summary:       "Start an intake session",
		Description:   "The consent gate of a new session is closed.",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, _ *struct{}) (*sessionOutput, error) {
		sess, err := svc.StartSession(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &sessionOutput{Body: sessionResponse(sess)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}",
		Summary:     "Get session",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*sessionOutput, error) {
		sess, err := svc.Session(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &sessionOutput{Body: sessionResponse(sess)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "end-session",
		Method:        http.MethodDelete,
		Path:          "/sessions/{session_id}",
		Summary:       "End session and drop its transcript",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct{}, error) {
		if err := svc.EndSession(ctx, input.SessionID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "grant-consent",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/consent",
		Summary:     "Accept the consent notice",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*sessionOutput, error) {
		sess, err := svc.GrantConsent(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &sessionOutput{Body: sessionResponse(sess)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decline-consent",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/decline",
		Summary:     "Decline the consent notice",
		Description: "Refreshes the notice. An earlier acceptance and the transcript are kept.",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*sessionOutput, error) {
		sess, err := svc.DeclineConsent(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &sessionOutput{Body: sessionResponse(sess)}, nil
	})
}

func registerConversation(api huma.API, svc *intake.Service, adapter *voice.Adapter) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-message",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/messages",
		Summary:     "Send a typed message to the interviewer",
		Description: "Blank messages are ignored and never reach the interviewer.",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusTooManyRequests,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		SessionID string        `path:"session_id"`
		Body      SubmitRequest `json:"body"`
	}) (*struct {
		Body ReplyResponse `json:"body"`
	}, error) {
		reply, err := svc.Submit(ctx, input.SessionID, input.Body.Text)
		if errx.IsKind(err, errx.KindEmptyInput) {
			return &struct {
				Body ReplyResponse `json:"body"`
			}{Body: ReplyResponse{Ignored: true}}, nil
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReplyResponse `json:"body"`
		}{Body: ReplyResponse{Reply: reply}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-voice",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/voice",
		Summary:     "Submit recognized speech",
		Description: "The first final result is submitted as typed text. The reply carries the prosody to speak it with.",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		SessionID string       `path:"session_id"`
		Body      VoiceRequest `json:"body"`
	}) (*struct {
		Body VoiceResponse `json:"body"`
	}, error) {
		rec := voice.ReplayRecognizer{Results: make([]voice.Result, 0, len(input.Body.Results))}
		for _, r := range input.Body.Results {
			res := voice.Result{Transcript: r.Transcript, Final: r.Final}
			if r.Error != "" {
				res.Err = errors.New(r.Error)
			}
			rec.Results = append(rec.Results, res)
		}

		captured, err := adapter.Capture(ctx, input.SessionID, rec)
		out := VoiceResponse{Transcript: captured.Transcript, Prosody: adapter.Prosody()}
		if errx.IsKind(err, errx.KindEmptyInput) {
			out.Ignored = true
			return &struct {
				Body VoiceResponse `json:"body"`
			}{Body: out}, nil
		}
		if err != nil {
			return nil, handleError(err)
		}
		out.Reply = captured.Reply
		adapter.Playback(ctx, captured.Reply)
		return &struct {
			Body VoiceResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-transcript",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}/transcript",
		Summary:     "Get the session transcript",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body TranscriptResponse `json:"body"`
	}, error) {
		turns, err := svc.Transcript(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TranscriptResponse `json:"body"`
		}{Body: TranscriptResponse{SessionID: input.SessionID, Turns: turns}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "raise-complaint",
		Method:        http.MethodPost,
		Path:          "/sessions/{session_id}/complaints",
		Summary:       "File the conversation as a complaint",
		Description:   "Fields missing from the interviewer's final summary are stored empty and listed in missing.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body RaiseComplaintResponse `json:"body"`
	}, error) {
		rec, ex, err := svc.RaiseComplaint(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RaiseComplaintResponse `json:"body"`
		}{Body: RaiseComplaintResponse{
			Complaint: complaintResponse(*rec),
			Missing:   ex.Missing,
			Tags:      ex.Tags,
		}}, nil
	})
}

type complaintPath struct {
	ComplaintID string `path:"complaint_id"`
}

type complaintOutput struct {
	Body ComplaintResponse `json:"body"`
}

func registerComplaints(api huma.API, svc *intake.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-complaints",
		Method:      http.MethodGet,
		Path:        "/complaints",
		Summary:     "List complaints, newest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ComplaintResponse `json:"body"`
	}, error) {
		items, err := svc.ListComplaints(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ComplaintResponse `json:"body"`
		}{Body: mapComplaints(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-complaint",
		Method:      http.MethodGet,
		Path:        "/complaints/{complaint_id}",
		Summary:     "Get complaint",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *complaintPath) (*complaintOutput, error) {
		rec, err := svc.Complaint(ctx, input.ComplaintID)
		if err != nil {
			return nil, handleError(err)
		}
		return &complaintOutput{Body: complaintResponse(*rec)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-complaint-status",
		Method:      http.MethodPatch,
		Path:        "/complaints/{complaint_id}/status",
		Summary:     "Move a complaint to another stage",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ComplaintID string              `path:"complaint_id"`
		Body        UpdateStatusRequest `json:"body"`
	}) (*complaintOutput, error) {
		rec, err := svc.UpdateComplaintStatus(ctx, input.ComplaintID, input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &complaintOutput{Body: complaintResponse(*rec)}, nil
	})
}

func registerContacts(api huma.API, svc *intake.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-contacts",
		Method:      http.MethodGet,
		Path:        "/contacts",
		Summary:     "List contacts, oldest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []complaint.Contact `json:"body"`
	}, error) {
		items, err := svc.ListContacts(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []complaint.Contact `json:"body"`
		}{Body: mapContacts(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-contact",
		Method:        http.MethodPost,
		Path:          "/contacts",
		Summary:       "Add a contact",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ContactRequest `json:"body"`
	}) (*struct {
		Body complaint.Contact `json:"body"`
	}, error) {
		c, err := svc.AddContact(ctx, complaint.Contact{Name: input.Body.Name, Mobile: input.Body.Mobile})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body complaint.Contact `json:"body"`
		}{Body: *c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-contact-batch",
		Method:        http.MethodPost,
		Path:          "/contacts/batch",
		Summary:       "Save an emergency contact list",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ContactBatchRequest `json:"body"`
	}) (*struct {
		Body complaint.ContactBatch `json:"body"`
	}, error) {
		batch, err := svc.CreateContactBatch(ctx, toContacts(input.Body.Contacts))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body complaint.ContactBatch `json:"body"`
		}{Body: *batch}, nil
	})
}
