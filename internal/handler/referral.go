package handler

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/refertrack/refertrack/internal/handler/dto"
	"github.com/refertrack/refertrack/internal/linksig"
	"github.com/refertrack/refertrack/internal/model"
	"github.com/refertrack/refertrack/internal/notify"
	"github.com/refertrack/refertrack/internal/service"
)

// ReferralHandler handles HTTP requests for referral operations.
type ReferralHandler struct {
	svc         *service.ReferralService
	signer      *linksig.Signer
	frontendURL string
	logger      *slog.Logger
}

// NewReferralHandler creates a new ReferralHandler. signer may be nil, in
// which case accept/reject links are not verified.
func NewReferralHandler(svc *service.ReferralService, signer *linksig.Signer, frontendURL string, logger *slog.Logger) *ReferralHandler {
	return &ReferralHandler{
		svc:         svc,
		signer:      signer,
		frontendURL: frontendURL,
		logger:      logger.With("component", "handler.referral"),
	}
}

// Create handles POST /api/referral.
func (h *ReferralHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	ref, err := h.svc.CreateReferral(r.Context(), service.CreateReferralInput{
		UserID:       req.UserID,
		ReferrerName: req.ReferrerName,
		RefereeName:  req.RefereeName,
		RefereeEmail: req.RefereeEmail,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToReferralResponse(ref))
}

// ListAll handles GET /api/referrals.
func (h *ReferralHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	refs, err := h.svc.ListReferrals(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToReferralResponses(refs))
}

// ListByUser handles GET /api/referral/user/{userID}.
func (h *ReferralHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	refs, err := h.svc.ListReferralsByUser(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	data := dto.ToReferralResponses(refs)
	writeJSON(w, http.StatusOK, dto.UserReferralsResponse{
		Success: true,
		Data:    data,
		Message: "Referrals fetched successfully",
		Count:   len(data),
	})
}

// Accept handles GET /referral/accept.
func (h *ReferralHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, notify.ActionAccept)
}

// Reject handles GET /referral/reject.
func (h *ReferralHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, notify.ActionReject)
}

func (h *ReferralHandler) resolve(w http.ResponseWriter, r *http.Request, action string) {
	query := r.URL.Query()
	userID := query.Get("userID")
	email := query.Get("email")
	if userID == "" || email == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "userID and email are required")
		return
	}

	if h.signer.Enabled() {
		if err := h.signer.Verify(action, userID, model.NormalizeEmail(email), query.Get("sig")); err != nil {
			h.logger.Warn("link_signature_rejected",
				"action", action,
				"user_id", userID,
				"error", err,
			)
			writeError(w, http.StatusForbidden, "INVALID_SIGNATURE", "Invalid or missing link signature")
			return
		}
	}

	var (
		ref *model.Referral
		err error
	)
	if action == notify.ActionAccept {
		ref, err = h.svc.AcceptReferral(r.Context(), userID, email)
	} else {
		ref, err = h.svc.RejectReferral(r.Context(), userID, email)
	}
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeConfirmation(w, ref)
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{if .RedirectURL}}<meta http-equiv="refresh" content="3;url={{.RedirectURL}}">{{end}}
<style>
body { font-family: Arial, sans-serif; background: #f4f4f4; text-align: center; padding: 60px 20px; }
.card { background: #fff; max-width: 480px; margin: 0 auto; padding: 32px; border-radius: 8px; }
h1 { color: {{.Color}}; }
</style>
</head>
<body>
<div class="card">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .RedirectURL}}<p>You will be redirected shortly. <a href="{{.RedirectURL}}">Continue</a></p>{{end}}
</div>
</body>
</html>
`))

type confirmationView struct {
	Title       string
	Message     string
	Color       template.CSS
	RedirectURL string
}

func (h *ReferralHandler) writeConfirmation(w http.ResponseWriter, ref *model.Referral) {
	view := confirmationView{
		Title:       "Invitation accepted",
		Message:     "Thanks " + ref.RefereeName + ", your invitation from " + ref.ReferrerName + " has been accepted.",
		Color:       "#28a745",
		RedirectURL: h.frontendURL,
	}
	if ref.Status == model.ReferralStatusRejected {
		view.Title = "Invitation declined"
		view.Message = "You have declined the invitation from " + ref.ReferrerName + "."
		view.Color = "#dc3545"
		// Declining ends the flow; only acceptance continues to the app.
		view.RedirectURL = ""
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := confirmationTemplate.Execute(w, view); err != nil {
		h.logger.Error("confirmation_render_failed", "error", err)
	}
}

// handleServiceError maps service errors to HTTP responses.
func (h *ReferralHandler) handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		fields := make([]dto.FieldError, 0, len(validationErr.Fields))
		for _, f := range validationErr.Fields {
			fields = append(fields, dto.FieldError{Field: f.Field, Message: f.Message})
		}
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Errors: fields,
		})
	case errors.Is(err, service.ErrReferralNotFound):
		writeError(w, http.StatusNotFound, "REFERRAL_NOT_FOUND", "Referral not found")
	case errors.Is(err, service.ErrReferralAlreadyResolved):
		writeError(w, http.StatusConflict, "REFERRAL_ALREADY_RESOLVED", "Referral has already been resolved")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
