package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AnTengye/cvintake/backend/extract"
	"github.com/AnTengye/cvintake/backend/model"
	"github.com/AnTengye/cvintake/backend/pkg/logger"
)

// maxRawTextChars bounds the rawText stored with an application
const maxRawTextChars = 10000

const truncatedSuffix = "... (truncated)"

var (
	// ErrMissingFields is returned when name, email, phone or the CV file is absent
	ErrMissingFields = errors.New("missing required fields")
	// ErrInvalidEmail is returned when the email is not a single bare address
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidExtractedData is returned when client-supplied extracted data does not match the schema
	ErrInvalidExtractedData = errors.New("invalid extracted data")
)

// Extractor derives structured data from a stored document
type Extractor interface {
	Extract(ctx context.Context, documentURL string) extract.ExtractedCVData
}

// SheetAppender records an application in a spreadsheet
type SheetAppender interface {
	AppendApplication(ctx context.Context, app *model.Application) error
}

// Notifier pushes an application to an external system
type Notifier interface {
	Notify(ctx context.Context, app *model.Application, production bool) error
}

// SubmissionInput is one submitted application form
type SubmissionInput struct {
	Name        string
	Email       string
	Phone       string
	FileName    string
	ContentType string
	Size        int64
	File        io.Reader
	// ExtractedDataJSON is the optional extractedData field produced client side
	ExtractedDataJSON string
	Production        bool
}

// SubmissionResult is returned to the form on success
type SubmissionResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	CVURL   string `json:"cvUrl"`
}

// SubmissionService runs the intake pipeline for one application
type SubmissionService struct {
	blobs      BlobStore
	extractor  Extractor
	store      ApplicationStore
	emails     EmailQueue
	sheets     SheetAppender
	notifier   Notifier
	emailDelay time.Duration
	now        func() time.Time
}

// SubmissionDeps wires the collaborators. Sheets, Notifier and Emails may be nil.
type SubmissionDeps struct {
	Blobs      BlobStore
	Extractor  Extractor
	Store      ApplicationStore
	Emails     EmailQueue
	Sheets     SheetAppender
	Notifier   Notifier
	EmailDelay time.Duration
}

func NewSubmissionService(deps SubmissionDeps) *SubmissionService {
	return &SubmissionService{
		blobs:      deps.Blobs,
		extractor:  deps.Extractor,
		store:      deps.Store,
		emails:     deps.Emails,
		sheets:     deps.Sheets,
		notifier:   deps.Notifier,
		emailDelay: deps.EmailDelay,
		now:        time.Now,
	}
}

// Submit uploads the CV, resolves extracted data, persists the application and
// fans it out to the best-effort sinks. Only missing fields, upload and
// persistence failures are returned.
func (s *SubmissionService) Submit(ctx context.Context, in SubmissionInput) (*SubmissionResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Name == "" || in.Email == "" || in.Phone == "" || in.File == nil {
		return nil, ErrMissingFields
	}
	if !validEmail(in.Email) {
		return nil, ErrInvalidEmail
	}

	id := uuid.New().String()
	ctx = logger.WithApplicationID(ctx, id)
	logger.Info(ctx, "processing application",
		"file_name", in.FileName,
		"file_type", in.ContentType,
		"file_size", in.Size,
	)

	cvURL, err := s.blobs.StoreCV(ctx, in.FileName, in.ContentType, in.File, in.Size)
	if err != nil {
		return nil, fmt.Errorf("upload cv: %w", err)
	}

	data := s.resolveExtractedData(ctx, in, cvURL)

	app := &model.Application{
		ID:            id,
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		CVURL:         cvURL,
		FileName:      in.FileName,
		FileType:      in.ContentType,
		FileSize:      in.Size,
		Status:        model.StatusNew,
		ExtractedData: data,
		SubmittedAt:   s.now().UTC(),
	}
	if err := s.store.Save(ctx, app); err != nil {
		return nil, fmt.Errorf("save application: %w", err)
	}
	logger.Info(ctx, "application saved")

	if err := s.fanOut(ctx, app, in.Production); err != nil {
		logger.Warn(ctx, "application fan-out incomplete", "error", err)
	}
	s.scheduleFollowUp(ctx, app)

	return &SubmissionResult{Success: true, ID: id, CVURL: cvURL}, nil
}

// validEmail accepts a bare RFC 5322 address such as "jane@example.com".
// Display names, address lists and embedded line breaks are rejected.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// resolveExtractedData prefers valid client-side data and otherwise runs the
// engine against the uploaded document
func (s *SubmissionService) resolveExtractedData(ctx context.Context, in SubmissionInput, cvURL string) extract.ExtractedCVData {
	var data extract.ExtractedCVData
	usedClient := false

	if in.ExtractedDataJSON != "" {
		parsed, err := ParseExtractedData([]byte(in.ExtractedDataJSON))
		if err != nil {
			logger.Warn(ctx, "ignoring client extracted data", "error", err)
		} else {
			data = parsed
			usedClient = true
		}
	}

	if !usedClient {
		if s.extractor != nil {
			data = s.extractor.Extract(ctx, cvURL)
		} else {
			data = extract.Empty()
		}
	}

	data.Normalize()
	data.PersonalInfo.SetIfEmpty(extract.FieldName, in.Name)
	data.PersonalInfo.SetIfEmpty(extract.FieldEmail, in.Email)
	data.PersonalInfo.SetIfEmpty(extract.FieldPhone, in.Phone)
	data.RawText = TruncateRawText(data.RawText)

	logger.Info(ctx, "extracted data resolved",
		"client_side", usedClient,
		"education", len(data.Education),
		"qualifications", len(data.Qualifications),
		"projects", len(data.Projects),
	)
	return data
}

// TruncateRawText cuts text above the stored limit and marks the cut
func TruncateRawText(text string) string {
	if len(text) <= maxRawTextChars {
		return text
	}
	r := []rune(text)
	if len(r) <= maxRawTextChars {
		return text
	}
	return string(r[:maxRawTextChars]) + truncatedSuffix
}

// fanOut pushes app to the sheet and the webhook concurrently. Each sink
// runs to completion regardless of the other; the first failure is returned
// for logging and never fails the submission.
func (s *SubmissionService) fanOut(ctx context.Context, app *model.Application, production bool) error {
	var g errgroup.Group

	if s.sheets != nil {
		g.Go(func() error {
			if err := s.sheets.AppendApplication(ctx, app); err != nil {
				logger.Error(ctx, "failed to append application to sheet", "error", err)
				return fmt.Errorf("append to sheet: %w", err)
			}
			logger.Info(ctx, "application appended to sheet")
			return nil
		})
	}

	if s.notifier != nil {
		g.Go(func() error {
			if err := s.notifier.Notify(ctx, app, production); err != nil {
				logger.Error(ctx, "failed to send webhook notification", "error", err)
				return fmt.Errorf("notify webhook: %w", err)
			}
			logger.Info(ctx, "webhook notification sent")
			return nil
		})
	}

	return g.Wait()
}

func (s *SubmissionService) scheduleFollowUp(ctx context.Context, app *model.Application) {
	if s.emails == nil {
		return
	}

	email := &model.ScheduledEmail{
		ID:            uuid.New().String(),
		ApplicationID: app.ID,
		To:            app.Email,
		Name:          app.Name,
		CVURL:         app.CVURL,
		ScheduledFor:  app.SubmittedAt.Add(s.emailDelay),
		CreatedAt:     app.SubmittedAt,
	}
	if err := s.emails.Schedule(ctx, email); err != nil {
		logger.Error(ctx, "failed to schedule follow-up email", "error", err)
		return
	}
	logger.Info(ctx, "follow-up email scheduled", "scheduled_for", email.ScheduledFor)
}
