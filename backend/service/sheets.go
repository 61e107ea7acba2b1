package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/AnTengye/cvintake/backend/config"
	"github.com/AnTengye/cvintake/backend/extract"
	"github.com/AnTengye/cvintake/backend/model"
)

// maxCellChars caps joined list cells; Sheets rejects cells above 50000 chars
const maxCellChars = 5000

// SheetHeader is the header row written when the sheet is created
var SheetHeader = []string{
	"ID", "Name", "Email", "Phone", "CV URL", "Submitted At",
	"Education", "Qualifications", "Projects", "Personal Info",
}

// SheetsService appends one row per application to a Google spreadsheet
type SheetsService struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string

	mu      sync.Mutex
	ensured bool
}

// NewSheetsService builds the Sheets client. Without explicit options it
// authenticates as the service account in cfg.CredentialsFile.
func NewSheetsService(ctx context.Context, cfg *config.SheetsConfig, opts ...option.ClientOption) (*SheetsService, error) {
	if len(opts) == 0 {
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read sheets credentials: %w", err)
		}
		jwtCfg, err := google.JWTConfigFromJSON(b, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse sheets credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	name := cfg.SheetName
	if name == "" {
		name = "Applications"
	}
	return &SheetsService{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetName: name}, nil
}

// AppendApplication writes app as a single RAW row, creating the sheet on first use
func (s *SheetsService) AppendApplication(ctx context.Context, app *model.Application) error {
	if err := s.ensureSheet(ctx); err != nil {
		return err
	}

	row := make([]any, 0, len(SheetHeader))
	for _, v := range SheetRow(app) {
		row = append(row, v)
	}

	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName+"!A:J", &sheets.ValueRange{
		Values: [][]any{row},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

func (s *SheetsService) ensureSheet(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.sheetName {
			s.ensured = true
			return nil
		}
	}

	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: s.sheetName},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := make([]any, len(SheetHeader))
	for i, h := range SheetHeader {
		header[i] = h
	}
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, s.sheetName+"!A1:J1", &sheets.ValueRange{
		Values: [][]any{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	s.ensured = true
	return nil
}

// SheetRow flattens an application into the column order of SheetHeader
func SheetRow(app *model.Application) []string {
	data := app.ExtractedData
	return []string{
		app.ID,
		app.Name,
		app.Email,
		app.Phone,
		app.CVURL,
		app.SubmittedAt.UTC().Format(time.RFC3339),
		joinCell(data.Education, "No education data"),
		joinCell(data.Qualifications, "No qualifications data"),
		joinCell(data.Projects, "No projects data"),
		personalInfoCell(data.PersonalInfo),
	}
}

func joinCell(items []string, empty string) string {
	kept := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			kept = append(kept, item)
		}
	}

	joined := truncateRunes(strings.Join(kept, "\n"), maxCellChars)
	if joined == "" {
		return empty
	}
	return joined
}

// personalInfoCell renders the non-empty contact fields as compact JSON
func personalInfoCell(info extract.PersonalInfo) string {
	b, err := json.Marshal(info)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
