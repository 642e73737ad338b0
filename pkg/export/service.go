package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/xuri/excelize/v2"
)

// Formats and their content types.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxRows = 10000
)

// TrackerLister lists unresponded trackers ordered by deadline.
type TrackerLister interface {
	ListOpenTrackers(ctx context.Context, limit int) ([]*models.SLATracker, error)
}

// LeadReader loads a lead by id.
type LeadReader interface {
	GetLead(ctx context.Context, id string) (*models.Lead, error)
}

// Row is one line of the SLA queue report.
type Row struct {
	ConversationID  string
	LeadID          string
	LeadName        string
	AssignedUserID  string
	ProjectID       string
	SLAStatus       models.SLAStatus
	Deadline        time.Time
	MinutesOverdue  int
	EscalationLevel int
	CreatedAt       time.Time
}

// File is a rendered report.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Rows        int
}

var headers = []string{
	"Conversation ID", "Lead ID", "Lead Name", "Assigned To", "Project",
	"SLA Status", "Deadline", "Minutes Overdue", "Escalation Level", "Created At",
}

// Service renders the open SLA queue for operators.
type Service struct {
	trackers TrackerLister
	leads    LeadReader
	now      func() time.Time
}

// NewService creates a new export service
func NewService(trackers TrackerLister, leads LeadReader) *Service {
	return &Service{trackers: trackers, leads: leads, now: time.Now}
}

// Rows returns the unresponded trackers, most urgent first.
func (s *Service) Rows(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 || limit > maxRows {
		limit = maxRows
	}
	trackers, err := s.trackers.ListOpenTrackers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trackers: %w", err)
	}

	now := s.now().UTC()
	rows := make([]Row, 0, len(trackers))
	for _, t := range trackers {
		row := Row{
			ConversationID:  t.ConversationID,
			LeadID:          t.LeadID,
			ProjectID:       t.ProjectID,
			SLAStatus:       t.SLAStatus,
			Deadline:        t.FirstResponseDeadline,
			EscalationLevel: t.EscalationLevel,
			CreatedAt:       t.CreatedAt,
		}
		if now.After(t.FirstResponseDeadline) {
			row.MinutesOverdue = int(now.Sub(t.FirstResponseDeadline) / time.Minute)
		}
		lead, err := s.leads.GetLead(ctx, t.LeadID)
		switch {
		case err == nil:
			row.LeadName = lead.Name
			row.AssignedUserID = lead.AssignedUserID
		case !domain.IsNotFound(err):
			return nil, fmt.Errorf("failed to load lead %s: %w", t.LeadID, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SLAQueue renders the queue as CSV or XLSX.
func (s *Service) SLAQueue(ctx context.Context, format string, limit int) (*File, error) {
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		return nil, domain.NewValidationError("invalid format: must be csv or xlsx")
	}

	rows, err := s.Rows(ctx, limit)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("sla-queue-%s.%s", s.now().UTC().Format("20060102-1504"), format)
	if format == FormatXLSX {
		data, err := renderXLSX(rows)
		if err != nil {
			return nil, err
		}
		return &File{Name: name, ContentType: ContentTypeXLSX, Data: data, Rows: len(rows)}, nil
	}
	data, err := renderCSV(rows)
	if err != nil {
		return nil, err
	}
	return &File{Name: name, ContentType: ContentTypeCSV, Data: data, Rows: len(rows)}, nil
}

func (r Row) values() []interface{} {
	return []interface{}{
		r.ConversationID, r.LeadID, r.LeadName, r.AssignedUserID, r.ProjectID,
		string(r.SLAStatus), r.Deadline.Format(time.RFC3339), r.MinutesOverdue, r.EscalationLevel,
		r.CreatedAt.Format(time.RFC3339),
	}
}

func renderCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		vals := r.values()
		record := make([]string, len(vals))
		for i, v := range vals {
			switch v := v.(type) {
			case int:
				record[i] = strconv.Itoa(v)
			default:
				record[i] = fmt.Sprint(v)
			}
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXLSX(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "SLA Queue"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		vals := r.values()
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(sheet, "A", lastCol, 20); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
