package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/carepoint/medassist/internal/model"
	"github.com/carepoint/medassist/internal/repo"
)

// Expected CSV header columns for the roster export.
const (
	csvColName = "Doctor Name"
	csvColSpec = "Specialization"
	csvColTime = "Available Time"
	csvColRoom = "Room No"
	csvColFee  = "Fee"
)

// RosterService imports the doctor roster from the hospital's CSV export
// and serves the minimal roster view to the assistant.
type RosterService struct {
	doctors *repo.DoctorRepo
}

func NewRosterService(doctors *repo.DoctorRepo) *RosterService {
	return &RosterService{doctors: doctors}
}

func (s *RosterService) Roster(ctx context.Context) ([]model.RosterEntry, error) {
	return s.doctors.ListRoster(ctx)
}

func (s *RosterService) List(ctx context.Context) ([]model.Doctor, error) {
	return s.doctors.List(ctx)
}

// ImportCSV replaces the whole roster from the CSV file and returns how
// many doctors were imported. Malformed rows are skipped, not fatal.
func (s *RosterService) ImportCSV(ctx context.Context, path string) (int, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("path", path))
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open roster csv: %w", err)
	}
	defer file.Close()

	doctors, skipped, err := parseRosterCSV(file)
	if err != nil {
		return 0, err
	}
	if skipped > 0 {
		logger.Warn("skipped malformed roster rows", zap.Int("rows", skipped))
	}
	if err := s.doctors.ReplaceAll(ctx, doctors); err != nil {
		return 0, fmt.Errorf("replace roster: %w", err)
	}
	logger.Info("doctor roster synced", zap.Int("doctors", len(doctors)))
	return len(doctors), nil
}

func parseRosterCSV(r io.Reader) ([]model.Doctor, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{csvColName, csvColSpec, csvColTime} {
		if _, ok := cols[required]; !ok {
			return nil, 0, fmt.Errorf("roster csv missing column %q", required)
		}
	}

	var doctors []model.Doctor
	var skipped int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		doc, ok := rosterRecord(record, cols)
		if !ok {
			skipped++
			continue
		}
		doctors = append(doctors, doc)
	}
	return doctors, skipped, nil
}

func rosterRecord(record []string, cols map[string]int) (model.Doctor, bool) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	name := field(csvColName)
	spec := field(csvColSpec)
	timeRange := field(csvColTime)
	if name == "" || spec == "" {
		return model.Doctor{}, false
	}
	start, end, ok := splitTimeRange(timeRange)
	if !ok {
		return model.Doctor{}, false
	}
	return model.Doctor{
		Name:           name,
		Specialization: spec,
		StartTime:      start,
		EndTime:        end,
		Room:           field(csvColRoom),
		Fee:            field(csvColFee),
	}, true
}

func splitTimeRange(s string) (string, string, bool) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	start := strings.TrimSpace(parts[0])
	end := strings.TrimSpace(parts[1])
	if start == "" || end == "" {
		return "", "", false
	}
	return start, end, true
}
