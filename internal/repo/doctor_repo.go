package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/carepoint/medassist/internal/model"
	appErr "github.com/carepoint/medassist/internal/pkg/errors"
)

var doctorFields = []string{"id", "name", "specialization", "start_time", "end_time", "room", "fee"}

// DoctorRepo reads the doctor roster. The appointment system owns writes;
// the only write path here is the full CSV re-sync.
type DoctorRepo struct {
	db *sql.DB
}

func NewDoctorRepo(db *sql.DB) *DoctorRepo {
	return &DoctorRepo{db: db}
}

func (r *DoctorRepo) List(ctx context.Context) ([]model.Doctor, error) {
	where := map[string]interface{}{
		"_orderby": "id asc",
	}
	sqlStr, args, err := builder.BuildSelect("doctors", where, doctorFields)
	if err != nil {
		return nil, err
	}
	return r.queryDoctors(ctx, sqlStr, args...)
}

// ListRoster returns the minimal (name, specialization) view consumed by
// the triage prompt.
func (r *DoctorRepo) ListRoster(ctx context.Context) ([]model.RosterEntry, error) {
	sqlStr, args, err := builder.BuildSelect("doctors", map[string]interface{}{"_orderby": "id asc"}, []string{"name", "specialization"})
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roster []model.RosterEntry
	for rows.Next() {
		var entry model.RosterEntry
		if err := rows.Scan(&entry.Name, &entry.Specialization); err != nil {
			return nil, err
		}
		roster = append(roster, entry)
	}
	return roster, rows.Err()
}

func (r *DoctorRepo) FindBySpecialization(ctx context.Context, specialization string) ([]model.Doctor, error) {
	where := map[string]interface{}{
		"specialization like": "%" + specialization + "%",
	}
	sqlStr, args, err := builder.BuildSelect("doctors", where, doctorFields)
	if err != nil {
		return nil, err
	}
	return r.queryDoctors(ctx, sqlStr, args...)
}

func (r *DoctorRepo) FindByName(ctx context.Context, name string) ([]model.Doctor, error) {
	clean := strings.TrimSpace(strings.NewReplacer("Dr.", "", "Prof.", "").Replace(name))
	where := map[string]interface{}{
		"name like": "%" + clean + "%",
	}
	sqlStr, args, err := builder.BuildSelect("doctors", where, doctorFields)
	if err != nil {
		return nil, err
	}
	return r.queryDoctors(ctx, sqlStr, args...)
}

// ReplaceAll swaps the whole roster in one transaction; used by the CSV sync.
func (r *DoctorRepo) ReplaceAll(ctx context.Context, doctors []model.Doctor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM doctors"); err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}
	if len(doctors) > 0 {
		rows := make([]map[string]interface{}, 0, len(doctors))
		for _, doc := range doctors {
			rows = append(rows, map[string]interface{}{
				"name":           doc.Name,
				"specialization": doc.Specialization,
				"start_time":     doc.StartTime,
				"end_time":       doc.EndTime,
				"room":           doc.Room,
				"fee":            doc.Fee,
			})
		}
		sqlStr, args, err := builder.BuildInsert("doctors", rows)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("insert roster: %w", err)
		}
	}
	return tx.Commit()
}

func (r *DoctorRepo) queryDoctors(ctx context.Context, sqlStr string, args ...interface{}) ([]model.Doctor, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var doctors []model.Doctor
	for rows.Next() {
		var doc model.Doctor
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Specialization, &doc.StartTime, &doc.EndTime, &doc.Room, &doc.Fee); err != nil {
			return nil, err
		}
		doctors = append(doctors, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return doctors, nil
}

func (r *DoctorRepo) Get(ctx context.Context, id int64) (*model.Doctor, error) {
	sqlStr, args, err := builder.BuildSelect("doctors", map[string]interface{}{"id": id}, doctorFields)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var doc model.Doctor
	if err := row.Scan(&doc.ID, &doc.Name, &doc.Specialization, &doc.StartTime, &doc.EndTime, &doc.Room, &doc.Fee); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}
