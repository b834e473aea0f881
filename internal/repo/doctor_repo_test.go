package repo_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carepoint/medassist/internal/model"
	appErr "github.com/carepoint/medassist/internal/pkg/errors"
	"github.com/carepoint/medassist/internal/repo"
)

func openTestRepo(t *testing.T) *repo.DoctorRepo {
	t.Helper()
	db, err := repo.Open(filepath.Join(t.TempDir(), "doctors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repo.Bootstrap(db))
	return repo.NewDoctorRepo(db)
}

func seedDoctors(t *testing.T, doctors *repo.DoctorRepo) {
	t.Helper()
	require.NoError(t, doctors.ReplaceAll(context.Background(), []model.Doctor{
		{Name: "Dr. Rahman", Specialization: "Cardiologist", StartTime: "10:00 AM", EndTime: "1:00 PM", Room: "204", Fee: "800"},
		{Name: "Dr. Akter", Specialization: "Dermatologist", StartTime: "2:00 PM", EndTime: "5:00 PM", Room: "105", Fee: "600"},
		{Name: "Prof. Khan", Specialization: "Neurologist", StartTime: "9:00 AM", EndTime: "12:00 PM", Room: "301", Fee: "1000"},
	}))
}

func TestDoctorRepoListAndRoster(t *testing.T) {
	doctors := openTestRepo(t)
	seedDoctors(t, doctors)
	ctx := context.Background()

	all, err := doctors.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "Dr. Rahman", all[0].Name)
	require.Equal(t, "800", all[0].Fee)

	roster, err := doctors.ListRoster(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.RosterEntry{
		{Name: "Dr. Rahman", Specialization: "Cardiologist"},
		{Name: "Dr. Akter", Specialization: "Dermatologist"},
		{Name: "Prof. Khan", Specialization: "Neurologist"},
	}, roster)
}

func TestDoctorRepoFind(t *testing.T) {
	doctors := openTestRepo(t)
	seedDoctors(t, doctors)
	ctx := context.Background()

	bySpec, err := doctors.FindBySpecialization(ctx, "Cardio")
	require.NoError(t, err)
	require.Len(t, bySpec, 1)
	require.Equal(t, "Dr. Rahman", bySpec[0].Name)

	// Honorifics are stripped before the lookup.
	byName, err := doctors.FindByName(ctx, "Dr. Khan")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	require.Equal(t, "Prof. Khan", byName[0].Name)

	none, err := doctors.FindBySpecialization(ctx, "Oncologist")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestDoctorRepoGet(t *testing.T) {
	doctors := openTestRepo(t)
	seedDoctors(t, doctors)
	ctx := context.Background()

	all, err := doctors.List(ctx)
	require.NoError(t, err)

	doc, err := doctors.Get(ctx, all[0].ID)
	require.NoError(t, err)
	require.Equal(t, all[0].Name, doc.Name)

	_, err = doctors.Get(ctx, 99999)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDoctorRepoReplaceAllEmpty(t *testing.T) {
	doctors := openTestRepo(t)
	seedDoctors(t, doctors)
	ctx := context.Background()

	require.NoError(t, doctors.ReplaceAll(ctx, nil))
	all, err := doctors.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}
