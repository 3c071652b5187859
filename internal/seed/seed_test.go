package seed

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/scheduler"
)

const wardsCSV = `name,department,capacity,year1_capacity,year2_capacity,year3_capacity,nurse_associate_capacity,audit_expiry_week,covid_status,needs_driver,dyad
Ward A,Medicine,4,2,2,1,1,,green,false,true
Ward B,Surgery,3,3,1,1,0,20,amber,yes,no
`

const placementsCSV = `student_id,student_name,cohort,name,year,nurse_associate,is_driver,start_week,duration,start_date,previous_wards,previous_departments,allowed_covid_statuses
S1,张三,2024A,S1_P1,Year 1,false,true,0,4,2025-02-24,Ward A|Ward B,Medicine,green|amber
S1,张三,2024A,S1_P2,Year 1,false,true,6,4,,,,
S2,Alice,2024B,S2_P1,Year 2,1,0,2,3,,,,
`

func TestParseWards(t *testing.T) {
	wards, err := ParseWards(strings.NewReader(wardsCSV))
	require.NoError(t, err)
	require.Len(t, wards, 2)

	assert.Equal(t, "Ward A", wards[0].Name)
	assert.Nil(t, wards[0].AuditExpiryWeek)
	assert.True(t, wards[0].DYAD)
	assert.Equal(t, int32(1), wards[0].NurseAssociateCapacity)

	require.NotNil(t, wards[1].AuditExpiryWeek)
	assert.Equal(t, int32(20), *wards[1].AuditExpiryWeek)
	assert.True(t, wards[1].NeedsDriver)
	assert.False(t, wards[1].DYAD)
	assert.Equal(t, "amber", wards[1].CovidStatus)
}

func TestParseWardsRejectsCapacityViolation(t *testing.T) {
	// DYAD 病房的年级容量不能超过总容量的一半
	csv := strings.Join(WardHeaders, ",") + "\nWard C,Medicine,4,3,0,0,0,,green,false,true\n"

	_, err := ParseWards(strings.NewReader(csv))
	require.ErrorIs(t, err, scheduler.ErrInvariantViolation)
	assert.Contains(t, err.Error(), "第 2 行")
}

func TestParseWardsMissingColumn(t *testing.T) {
	_, err := ParseWards(strings.NewReader("name,department\nWard A,Medicine\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capacity")
}

func TestParsePlacements(t *testing.T) {
	placements, err := ParsePlacements(strings.NewReader(placementsCSV))
	require.NoError(t, err)
	require.Len(t, placements, 3)

	first := placements[0]
	assert.Equal(t, "S1", first.StudentID)
	assert.Equal(t, "张三", first.StudentName)
	assert.Equal(t, domain.YearGroup1, first.Year)
	assert.True(t, first.IsDriver)
	assert.Equal(t, int32(4), first.Duration)
	assert.Equal(t, time.Date(2025, 2, 24, 0, 0, 0, 0, time.UTC), first.StartDate)
	assert.Equal(t, []string{"Ward A", "Ward B"}, first.PreviousWards)
	assert.Equal(t, []string{"Medicine"}, first.PreviousDepartments)
	assert.Equal(t, []string{"green", "amber"}, first.AllowedCovidStatuses)

	assert.Nil(t, placements[1].PreviousWards)
	assert.True(t, placements[1].StartDate.IsZero())

	assert.True(t, placements[2].NurseAssociate)
	assert.Equal(t, domain.YearGroupNurseAssociate, placements[2].CapacityGroup())
}

func TestParsePlacementsRejectsBadRows(t *testing.T) {
	header := strings.Join(PlacementHeaders, ",") + "\n"

	tests := []struct {
		name string
		row  string
		want string
	}{
		{"zero duration", "S1,张三,2024A,P1,Year 1,false,false,0,0,,,,\n", "时长"},
		{"unknown year", "S1,张三,2024A,P1,Year 9,false,false,0,2,,,,\n", "Year"},
		{"bad bool", "S1,张三,2024A,P1,Year 1,maybe,false,0,2,,,,\n", "nurse_associate"},
		{"bad week", "S1,张三,2024A,P1,Year 1,false,false,x,2,,,,\n", "start_week"},
		{"bad date", "S1,张三,2024A,P1,Year 1,false,false,0,2,24/02/2025,,,\n", "开始日期"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlacements(strings.NewReader(header + tt.row))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

type fakeImporter struct {
	calls      int
	wards      []*domain.Ward
	placements []*domain.Placement
	err        error
}

func (f *fakeImporter) ImportWardsAndPlacements(wards []*domain.Ward, placements []*domain.Placement) error {
	f.calls++
	f.wards = wards
	f.placements = placements
	return f.err
}

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportDataWritesEverythingAtOnce(t *testing.T) {
	importer := &fakeImporter{}

	err := ImportData(importer, writeFile(t, "wards.csv", wardsCSV), writeFile(t, "placements.csv", placementsCSV))
	require.NoError(t, err)
	assert.Equal(t, 1, importer.calls)
	assert.Len(t, importer.wards, 2)
	assert.Len(t, importer.placements, 3)
}

func TestImportDataWritesNothingWhenParsingFails(t *testing.T) {
	importer := &fakeImporter{}
	badPlacements := strings.Join(PlacementHeaders, ",") + "\nS1,张三,2024A,P1,Year 1,false,false,0,0,,,,\n"

	err := ImportData(importer, writeFile(t, "wards.csv", wardsCSV), writeFile(t, "placements.csv", badPlacements))
	require.ErrorIs(t, err, scheduler.ErrInvariantViolation)
	assert.Zero(t, importer.calls)

	err = ImportData(importer, filepath.Join(t.TempDir(), "missing.csv"), writeFile(t, "placements.csv", placementsCSV))
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Zero(t, importer.calls)
}

func TestImportDataReturnsWriteFailure(t *testing.T) {
	importer := &fakeImporter{err: errors.New("duplicate key value violates unique constraint \"wards_name_key\"")}

	err := ImportData(importer, writeFile(t, "wards.csv", wardsCSV), writeFile(t, "placements.csv", placementsCSV))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wards_name_key")
	assert.Equal(t, 1, importer.calls)
}
