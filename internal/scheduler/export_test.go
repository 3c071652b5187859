package scheduler

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

func exportFixture() (*domain.ScheduleResult, []*domain.Ward, []*domain.Placement) {
	wards := []*domain.Ward{testWard(1, 2, 2), testWard(2, 2, 2)}

	zhang := testPlacement(1, "S1", 4, 2)
	zhang.StudentName = "张三"
	li := testPlacement(2, "S2", 0, 2)
	li.StudentName = "李四"
	zhangEarly := testPlacement(3, "S1", 0, 2)
	zhangEarly.StudentName = "张三"
	associate := testPlacement(4, "S3", 1, 3)
	associate.StudentName = "Alice"
	associate.NurseAssociate = true

	ward1, ward2 := int64(1), int64(2)
	result := &domain.ScheduleResult{
		FileName: "placement_schedule_run_0_generation_5_viable_false",
		Assignments: []domain.Assignment{
			{PlacementID: 1, WardID: &ward1},
			{PlacementID: 2, WardID: &ward2},
			{PlacementID: 3, WardID: &ward2},
			{PlacementID: 4},
		},
	}
	return result, wards, []*domain.Placement{zhang, li, zhangEarly, associate}
}

func TestBuildScheduleTables(t *testing.T) {
	result, wards, placements := exportFixture()

	tables := BuildScheduleTables(result, wards, placements)
	require.Len(t, tables, 2)

	year1 := tables[0]
	assert.Equal(t, domain.YearGroup1, year1.YearGroup)
	assert.Equal(t, "placement_schedule_run_0_generation_5_viable_false_year_1.csv", year1.FileName)
	require.Len(t, year1.Rows, 3)
	// 李 (li) 排在 张 (zhang) 之前，同一学生按开始周排序
	assert.Equal(t, []string{"S2", "李四", "S2_P2", "UOP_BSc Nursing Sep-23", "", "1", "2", "Ward 2", "Dep 2"}, year1.Rows[0])
	assert.Equal(t, "S1_P3", year1.Rows[1][2])
	assert.Equal(t, "S1_P1", year1.Rows[2][2])
	assert.Equal(t, "5", year1.Rows[2][5])
	assert.Equal(t, "Ward 1", year1.Rows[2][7])

	associate := tables[1]
	assert.Equal(t, domain.YearGroupNurseAssociate, associate.YearGroup)
	assert.Equal(t, "placement_schedule_run_0_generation_5_viable_false_nurse_associate.csv", associate.FileName)
	require.Len(t, associate.Rows, 1)
	assert.Equal(t, unassignedWard, associate.Rows[0][7])
	assert.Empty(t, associate.Rows[0][8])
}

func TestBuildExportPutsComparisonFirst(t *testing.T) {
	result, wards, placements := exportFixture()
	result.Iterations = 5
	result.Fitness = 0.123456
	result.NonViableReason = "病房容量不足：1 个实习未能分配病房"

	tables := BuildExport([]domain.ScheduleResult{*result, *result}, wards, placements)
	require.Len(t, tables, 5)

	comparison := tables[0]
	assert.Equal(t, ComparisonFileName, comparison.FileName)
	assert.Empty(t, comparison.YearGroup)
	require.Len(t, comparison.Rows, 2)
	assert.Equal(t, result.FileName, comparison.Rows[0][0])
	assert.Equal(t, "false", comparison.Rows[0][1])
	assert.Equal(t, result.NonViableReason, comparison.Rows[0][2])
	assert.Equal(t, "5", comparison.Rows[0][3])
	assert.Equal(t, "0.1235", comparison.Rows[0][4])
	assert.Len(t, comparison.Rows[0], len(comparison.Header))
}

func TestWriteCSV(t *testing.T) {
	table := ExportTable{
		Header: []string{"病房", "备注"},
		Rows:   [][]string{{"Ward 1", "含有,逗号"}, {"Ward 2", ""}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, append([][]string{table.Header}, table.Rows...), records)
}
