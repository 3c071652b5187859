package scheduler

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/utils"
)

const ComparisonFileName = "schedule_comparison.csv"

const unassignedWard = "未分配"

// ExportTable 是一张可以导出为表格文件的二维表
type ExportTable struct {
	FileName  string           `json:"fileName"`
	YearGroup domain.YearGroup `json:"yearGroup,omitempty"` // 为空表示汇总表
	Header    []string         `json:"header"`
	Rows      [][]string       `json:"rows"`
}

var scheduleHeader = []string{"学号", "姓名", "实习", "课程", "开始日期", "开始周", "时长（周）", "病房", "科室"}

var comparisonHeader = []string{
	"排班表文件名",
	"是否可行",
	"不可行原因",
	"迭代次数",
	"适应度",
	"病房利用率",
	"科室多样性",
	"病房多样性",
	"实习数量不正确的学生数",
	"时长不正确的实习数",
	"超出容量的病房周数",
	"时间重叠的学生数",
}

// BuildScheduleTables 为一份排班表的每个年级生成一张表，按学生姓名和开始周排序
func BuildScheduleTables(result *domain.ScheduleResult, wards []*domain.Ward, placements []*domain.Placement) []ExportTable {
	wardByID := make(map[int64]*domain.Ward, len(wards))
	for _, w := range wards {
		wardByID[w.ID] = w
	}
	placementByID := make(map[int64]*domain.Placement, len(placements))
	for _, p := range placements {
		placementByID[p.ID] = p
	}

	grouped := make(map[domain.YearGroup][]*domain.Placement)
	assigned := make(map[int64]*domain.Ward, len(result.Assignments))
	for _, a := range result.Assignments {
		p, exists := placementByID[a.PlacementID]
		if !exists {
			continue
		}
		grouped[p.CapacityGroup()] = append(grouped[p.CapacityGroup()], p)
		if a.WardID != nil {
			assigned[p.ID] = wardByID[*a.WardID]
		}
	}

	tables := make([]ExportTable, 0, len(grouped))
	for _, year := range domain.YearGroups {
		ps := grouped[year]
		if len(ps) == 0 {
			continue
		}

		slices.SortStableFunc(ps, func(a, b *domain.Placement) int {
			if c := strings.Compare(utils.NameSortKey(a.StudentName), utils.NameSortKey(b.StudentName)); c != 0 {
				return c
			}
			return int(a.Start - b.Start)
		})

		table := ExportTable{
			FileName:  yearGroupFileName(result.FileName, year),
			YearGroup: year,
			Header:    scheduleHeader,
			Rows:      make([][]string, 0, len(ps)),
		}
		for _, p := range ps {
			wardName, department := unassignedWard, ""
			if w := assigned[p.ID]; w != nil {
				wardName, department = w.Name, w.Department
			}
			startDate := ""
			if !p.StartDate.IsZero() {
				startDate = p.StartDate.Format("2006-01-02")
			}
			table.Rows = append(table.Rows, []string{
				p.StudentID,
				p.StudentName,
				p.Name,
				p.Cohort,
				startDate,
				strconv.Itoa(int(p.Start) + 1),
				strconv.Itoa(int(p.Duration)),
				wardName,
				department,
			})
		}
		tables = append(tables, table)
	}

	return tables
}

// BuildComparisonTable 把多次运行的结果并排放在一张表中，方便比较
func BuildComparisonTable(results []domain.ScheduleResult) ExportTable {
	table := ExportTable{
		FileName: ComparisonFileName,
		Header:   comparisonHeader,
		Rows:     make([][]string, 0, len(results)),
	}

	for _, r := range results {
		table.Rows = append(table.Rows, []string{
			r.FileName,
			strconv.FormatBool(r.Viable),
			r.NonViableReason,
			strconv.Itoa(int(r.Iterations)),
			strconv.FormatFloat(r.Fitness, 'f', 4, 64),
			strconv.FormatFloat(r.MeanWardUtil, 'f', 2, 64),
			strconv.FormatFloat(r.MeanUniqDeps, 'f', 2, 64),
			strconv.FormatFloat(r.MeanUniqWards, 'f', 2, 64),
			strconv.Itoa(int(r.NumIncorrNumPlac)),
			strconv.Itoa(int(r.NumIncorrectLength)),
			strconv.Itoa(int(r.NumCapacityExceeded)),
			strconv.Itoa(int(r.NumDoubleBooked)),
		})
	}

	return table
}

// BuildExport 汇总表排在最前，之后是每份排班表按年级拆分的表
func BuildExport(results []domain.ScheduleResult, wards []*domain.Ward, placements []*domain.Placement) []ExportTable {
	tables := []ExportTable{BuildComparisonTable(results)}
	for i := range results {
		tables = append(tables, BuildScheduleTables(&results[i], wards, placements)...)
	}
	return tables
}

func WriteCSV(w io.Writer, table ExportTable) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Header); err != nil {
		return err
	}
	if err := writer.WriteAll(table.Rows); err != nil {
		return err
	}
	return writer.Error()
}

func yearGroupFileName(base string, year domain.YearGroup) string {
	return fmt.Sprintf("%s_%s.csv", base, strings.ReplaceAll(strings.ToLower(string(year)), " ", "_"))
}
