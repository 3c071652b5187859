package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/scheduler"
)

// 导入的表格都是已经清洗过的，列名固定
var (
	WardHeaders = []string{
		"name", "department", "capacity",
		"year1_capacity", "year2_capacity", "year3_capacity", "nurse_associate_capacity",
		"audit_expiry_week", "covid_status", "needs_driver", "dyad",
	}
	PlacementHeaders = []string{
		"student_id", "student_name", "cohort", "name", "year", "nurse_associate", "is_driver",
		"start_week", "duration", "start_date",
		"previous_wards", "previous_departments", "allowed_covid_statuses",
	}
)

// 单元格中的多个值用 | 分隔
const listSeparator = "|"

const dateLayout = "2006-01-02"

// readRecords 按表头把每一行读成 map
func readRecords(r io.Reader, required []string) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	for _, key := range required {
		found := false
		for _, header := range headers {
			if header == key {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("没有找到列 %q", key)
		}
	}

	var records []map[string]string
	for {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("读取文件失败: %w", err)
		}

		record := make(map[string]string, len(headers))
		for i, value := range row {
			record[headers[i]] = strings.TrimSpace(value)
		}
		records = append(records, record)
	}

	return records, nil
}

func parseInt32(record map[string]string, key string) (int32, error) {
	value := record[key]
	if value == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("列 %q 的值 %q 不是整数", key, value)
	}
	return int32(n), nil
}

func parseBool(record map[string]string, key string) (bool, error) {
	value := strings.ToLower(record[key])
	switch value {
	case "", "0", "false", "no", "n":
		return false, nil
	case "1", "true", "yes", "y":
		return true, nil
	default:
		return false, fmt.Errorf("列 %q 的值 %q 不是布尔值", key, record[key])
	}
}

func parseList(value string) []string {
	if value == "" {
		return nil
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, listSeparator) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// ParseWards 读取病房表，每个病房都会经过容量约束检查
func ParseWards(r io.Reader) ([]*domain.Ward, error) {
	records, err := readRecords(r, WardHeaders)
	if err != nil {
		return nil, err
	}

	wards := make([]*domain.Ward, 0, len(records))
	for i, record := range records {
		w := &domain.Ward{
			Name:        record["name"],
			Department:  record["department"],
			CovidStatus: record["covid_status"],
		}

		ints := []struct {
			key string
			dst *int32
		}{
			{"capacity", &w.Capacity},
			{"year1_capacity", &w.Year1Capacity},
			{"year2_capacity", &w.Year2Capacity},
			{"year3_capacity", &w.Year3Capacity},
			{"nurse_associate_capacity", &w.NurseAssociateCapacity},
		}
		for _, field := range ints {
			if *field.dst, err = parseInt32(record, field.key); err != nil {
				return nil, fmt.Errorf("第 %d 行: %w", i+2, err)
			}
		}

		// 空表示审核永不过期
		if record["audit_expiry_week"] != "" {
			week, err := parseInt32(record, "audit_expiry_week")
			if err != nil {
				return nil, fmt.Errorf("第 %d 行: %w", i+2, err)
			}
			w.AuditExpiryWeek = &week
		}

		if w.NeedsDriver, err = parseBool(record, "needs_driver"); err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", i+2, err)
		}
		if w.DYAD, err = parseBool(record, "dyad"); err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", i+2, err)
		}

		if err := scheduler.ValidateWard(w); err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", i+2, err)
		}

		wards = append(wards, w)
	}

	return wards, nil
}

// ParsePlacements 读取实习表，同一个学生可以有多行
func ParsePlacements(r io.Reader) ([]*domain.Placement, error) {
	records, err := readRecords(r, PlacementHeaders)
	if err != nil {
		return nil, err
	}

	placements := make([]*domain.Placement, 0, len(records))
	for i, record := range records {
		p := &domain.Placement{
			StudentID:            record["student_id"],
			StudentName:          record["student_name"],
			Cohort:               record["cohort"],
			Name:                 record["name"],
			Year:                 domain.YearGroup(record["year"]),
			PreviousWards:        parseList(record["previous_wards"]),
			PreviousDepartments:  parseList(record["previous_departments"]),
			AllowedCovidStatuses: parseList(record["allowed_covid_statuses"]),
		}

		if p.NurseAssociate, err = parseBool(record, "nurse_associate"); err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", i+2, err)
		}
		if p.IsDriver, err = parseBool(record, "is_driver"); err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", i+2, err)
		}
		if p.Start, err = parseInt32(record, "start_week"); err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", i+2, err)
		}
		if p.Duration, err = parseInt32(record, "duration"); err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", i+2, err)
		}

		if value := record["start_date"]; value != "" {
			if p.StartDate, err = time.Parse(dateLayout, value); err != nil {
				return nil, fmt.Errorf("第 %d 行: 开始日期 %q 格式不正确", i+2, value)
			}
		}

		if err := scheduler.ValidatePlacement(p); err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", i+2, err)
		}

		placements = append(placements, p)
	}

	return placements, nil
}

func parseFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parse(file)
}

// Importer 由 repository.Repository 实现
type Importer interface {
	ImportWardsAndPlacements(wards []*domain.Ward, placements []*domain.Placement) error
}

// ImportData 把病房表和实习表导入数据库
// 两个表都解析成功之后才开始写入，写入在一个事务中完成，失败时数据库保持不变
func ImportData(importer Importer, wardsFile string, placementsFile string) error {
	wards, err := parseFile(wardsFile, ParseWards)
	if err != nil {
		return fmt.Errorf("解析病房表失败: %w", err)
	}

	placements, err := parseFile(placementsFile, ParsePlacements)
	if err != nil {
		return fmt.Errorf("解析实习表失败: %w", err)
	}

	if err := importer.ImportWardsAndPlacements(wards, placements); err != nil {
		return fmt.Errorf("写入数据库失败: %w", err)
	}

	slog.Info("导入数据完成", "wards", len(wards), "placements", len(placements))
	return nil
}
