package scheduler

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

func testWard(id int64, capacity int32, year1 int32) *domain.Ward {
	return &domain.Ward{
		ID:            id,
		Name:          fmt.Sprintf("Ward %d", id),
		Department:    fmt.Sprintf("Dep %d", id),
		Capacity:      capacity,
		Year1Capacity: year1,
	}
}

func testPlacement(id int64, student string, start int32, duration int32) *domain.Placement {
	return &domain.Placement{
		ID:          id,
		StudentID:   student,
		StudentName: "Student " + student,
		Name:        fmt.Sprintf("%s_P%d", student, id),
		Cohort:      "UOP_BSc Nursing Sep-23",
		Duration:    duration,
		Start:       start,
		Year:        domain.YearGroup1,
	}
}

func testParameters() Parameters {
	p := DefaultParameters()
	p.PopulationSize = 20
	p.MaxGenerations = 15
	p.StagnationWindow = 0
	p.MutationRate = 0.1
	return p
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(t *testing.T, params Parameters, wards []*domain.Ward, placements []*domain.Placement, seed int64) *Scheduler {
	t.Helper()

	slots := domain.NewSlots(domain.HorizonWeeks(placements))
	s, err := New(params, slots, wards, placements, rand.New(rand.NewSource(seed)), WithLogger(discardLogger()))
	require.NoError(t, err)
	return s
}

// shortageScenario 3 个病房各有 2 个一年级名额，7 名一年级学生在第 0 周开始为期 2 周的实习
func shortageScenario() ([]*domain.Ward, []*domain.Placement) {
	wards := []*domain.Ward{testWard(1, 2, 2), testWard(2, 2, 2), testWard(3, 2, 2)}
	placements := make([]*domain.Placement, 0, 7)
	for i := int64(1); i <= 7; i++ {
		placements = append(placements, testPlacement(i, fmt.Sprintf("S%d", i), 0, 2))
	}
	return wards, placements
}

// mixedScenario 多名学生、多个年级、部分学生有多个实习
func mixedScenario() ([]*domain.Ward, []*domain.Placement) {
	wards := make([]*domain.Ward, 0, 6)
	for i := int64(1); i <= 6; i++ {
		w := testWard(i, 4, 2)
		w.Year2Capacity = 2
		w.Year3Capacity = 1
		w.Department = fmt.Sprintf("Dep %d", (i+1)/2)
		wards = append(wards, w)
	}
	wards[5].NeedsDriver = true

	placements := make([]*domain.Placement, 0, 24)
	id := int64(1)
	for s := 0; s < 8; s++ {
		student := fmt.Sprintf("S%d", s)
		year := domain.YearGroups[s%3]
		for k := int32(0); k < 2; k++ {
			p := testPlacement(id, student, k*4+int32(s%2), 3)
			p.Year = year
			p.IsDriver = s%4 == 0
			p.PreviousWards = []string{"Ward 1"}
			p.PreviousDepartments = []string{"Dep 1"}
			placements = append(placements, p)
			id++
		}
	}
	return wards, placements
}
