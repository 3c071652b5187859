package utils

import (
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func TestNameSortKey(t *testing.T) {
	assert.Equal(t, "zhangsan", NameSortKey("张三"))
	assert.Equal(t, "alice smith", NameSortKey("  Alice Smith "))

	names := []string{"王五", "李四", "Bob", "张三"}
	slices.SortFunc(names, func(a, b string) int {
		return strings.Compare(NameSortKey(a), NameSortKey(b))
	})
	assert.Equal(t, []string{"Bob", "李四", "王五", "张三"}, names)
}

func TestGenerateRandomCoordinator(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	user, err := GenerateRandomCoordinator(rng, "password", "example.com")
	require.NoError(t, err)

	assert.Equal(t, domain.RoleCoordinator, user.Role)
	assert.NotEmpty(t, user.FullName)
	assert.Equal(t, user.Username+"@example.com", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password")))
}

func TestValidateWeekWindow(t *testing.T) {
	assert.NoError(t, ValidateWeekWindow(0, 10))
	assert.Error(t, ValidateWeekWindow(-1, 10))
	assert.Error(t, ValidateWeekWindow(5, 5))
}

func TestFilterPlacementsByWindow(t *testing.T) {
	placements := []*domain.Placement{
		{ID: 1, Start: 0},
		{ID: 2, Start: 4},
		{ID: 3, Start: 10},
	}

	filtered := FilterPlacementsByWindow(placements, 1, 10)
	require.Len(t, filtered, 1)
	assert.Equal(t, int64(2), filtered[0].ID)
}

func TestValidateScheduleAssignments(t *testing.T) {
	wards := []*domain.Ward{{ID: 1}, {ID: 2}}
	placements := []*domain.Placement{{ID: 10}, {ID: 11}}
	ward1, ward9 := int64(1), int64(9)

	ok := &domain.ScheduleResult{Assignments: []domain.Assignment{
		{PlacementID: 10, WardID: &ward1},
		{PlacementID: 11},
	}}
	assert.NoError(t, ValidateScheduleAssignments(ok, wards, placements))

	duplicated := &domain.ScheduleResult{Assignments: []domain.Assignment{
		{PlacementID: 10},
		{PlacementID: 10, WardID: &ward1},
	}}
	assert.Error(t, ValidateScheduleAssignments(duplicated, wards, placements))

	unknownWard := &domain.ScheduleResult{Assignments: []domain.Assignment{{PlacementID: 10, WardID: &ward9}}}
	assert.Error(t, ValidateScheduleAssignments(unknownWard, wards, placements))

	unknownPlacement := &domain.ScheduleResult{Assignments: []domain.Assignment{{PlacementID: 12}}}
	assert.Error(t, ValidateScheduleAssignments(unknownPlacement, wards, placements))
}

func TestCheckCapacity(t *testing.T) {
	expired, expiring := int32(2), int32(8)
	wards := []*domain.Ward{
		{ID: 1, Name: "A", Capacity: 3, Year1Capacity: 2, Year2Capacity: 1, AuditExpiryWeek: &expired},
		{ID: 2, Name: "B", Capacity: 2, Year1Capacity: 1, NurseAssociateCapacity: 1, AuditExpiryWeek: &expiring},
		{ID: 3, Name: "C", Capacity: 1, Year3Capacity: 1},
	}
	placements := []*domain.Placement{
		{StudentID: "s1", Year: domain.YearGroup1},
		{StudentID: "s1", Year: domain.YearGroup1},
		{StudentID: "s2", Year: domain.YearGroup2},
		{StudentID: "s3", Year: domain.YearGroup2},
		{StudentID: "s4", Year: domain.YearGroup1, NurseAssociate: true},
	}
	cohorts := map[string]string{
		"s1": "Sep-23",
		"s5": "Mar-24",
		"s6": "Mar-24",
		"s7": "Sep-22",
	}

	report := CheckCapacity(wards, placements, cohorts, 2, 10)

	require.Len(t, report.YearGroups, 4)
	assert.Equal(t, YearGroupCapacity{YearGroup: domain.YearGroup1, WardCapacity: 3, StudentCount: 1, Sufficient: true}, report.YearGroups[0])
	assert.Equal(t, YearGroupCapacity{YearGroup: domain.YearGroup2, WardCapacity: 1, StudentCount: 2, Sufficient: false}, report.YearGroups[1])
	assert.Equal(t, int64(1), report.YearGroups[3].StudentCount)
	assert.Equal(t, YearGroupCapacity{WardCapacity: 6, StudentCount: 4, Sufficient: true}, report.Total)

	assert.Equal(t, []string{"A"}, report.ExpiredWards)
	assert.Equal(t, []string{"B"}, report.ExpiringWards)
	assert.Equal(t, []string{"Mar-24", "Sep-22"}, report.CohortsWithoutPlan)
}
