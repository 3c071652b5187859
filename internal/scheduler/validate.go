package scheduler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateParameters(p *Parameters, numSlots int, numWards int, numPlacements int) error {
	switch {
	case p.PopulationSize <= 0:
		return fmt.Errorf("%w: 种群大小必须为正数", ErrInvalidConfig)
	case p.MaxGenerations <= 0:
		return fmt.Errorf("%w: 最大迭代次数必须为正数", ErrInvalidConfig)
	case numSlots <= 0:
		return fmt.Errorf("%w: 排班周期长度必须为正数", ErrInvalidConfig)
	case numWards == 0:
		return fmt.Errorf("%w: 病房列表为空", ErrInvalidConfig)
	case numPlacements == 0:
		return fmt.Errorf("%w: 实习列表为空", ErrInvalidConfig)
	case p.EliteCount < 1 || p.EliteCount > p.PopulationSize:
		return fmt.Errorf("%w: 精英数量必须在 1 到种群大小之间", ErrInvalidConfig)
	case p.CrossoverRate < 0 || p.CrossoverRate > 1:
		return fmt.Errorf("%w: 交叉概率必须在 0 到 1 之间", ErrInvalidConfig)
	case p.MutationRate < 0 || p.MutationRate > 1:
		return fmt.Errorf("%w: 变异概率必须在 0 到 1 之间", ErrInvalidConfig)
	case p.TargetFitness <= 0:
		return fmt.Errorf("%w: 目标适应度必须为正数", ErrInvalidConfig)
	case p.StagnationWindow < 0 || p.RepeatTolerance < 0 || p.Workers < 0:
		return fmt.Errorf("%w: 停滞窗口、重复容忍度和协程数不能为负数", ErrInvalidConfig)
	case p.UtilWeight < 0 || p.DepsWeight < 0 || p.WardsWeight < 0 || p.PenaltyWeight < 0:
		return fmt.Errorf("%w: 权重不能为负数", ErrInvalidConfig)
	case p.UtilWeight+p.DepsWeight+p.WardsWeight == 0:
		return fmt.Errorf("%w: 目标权重之和必须为正数", ErrInvalidConfig)
	}

	return nil
}

// ValidateWard 检查病房的容量约束，导入病房时和构造调度器时都会调用
// DYAD 的减半规则应该在数据准备阶段就已经应用，这里只检查，不做修正
func ValidateWard(w *domain.Ward) error {
	if err := validate.Struct(w); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return fmt.Errorf("%w: 病房 %q 的字段 %s 不合法", ErrInvariantViolation, w.Name, validationErrors[0].Field())
		}
		return err
	}

	for _, year := range domain.YearGroups {
		if w.CapacityFor(year) > w.Capacity {
			return fmt.Errorf("%w: 病房 %q 的 %s 容量 %d 超过了总容量 %d", ErrInvariantViolation, w.Name, year, w.CapacityFor(year), w.Capacity)
		}
	}

	if w.DYAD {
		half := w.Capacity / 2
		for _, year := range []domain.YearGroup{domain.YearGroup1, domain.YearGroup2, domain.YearGroup3} {
			if w.CapacityFor(year) > half {
				return fmt.Errorf("%w: DYAD 病房 %q 的 %s 容量 %d 超过了总容量的一半 %d", ErrInvariantViolation, w.Name, year, w.CapacityFor(year), half)
			}
		}
	}

	return nil
}

func ValidatePlacement(p *domain.Placement) error {
	if p.Duration <= 0 {
		return fmt.Errorf("%w: 实习 %q 的时长必须为正数", ErrInvariantViolation, p.Name)
	}

	if err := validate.Struct(p); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return fmt.Errorf("%w: 实习 %q 的字段 %s 不合法", ErrInvariantViolation, p.Name, validationErrors[0].Field())
		}
		return err
	}

	return nil
}
