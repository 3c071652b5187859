package scheduler

import (
	"math/rand"
	"slices"
)

// breed 根据当前（已评估的）种群产生下一代，子代尚未评估
func (s *Scheduler) breed(rng *rand.Rand, pop []*Chromosome) []*Chromosome {
	size := int(s.parameters.PopulationSize)
	newPop := make([]*Chromosome, 0, size)

	// 保留精英，同适应度时保持原顺序
	sorted := slices.Clone(pop)
	slices.SortStableFunc(sorted, func(a, b *Chromosome) int {
		switch {
		case a.fitness > b.fitness:
			return -1
		case a.fitness < b.fitness:
			return 1
		default:
			return 0
		}
	})
	newPop = append(newPop, sorted[:int(s.parameters.EliteCount)]...)

	// 剩余位置由选择、交叉和变异产生
	for len(newPop) < size {
		p1 := s.selectByRoulette(rng, pop)
		p2 := s.selectByRoulette(rng, pop)

		var child *Chromosome
		if rng.Float64() < s.parameters.CrossoverRate {
			child = s.uniformCrossover(rng, p1, p2)
		} else {
			child = p1.clone()
		}

		s.mutate(rng, child)
		newPop = append(newPop, child)
	}

	return newPop
}

// 使用轮盘赌来进行选择（有放回）
func (s *Scheduler) selectByRoulette(rng *rand.Rand, pop []*Chromosome) *Chromosome {
	sumFit := 0.0
	for _, ch := range pop {
		sumFit += ch.fitness
	}

	// 所有适应度都为 0 时退化为均匀选择
	if sumFit <= 0 {
		return pop[rng.Intn(len(pop))]
	}

	pick := rng.Float64() * sumFit
	partial := 0.0
	for _, ch := range pop {
		partial += ch.fitness
		if partial >= pick {
			return ch
		}
	}

	// 理论上不会运行到这个地方
	return pop[len(pop)-1]
}

// 均匀交叉
// 实习之间没有空间上的相邻关系，所以逐个基因等概率地从两个父本中选取，而不是单点切分
func (s *Scheduler) uniformCrossover(rng *rand.Rand, p1 *Chromosome, p2 *Chromosome) *Chromosome {
	child := newChromosome(len(p1.genes))
	for i := range child.genes {
		if rng.Intn(2) == 0 {
			child.genes[i] = p1.genes[i]
		} else {
			child.genes[i] = p2.genes[i]
		}
	}
	return child
}

// 变异
// 每个基因以 MutationRate 的概率被重新分配到另一个满足硬约束的病房
// 候选病房按子代自身的占用情况过滤，没有候选时保持原样
func (s *Scheduler) mutate(rng *rand.Rand, ch *Chromosome) {
	occ := newOccupancy(len(s.wards), len(s.slots))
	for i, gene := range ch.genes {
		if ward, ok := gene.Ward(); ok {
			occ.add(s.placements[i], ward)
		}
	}

	for i := range ch.genes {
		if rng.Float64() >= s.parameters.MutationRate {
			continue
		}

		p := s.placements[i]
		current, assigned := ch.genes[i].Ward()
		exclude := -1
		if assigned {
			occ.remove(p, current)
			exclude = current
		}

		candidates := s.candidateWards(i, occ, exclude)
		if len(candidates) == 0 {
			if assigned {
				occ.add(p, current)
			}
			continue
		}

		ward := s.pickWard(rng, candidates, p, occ)
		ch.genes[i] = Assigned(ward)
		occ.add(p, ward)
	}
}
