package scheduler

import "github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"

// Gene: 表示某个实习的病房分配决策
// 只能通过 Assigned 或 Unassigned 构造，使用方必须显式处理未分配的情况
type Gene struct {
	ward     int // 病房在 Scheduler.wards 中的下标
	assigned bool
}

// Unassigned 表示没有任何病房满足硬约束
var Unassigned = Gene{}

func Assigned(ward int) Gene {
	return Gene{ward: ward, assigned: true}
}

// Ward 返回分配的病房下标，未分配时第二个返回值为 false
func (g Gene) Ward() (int, bool) {
	return g.ward, g.assigned
}

// ScheduleScores 正向目标
type ScheduleScores struct {
	MeanWardUtil  float64 `json:"meanWardUtil"`
	MeanUniqDeps  float64 `json:"meanUniqDeps"`
	MeanUniqWards float64 `json:"meanUniqWards"`
}

// QualityMetrics 违反硬约束的计数
type QualityMetrics struct {
	NumIncorrNumPlac    int `json:"numIncorrNumPlac"`
	NumIncorrectLength  int `json:"numIncorrectLength"`
	NumCapacityExceeded int `json:"numCapacityExceeded"`
	NumDoubleBooked     int `json:"numDoubleBooked"`
}

func (q QualityMetrics) Total() int {
	return q.NumIncorrNumPlac + q.NumIncorrectLength + q.NumCapacityExceeded + q.NumDoubleBooked
}

// Chromosome: 一份完整的排班表，genes[i] 对应 Scheduler.placements[i]
type Chromosome struct {
	genes           []Gene
	fitness         float64
	scores          ScheduleScores
	quality         QualityMetrics
	unassigned      int
	nonViableReason string
	fileName        string
	evaluated       bool
}

func newChromosome(n int) *Chromosome {
	return &Chromosome{
		genes: make([]Gene, n),
	}
}

// clone 只复制基因，评估结果需要重新计算
func (ch *Chromosome) clone() *Chromosome {
	c := newChromosome(len(ch.genes))
	copy(c.genes, ch.genes)
	return c
}

func (ch *Chromosome) Fitness() float64 {
	return ch.fitness
}

func (ch *Chromosome) Viable() bool {
	return ch.evaluated && ch.unassigned == 0 && ch.quality.Total() == 0
}

// 遗传算法参数
type Parameters struct {
	PopulationSize   int32   // 种群大小
	MaxGenerations   int32   // 最大迭代次数
	TargetFitness    float64 // 达到该适应度后停止
	StagnationWindow int32   // 连续多少代最优适应度没有提升就停止，为 0 时不检查
	CrossoverRate    float64 // 交叉概率
	MutationRate     float64 // 变异概率
	EliteCount       int32   // 精英数量
	RepeatTolerance  int32   // 重复病房/科室的容忍度
	UtilWeight       float64 // 病房利用率权重
	DepsWeight       float64 // 科室多样性权重
	WardsWeight      float64 // 病房多样性权重
	PenaltyWeight    float64 // 违反约束的惩罚权重
	Workers          int32   // 并行计算适应度的协程数，为 0 时不限制
}

// DefaultParameters 返回一组经验参数
func DefaultParameters() Parameters {
	return Parameters{
		PopulationSize:   100,
		MaxGenerations:   200,
		TargetFitness:    1.0,
		StagnationWindow: 30,
		CrossoverRate:    0.8,
		MutationRate:     0.02,
		EliteCount:       1,
		RepeatTolerance:  0,
		UtilWeight:       1.0,
		DepsWeight:       1.0,
		WardsWeight:      1.0,
		PenaltyWeight:    0.5,
	}
}

// ParametersFromRun 把任务中提交的参数转换为调度器参数
func ParametersFromRun(rp domain.RunParameters, workers int32) Parameters {
	return Parameters{
		PopulationSize:   rp.PopulationSize,
		MaxGenerations:   rp.MaxGenerations,
		TargetFitness:    rp.TargetFitness,
		StagnationWindow: rp.StagnationWindow,
		CrossoverRate:    rp.CrossoverRate,
		MutationRate:     rp.MutationRate,
		EliteCount:       rp.EliteCount,
		RepeatTolerance:  rp.RepeatTolerance,
		UtilWeight:       rp.UtilWeight,
		DepsWeight:       rp.DepsWeight,
		WardsWeight:      rp.WardsWeight,
		PenaltyWeight:    rp.PenaltyWeight,
		Workers:          workers,
	}
}

// ValidateRunParameters 检查提交任务时指定的参数
func ValidateRunParameters(rp domain.RunParameters) error {
	p := ParametersFromRun(rp, 0)
	return validateParameters(&p, 1, 1, 1)
}
