package scheduler

import "errors"

var (
	// ErrInvalidConfig 运行参数或输入规模不合法，在生成初始种群之前返回
	ErrInvalidConfig = errors.New("排班参数不合法")
	// ErrInvariantViolation 病房或实习数据违反了前置约束
	ErrInvariantViolation = errors.New("输入数据违反约束")
	// ErrInvalidState 在错误的阶段调用了调度器的方法
	ErrInvalidState = errors.New("调度器状态错误")
)
