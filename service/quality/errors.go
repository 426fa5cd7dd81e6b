package quality

import "errors"

// ErrEngine 运行级失败：数据集拉取失败或结果持久化失败
// 运行原子失败，不会留下部分写入的执行记录
var ErrEngine = errors.New("质量检测运行失败")
