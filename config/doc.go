// Package config 提供 DocQA 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 DOCQA_）的顺序叠加，
// 最后执行校验器。每个配置段都有对应的 Default*Config 函数。
package config
