// Package telemetry 集中安装 OpenTelemetry 的 TracerProvider、MeterProvider
// 与 W3C 传播器，导出到 OTLP gRPC collector。
// HTTP 中间件、问答编排、检索与生成调用各自从全局 provider 取 tracer。
// 未启用时保持 noop，不连接任何外部服务。
package telemetry
