// Package qa 组装问答管线：历史感知的问题改写、答案缓存、混合检索与
// 带来源的答案合成。
//
// Orchestrator 是唯一的入口。一次请求依次经过
// Validating → Rewriting → CacheCheck → Retrieving → Synthesizing →
// CachePopulate → Respond，任何阶段失败都进入 Failed 并返回带错误码的
// *types.Error。
package qa
