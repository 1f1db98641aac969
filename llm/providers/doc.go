/*
包 providers 提供 OpenAI 兼容接口的公共基础：请求/响应结构、
HTTP 状态到 llm.Error 的映射以及错误消息解析。具体实现位于
openaicompat 子包。
*/
package providers
