// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models.
//
// Core goals:
//   - A single synchronous Generate call returning one core.AssistantMessage
//   - Normalize tool / function call representation (ToolDefinition, core.ToolCall)
//   - Classify failures as core.ErrModelUnavailable or core.ErrModelProtocol
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic, Gemini) implement the Model interface in
// subpackages so the orchestrator remains decoupled from vendor SDKs.
package model
