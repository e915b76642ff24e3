// Package llm provides an OpenAI-compatible chat completion client used to
// turn press emails into structured JSON.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive the raw JSON payload.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: tolerant decoder for model output (code fences, prose).
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions and
// network timeouts with exponential backoff (base 1s, max 10s, up to 5
// attempts by default). A Retry-After header overrides the computed delay.
// Context cancellation aborts retries immediately.
package llm
