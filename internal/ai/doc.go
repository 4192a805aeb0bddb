// Package ai talks to the external language services behind capsule
// publication: an Anthropic Messages client used for polishing, metadata and
// writing prompts, and an OpenAI-compatible Whisper transcriber.
//
// Every call is bounded by the caller's context. Transient failures (408,
// 429, 5xx, timeouts) are retried with exponential backoff that honors
// Retry-After. Callers decide what to do on error; nothing here substitutes
// fallback values.
package ai
