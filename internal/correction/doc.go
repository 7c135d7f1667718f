// Package correction talks to the chat-completions API that corrects
// subtitle text. The Client handles transport, retries, and the JSON
// response contract; the Fixer drives whole documents through the client
// in fixed-size batches with per-batch fallback.
package correction
