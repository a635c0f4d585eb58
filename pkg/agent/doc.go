// Package agent wraps the language-model side of a negotiation: provider
// clients, the per-role proxies that turn a transcript into the next
// utterance, offer extraction, and acceptance detection. All provider calls
// run under a bounded retry policy with per-call timeouts.
package agent
