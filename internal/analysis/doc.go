// Package analysis turns market evidence into a validated verdict: it builds
// prompts, calls the completion service, repairs and validates whatever text
// comes back, and renders the result as markdown.
package analysis
