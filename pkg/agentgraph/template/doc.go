// Package template renders ${path} placeholders against workflow state.
//
// agentgraph uses it to build agent task descriptions from a node's
// configured task text:
//
//	task: "Summarize ${input.topic} using the notes in ${research.output}"
//
// Paths follow the same dotted lookup as package expr. Maps and slices
// render as compact JSON so structured upstream results can be embedded in
// prompts. Unknown paths are kept, emptied or reported depending on
// MissingAction.
package template
