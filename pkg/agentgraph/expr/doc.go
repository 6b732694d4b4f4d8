/*
Package expr evaluates the edge conditions of agentgraph workflows.

Conditions are plain strings so they survive checkpointing and can be
written in workflow definition files. They are evaluated against the run
state, where every completed node's result is stored under the node id.

# Syntax

	<expr> := <expr> 'or' <expr>
	        | <expr> 'and' <expr>
	        | 'not' <expr> | '!' <expr>
	        | 'exists' <path>
	        | <value> <op> <value>
	        | <value>

	<op>    := '==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains' | 'in'
	<value> := 'string' | "string" | number | true | false | null | <path>
	<path>  := identifier ('.' identifier)*

or binds looser than and. Separators inside quoted literals are ignored.

# Paths

A path walks nested maps and slices of the state:

	review.score >= 0.8
	classify.output contains 'refund'
	items.0 == 'first'

An identifier that resolves to nothing is an error (UnresolvedError), not
a string. Use exists to test for presence, or WithLenientIdentifiers to
treat unknown identifiers as their own text.

# Comparison

== and != compare numerically when both sides are numbers, so 1 equals a
float64 1 decoded from JSON; otherwise values compare by their formatted
text. Ordering operators require numeric operands. contains tests
substrings, slice elements or map keys; "x in y" is "y contains x".
*/
package expr
