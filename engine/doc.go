// Package engine runs the chat turn loop: send the conversation to a
// provider, execute any tool calls it requests, feed the results back, and
// repeat until the model produces a final text answer or the turn limit is
// reached.
//
// Each turn is staged on a clone of the conversation and committed only
// after the provider call and all tool executions succeed, so cancellation
// or a transport failure mid-turn leaves the persisted state exactly as it
// was after the last completed turn.
//
// Tool failures are recovered locally: a policy violation, unknown tool,
// malformed arguments or execution error becomes the tool call's result (a
// small JSON error document) and the loop continues. Only provider and
// persistence failures abort a run.
package engine
