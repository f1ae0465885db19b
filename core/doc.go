// Package core holds the normalized conversation model shared by every other
// package: messages, tool calls, conversations and the planning/building mode
// enum. Provider adapters translate these types to and from vendor wire
// formats; the engine mutates a Conversation exclusively through its
// append methods so the log stays ordered and append-only.
package core
