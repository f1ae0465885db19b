// Package tokens provides a rough token estimator and a history trimmer so
// requests stay inside a configured context budget. The estimate is
// intentionally coarse (~4 characters per token plus a small per-message
// overhead); it only needs to be stable, not accurate.
package tokens

import (
	"unicode/utf8"

	"github.com/8agana/polychat/core"
)

// perMessageOverhead approximates the wire framing cost of one message.
const perMessageOverhead = 6

// Estimate returns an approximate token count for text.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// EstimateMessages returns the approximate token total for a message slice.
func EstimateMessages(messages []core.Message) int {
	total := 0
	for _, m := range messages {
		total += perMessageOverhead + Estimate(m.Content)
	}
	return total
}

// TrimToBudget drops the oldest messages until the estimate fits within
// maxContext minus reserveOutput. The leading system message, if present, is
// always kept; the newest messages survive first. A zero budget disables
// trimming.
func TrimToBudget(messages []core.Message, maxContext, reserveOutput int) []core.Message {
	if maxContext <= 0 {
		return messages
	}
	budget := maxContext - reserveOutput
	if budget < 0 {
		budget = 0
	}

	var pinned, rest []core.Message
	if len(messages) > 0 && messages[0].Role == core.RoleSystem {
		pinned = messages[:1]
		rest = messages[1:]
	} else {
		rest = messages
	}

	used := EstimateMessages(pinned)
	if used >= budget {
		return pinned
	}

	// Walk newest-first, keep what fits, then restore order.
	var kept []core.Message
	for i := len(rest) - 1; i >= 0; i-- {
		cost := perMessageOverhead + Estimate(rest[i].Content)
		if used+cost > budget {
			break
		}
		kept = append(kept, rest[i])
		used += cost
	}
	out := make([]core.Message, 0, len(pinned)+len(kept))
	out = append(out, pinned...)
	for i := len(kept) - 1; i >= 0; i-- {
		out = append(out, kept[i])
	}
	return out
}
