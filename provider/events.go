package provider

// Event is one normalized streaming event. The closed set of
// implementations mirrors what any of the supported wire protocols can
// express: incremental text, the lifecycle of a streamed tool call, and
// end of stream.
type Event interface {
	isEvent()
}

// TextDelta carries an incremental fragment of assistant text.
type TextDelta struct {
	Text string
}

// ToolCallStarted announces a new tool call. Subsequent ToolCallArgDelta
// events with the same ID extend its argument document.
type ToolCallStarted struct {
	ID   string
	Name string
}

// ToolCallArgDelta carries an argument fragment for an in-flight tool call.
// Fragments concatenate in arrival order.
type ToolCallArgDelta struct {
	ID       string
	Fragment string
}

// ToolCallCompleted marks a tool call's argument document as complete.
type ToolCallCompleted struct {
	ID string
}

// Done marks the end of the stream.
type Done struct {
	Usage *Usage
}

func (TextDelta) isEvent()         {}
func (ToolCallStarted) isEvent()   {}
func (ToolCallArgDelta) isEvent()  {}
func (ToolCallCompleted) isEvent() {}
func (Done) isEvent()              {}
