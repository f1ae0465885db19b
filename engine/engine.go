package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/8agana/polychat/core"
	"github.com/8agana/polychat/internal/tokens"
	"github.com/8agana/polychat/logging"
	"github.com/8agana/polychat/provider"
	"github.com/8agana/polychat/session"
	"github.com/8agana/polychat/tool"
)

// DefaultMaxTurns bounds the provider round trips of a single run. One
// turn is one provider call plus the execution of the tool calls it
// requested.
const DefaultMaxTurns = 8

// Outcome classifies how a run ended.
type Outcome int

const (
	// OutcomeFinal means the model produced a final text answer.
	OutcomeFinal Outcome = iota
	// OutcomeTurnLimit means the turn budget ran out before a final
	// answer; the conversation ends with answered tool results.
	OutcomeTurnLimit
	// OutcomeFatal means a provider or transport failure aborted the run.
	OutcomeFatal
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeFinal:
		return "final"
	case OutcomeTurnLimit:
		return "turn_limit"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Result reports the end state of a run. Conversation always points at the
// last committed state, which on a fatal outcome is the state before the
// failed turn.
type Result struct {
	Outcome      Outcome
	FinalText    string
	Conversation *core.Conversation
	Turns        int
	Usage        provider.Usage
	// PersistErr holds the last session save failure, if any. Persistence
	// failures do not abort the run; the in-memory conversation is still
	// returned so the caller can retry or report.
	PersistErr error
}

// Options configures an Engine. Zero values fall back to sensible
// defaults: in-memory persistence, an empty tool registry, no-op logging,
// the provider's default model and a turn budget of DefaultMaxTurns.
type Options struct {
	// MaxTurns bounds provider round trips per run.
	MaxTurns int

	// Mode gates which tools are advertised and executable.
	Mode core.Mode

	// Stream selects the streaming transport; deltas are forwarded to
	// OnTextDelta as they arrive.
	Stream bool

	// OnTextDelta receives text fragments during streamed turns. May be
	// nil.
	OnTextDelta func(string)

	// Model overrides the provider's default model.
	Model string

	// System is prepended as the system prompt when the conversation does
	// not already carry one.
	System string

	// Temperature, when non-nil, overrides the provider default.
	Temperature *float64

	// MaxTokens caps the response length; 0 leaves the provider default.
	MaxTokens int64

	// MaxContext, when positive, trims the history sent to the provider
	// to an estimated token budget. ReserveOutput is subtracted from the
	// budget to leave room for the response.
	MaxContext    int
	ReserveOutput int

	// Store persists the conversation after each committed turn.
	Store session.Store

	// Registry resolves and executes tool calls.
	Registry *tool.Registry

	// Logger receives structured run telemetry.
	Logger logging.Logger
}

// Engine drives the turn loop against a single provider. Immutable after
// construction; one Engine may serve many sessions sequentially.
type Engine struct {
	provider provider.Provider
	opts     Options
}

// New constructs an Engine for the given provider.
func New(p provider.Provider, optFns ...func(*Options)) *Engine {
	opts := Options{
		MaxTurns: DefaultMaxTurns,
		Mode:     core.ModeBuilding,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}
	if opts.Registry == nil {
		opts.Registry = tool.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Engine{provider: p, opts: opts}
}

// Run executes one user turn: it loads the session, appends the given
// messages, then loops provider calls and tool executions until the model
// answers with text or the turn budget is exhausted. The conversation is
// persisted after every committed turn.
//
// The error return is non-nil only for fatal failures (session load,
// invalid input messages, provider errors). Recoverable tool failures are
// folded into tool results and never surface here.
func (e *Engine) Run(ctx context.Context, sessionID string, turn ...core.Message) (*Result, error) {
	conv, err := e.opts.Store.Load(sessionID)
	if err != nil {
		return nil, err
	}

	staged := conv.Clone()
	for _, msg := range turn {
		if err := staged.Append(msg); err != nil {
			return nil, fmt.Errorf("invalid input message: %w", err)
		}
	}

	res := &Result{Conversation: conv}

	for {
		if res.Turns >= e.opts.MaxTurns {
			res.Outcome = OutcomeTurnLimit
			e.opts.Logger.Warn("run.turn_limit", "session_id", sessionID, "turns", res.Turns)
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			res.Outcome = OutcomeFatal
			return res, err
		}

		resp, callErrs, err := e.complete(ctx, e.buildRequest(staged))
		if err != nil {
			res.Outcome = OutcomeFatal
			e.opts.Logger.Error("run.provider_error", "session_id", sessionID, "error", err.Error())
			return res, err
		}
		e.addUsage(res, resp.Usage)

		var assistant core.Message
		if len(resp.ToolCalls) > 0 {
			assistant = core.AssistantToolCalls(resp.Text, resp.ToolCalls)
		} else {
			assistant = core.AssistantMessage(resp.Text)
		}
		if err := staged.Append(assistant); err != nil {
			res.Outcome = OutcomeFatal
			return res, &provider.ProtocolError{Provider: e.provider.Name(), Detail: err.Error()}
		}

		for _, call := range resp.ToolCalls {
			content := e.runTool(ctx, call, callErrs[call.ID])
			if err := staged.Append(core.ToolResultMessage(call.ID, call.Name, content)); err != nil {
				res.Outcome = OutcomeFatal
				return res, err
			}
		}

		staged.BumpTurn()
		res.Turns++

		// Commit point: the completed turn becomes the new base state.
		conv = staged
		staged = conv.Clone()
		res.Conversation = conv
		if err := e.opts.Store.Save(conv); err != nil {
			res.PersistErr = err
			e.opts.Logger.Warn("run.persist_failed", "session_id", sessionID, "error", err.Error())
		}

		if len(resp.ToolCalls) == 0 {
			res.Outcome = OutcomeFinal
			res.FinalText = resp.Text
			e.opts.Logger.Info("run.final", "session_id", sessionID, "turns", res.Turns)
			return res, nil
		}
	}
}

func (e *Engine) buildRequest(conv *core.Conversation) provider.Request {
	messages := conv.Messages
	if e.opts.MaxContext > 0 {
		messages = tokens.TrimToBudget(messages, e.opts.MaxContext, e.opts.ReserveOutput)
	}

	req := provider.Request{
		Model:       e.opts.Model,
		System:      e.opts.System,
		Messages:    messages,
		Stream:      e.opts.Stream,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	}
	if req.Model == "" {
		req.Model = e.provider.DefaultModel()
	}
	for _, spec := range e.opts.Registry.List(e.opts.Mode) {
		req.Tools = append(req.Tools, provider.ToolSpec{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.Parameters,
		})
	}
	return req
}

// complete performs one provider round trip, via the streaming transport
// and assembler when streaming is enabled. The returned map carries
// per-call argument errors from the stream; it is nil on the buffered path
// because buffered responses arrive whole.
func (e *Engine) complete(ctx context.Context, req provider.Request) (*provider.Response, map[string]error, error) {
	if !e.opts.Stream {
		resp, err := e.provider.Chat(ctx, req)
		return resp, nil, err
	}
	events, errCh := e.provider.ChatStream(ctx, req)
	asm := provider.NewStreamAssembler(e.provider.Name(), e.opts.OnTextDelta)
	return provider.Consume(events, errCh, asm)
}

// runTool executes one tool call and returns the result content for the
// answering tool message. All failures are folded into an error document
// so the model can observe and react to them.
func (e *Engine) runTool(ctx context.Context, call core.ToolCall, argErr error) string {
	if argErr != nil {
		return errorJSON(argErr)
	}

	t, err := e.opts.Registry.Resolve(call.Name, e.opts.Mode)
	if err != nil {
		e.opts.Logger.Warn("tool.rejected", "tool", call.Name, "error", err.Error())
		return errorJSON(err)
	}

	args := map[string]any{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return errorJSON(fmt.Errorf("tool arguments are not a JSON object: %w", err))
		}
	}

	result, err := t.Call(ctx, args)
	if err != nil {
		e.opts.Logger.Warn("tool.failed", "tool", call.Name, "error", err.Error())
		return errorJSON(err)
	}

	out, err := json.Marshal(result)
	if err != nil {
		return errorJSON(fmt.Errorf("tool result is not JSON-serializable: %w", err))
	}
	e.opts.Logger.Debug("tool.ok", "tool", call.Name)
	return string(out)
}

func (e *Engine) addUsage(res *Result, u *provider.Usage) {
	if u == nil {
		return
	}
	res.Usage.InputTokens += u.InputTokens
	res.Usage.OutputTokens += u.OutputTokens
	res.Usage.TotalTokens += u.TotalTokens
}

func errorJSON(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}
