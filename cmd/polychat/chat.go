package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/8agana/polychat/cache"
	"github.com/8agana/polychat/config"
	"github.com/8agana/polychat/core"
	"github.com/8agana/polychat/engine"
	"github.com/8agana/polychat/export"
	"github.com/8agana/polychat/internal/util"
	"github.com/8agana/polychat/provider"
	"github.com/8agana/polychat/provider/registry"
	"github.com/8agana/polychat/session"
	"github.com/8agana/polychat/tool"
)

type chatOptions struct {
	provider    string
	model       string
	sessionID   string
	mode        string
	stream      bool
	system      string
	temperature float64
	maxTokens   int64
	maxTurns    int
	maxContext  int
	reserve     int
	allowTools  []string
	noTools     bool
	attach      []string
	template    string
	vars        []string
	exportPath  string
	noCache     bool
	showUsage   bool
}

func newChatCmd(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat [prompt...]",
		Short: "Send a prompt and print the model's reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, root, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.provider, "provider", "p", "openai", "provider key (openai, anthropic, grok, deepseek, ollama)")
	f.StringVarP(&opts.model, "model", "m", "", "model override (default: provider's configured model)")
	f.StringVarP(&opts.sessionID, "session", "s", "", "session id to continue (default: new session)")
	f.StringVar(&opts.mode, "mode", "building", "tool policy mode (planning, building)")
	f.BoolVar(&opts.stream, "stream", false, "stream the reply as it is generated")
	f.StringVar(&opts.system, "system", "", "system prompt")
	f.Float64VarP(&opts.temperature, "temperature", "t", -1, "sampling temperature")
	f.Int64Var(&opts.maxTokens, "max-tokens", 0, "response token cap")
	f.IntVar(&opts.maxTurns, "max-turns", engine.DefaultMaxTurns, "tool loop turn budget")
	f.IntVar(&opts.maxContext, "max-context", 0, "estimated context token budget (0 = no trimming)")
	f.IntVar(&opts.reserve, "reserve-output", 1024, "tokens reserved for the reply when trimming")
	f.StringSliceVar(&opts.allowTools, "tools", nil, "restrict callable tools to this list")
	f.BoolVar(&opts.noTools, "no-tools", false, "advertise no tools to the model")
	f.StringSliceVarP(&opts.attach, "attach", "a", nil, "attach file contents as context")
	f.StringVar(&opts.template, "template", "", "prompt template name from the templates directory")
	f.StringSliceVar(&opts.vars, "var", nil, "template variable as key=value (repeatable)")
	f.StringVar(&opts.exportPath, "export", "", "export the conversation after the run (.json, .md, .html)")
	f.BoolVar(&opts.noCache, "no-cache", false, "bypass the response cache")
	f.BoolVar(&opts.showUsage, "usage", false, "print token usage and estimated cost")

	return cmd
}

func runChat(cmd *cobra.Command, root *rootOptions, opts *chatOptions, args []string) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	logger := root.logger()
	out := cmd.OutOrStdout()

	mode, err := core.ParseMode(opts.mode)
	if err != nil {
		return err
	}

	prompt, err := buildPrompt(opts, args)
	if err != nil {
		return err
	}

	turn, err := buildTurn(opts, prompt)
	if err != nil {
		return err
	}

	sessionID := opts.sessionID
	if sessionID == "" {
		sessionID = core.NewID()
	}

	dir, err := session.DefaultDir()
	if err != nil {
		return err
	}
	store, err := session.NewFileStore(dir)
	if err != nil {
		return err
	}

	var registryOpts []tool.Option
	if len(opts.allowTools) > 0 {
		registryOpts = append(registryOpts, tool.WithAllowList(opts.allowTools))
	}
	tools := tool.NewDefaultRegistry(registryOpts...)
	if opts.noTools {
		tools = tool.NewRegistry()
	}

	var temperature *float64
	if opts.temperature >= 0 {
		temperature = &opts.temperature
	}

	reg := registry.FromConfig(cfg)

	// Responses for buffered, tool-free prompts are cacheable.
	var (
		responses *cache.Store
		cacheKey  string
	)
	if opts.noTools && !opts.stream && !opts.noCache && cfg.CachingEnabled() {
		if cacheDir, err := cache.DefaultDir(); err == nil {
			if responses, err = cache.NewStore(cacheDir); err != nil {
				logger.Warn("cache.unavailable", "error", err.Error())
				responses = nil
			}
		}
	}
	if responses != nil {
		prior, err := store.Load(sessionID)
		if err != nil {
			return err
		}
		history := append(prior.Clone().Messages, turn...)
		cacheKey = cache.RequestKey(opts.provider, opts.model, opts.system, history, temperature, opts.maxTokens)
		if entry, ok := responses.Get(cacheKey); ok {
			fmt.Fprintln(out, entry.Text)
			return commitCachedTurn(store, prior, turn, entry.Text)
		}
	}

	candidates := providerChain(cfg, opts.provider)
	var res *engine.Result
	for i, key := range candidates {
		p, err := reg.Get(key)
		if err != nil {
			if i == 0 {
				return err
			}
			logger.Warn("fallback.unavailable", "provider", key, "error", err.Error())
			continue
		}

		eng := engine.New(p, func(o *engine.Options) {
			o.MaxTurns = opts.maxTurns
			o.Mode = mode
			o.Stream = opts.stream
			o.Model = opts.model
			o.System = opts.system
			o.Temperature = temperature
			o.MaxTokens = opts.maxTokens
			o.MaxContext = opts.maxContext
			o.ReserveOutput = opts.reserve
			o.Store = store
			o.Registry = tools
			o.Logger = logger
			if opts.stream {
				o.OnTextDelta = func(s string) { fmt.Fprint(out, s) }
			}
		})

		res, err = eng.Run(cmd.Context(), sessionID, turn...)
		if err == nil {
			break
		}

		var netErr *provider.NetworkError
		if errors.As(err, &netErr) && i < len(candidates)-1 {
			logger.Warn("fallback.next", "provider", key, "error", err.Error())
			res = nil
			continue
		}
		return err
	}
	if res == nil {
		return fmt.Errorf("no usable provider in chain %v", candidates)
	}

	if opts.stream {
		fmt.Fprintln(out)
	} else if res.FinalText != "" {
		fmt.Fprintln(out, res.FinalText)
	}

	switch res.Outcome {
	case engine.OutcomeTurnLimit:
		fmt.Fprintf(cmd.ErrOrStderr(), "turn limit reached after %d turns; partial transcript saved to session %s\n", res.Turns, sessionID)
	case engine.OutcomeFinal:
		if responses != nil && res.Turns == 1 {
			entry := &cache.Entry{Provider: opts.provider, Model: opts.model, Text: res.FinalText, CreatedAt: time.Now().UTC()}
			if err := responses.Put(cacheKey, entry); err != nil {
				logger.Warn("cache.put_failed", "error", err.Error())
			}
		}
	}
	if res.PersistErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: session not saved: %v\n", res.PersistErr)
	}

	if opts.showUsage {
		printUsage(cmd, cfg, opts.provider, opts.model, res.Usage)
	}

	if opts.exportPath != "" {
		if err := export.Save(opts.exportPath, res.Conversation); err != nil {
			return err
		}
	}

	if opts.sessionID == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", sessionID)
	}
	return nil
}

// buildPrompt renders the template when one is named, otherwise joins the
// positional arguments.
func buildPrompt(opts *chatOptions, args []string) (string, error) {
	text := strings.Join(args, " ")
	if opts.template == "" {
		return text, nil
	}

	dir, err := config.TemplatesDir()
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(filepath.Join(dir, opts.template+".tmpl"))
	if err != nil {
		return "", fmt.Errorf("template %q: %w", opts.template, err)
	}

	vars := map[string]any{"prompt": text}
	for _, kv := range opts.vars {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return "", fmt.Errorf("invalid --var %q (want key=value)", kv)
		}
		vars[k] = v
	}
	return util.RenderTemplate(string(raw), vars)
}

// buildTurn assembles the messages of this user turn: one system message
// per attachment, then the prompt.
func buildTurn(opts *chatOptions, prompt string) ([]core.Message, error) {
	var turn []core.Message
	for _, path := range opts.attach {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", path, err)
		}
		turn = append(turn, core.SystemMessage(
			fmt.Sprintf("Attached file %s:\n%s", filepath.Base(path), string(data))))
	}
	return append(turn, core.UserMessage(prompt)), nil
}

// providerChain returns the primary provider followed by the configured
// fallbacks, without duplicates.
func providerChain(cfg *config.Config, primary string) []string {
	chain := []string{primary}
	if cfg.Fallback == nil {
		return chain
	}
	seen := map[string]bool{primary: true}
	for _, key := range cfg.Fallback.Providers {
		if !seen[key] {
			chain = append(chain, key)
			seen[key] = true
		}
	}
	return chain
}

// commitCachedTurn appends the user turn and cached reply to the session
// so resumed conversations include it.
func commitCachedTurn(store session.Store, conv *core.Conversation, turn []core.Message, text string) error {
	for _, msg := range turn {
		if err := conv.Append(msg); err != nil {
			return err
		}
	}
	if err := conv.Append(core.AssistantMessage(text)); err != nil {
		return err
	}
	conv.BumpTurn()
	return store.Save(conv)
}

func printUsage(cmd *cobra.Command, cfg *config.Config, providerKey, model string, usage provider.Usage) {
	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "usage: %d input + %d output = %d tokens\n",
		usage.InputTokens, usage.OutputTokens, usage.TotalTokens)

	if cfg.Pricing == nil {
		return
	}
	in, okIn := pricingRate(cfg.Pricing.InputUSDPer1K, providerKey, model)
	outRate, okOut := pricingRate(cfg.Pricing.OutputUSDPer1K, providerKey, model)
	if !okIn && !okOut {
		return
	}
	cost := float64(usage.InputTokens)/1000*in + float64(usage.OutputTokens)/1000*outRate
	fmt.Fprintf(errOut, "estimated cost: $%.6f\n", cost)
}

// pricingRate looks up "provider:model" first, then "provider".
func pricingRate(rates map[string]float64, providerKey, model string) (float64, bool) {
	if rates == nil {
		return 0, false
	}
	if model != "" {
		if rate, ok := rates[providerKey+":"+model]; ok {
			return rate, true
		}
	}
	rate, ok := rates[providerKey]
	return rate, ok
}
