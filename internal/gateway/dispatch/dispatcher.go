// Package dispatch runs one conversational turn end to end: classify the
// query, branch to the matching handler, resolve any tool calls, and fold
// the results into a final streamed response.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	errx "github.com/bookpal-ai/server/internal/core/error"
	"github.com/bookpal-ai/server/internal/gateway/conversations"
	"github.com/bookpal-ai/server/internal/gateway/intent"
	"github.com/bookpal-ai/server/internal/gateway/model"
	"github.com/bookpal-ai/server/internal/gateway/prompts"
	"github.com/bookpal-ai/server/internal/gateway/stream"
	"github.com/bookpal-ai/server/internal/gateway/tools"
	"github.com/bookpal-ai/server/internal/retrieval"
	logx "github.com/bookpal-ai/server/pkg/logger"
)

const noAnswerMessage = "I'm sorry, I couldn't retrieve information on that."

// Dispatcher is the turn orchestrator. It owns no per-request state; every
// Handle call walks a fresh turn through the state machine.
type Dispatcher struct {
	engine     einomodel.ToolCallingChatModel
	registry   *tools.Registry
	retriever  retrieval.Retriever
	manager    *conversations.Manager
	classifier *intent.Classifier
}

func NewDispatcher(
	engine einomodel.ToolCallingChatModel,
	registry *tools.Registry,
	retriever retrieval.Retriever,
	manager *conversations.Manager,
	classifier *intent.Classifier,
) *Dispatcher {
	return &Dispatcher{
		engine:     engine,
		registry:   registry,
		retriever:  retriever,
		manager:    manager,
		classifier: classifier,
	}
}

// turn tracks one request's walk through the dispatch states for logging.
type turn struct {
	sessionID string
	state     model.State
}

func (t *turn) to(next model.State) {
	logx.Debug().
		Str("session_id", t.sessionID).
		Str("from", t.state.String()).
		Str("to", next.String()).
		Msg("Turn transition")
	t.state = next
}

// Handle processes one query and returns the response stream. Errors carry
// HTTP semantics via errx: validation and unknown-label failures are
// 400-class, everything unanticipated collapses to the generic 500 apology.
func (d *Dispatcher) Handle(ctx context.Context, in model.QueryInput) (out *stream.Stream, err error) {
	t := &turn{sessionID: in.SessionID, state: model.StateReceived}

	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("session_id", in.SessionID).Msgf("panic recovered in dispatch: %v", r)
			t.to(model.StateFailed)
			out, err = nil, errx.Internal(fmt.Errorf("dispatch panic: %v", r))
		}
	}()

	label, err := d.classifier.Classify(ctx, in.SessionID, in.Query)
	if err != nil {
		t.to(model.StateFailed)
		return nil, err
	}
	t.to(model.StateClassified)

	var content string
	switch label {
	case model.IntentWeather, model.IntentStock, model.IntentImage:
		content, err = d.runToolTurn(ctx, t, label, in.Query)
	case model.IntentBook:
		content, err = d.runBookTurn(ctx, in)
	case model.IntentPersonal:
		content, err = d.runPersonalTurn(ctx, in)
	case model.IntentNews:
		content, err = d.runNewsTurn(ctx, in)
	default:
		// Unreachable once ParseIntent holds, but the default arm stays
		// explicit rather than falling through silently.
		err = errx.UnknownIntent(&model.ErrUnknownIntent{Label: label.String()})
	}
	if err != nil {
		t.to(model.StateFailed)
		return nil, err
	}

	t.to(model.StateStreaming)
	s := stream.Single(content)
	t.to(model.StateDone)
	return s, nil
}

func systemInstruction(label model.Intent) string {
	switch label {
	case model.IntentWeather:
		return "You are a helpful assistant that provides weather information."
	case model.IntentStock:
		return "You are a helpful assistant that provides stock market information."
	default:
		return "You are a helpful image generation assistant."
	}
}

// runToolTurn executes the tool-call round trip: bind the intent's
// capability subset, collect the engine's tool-call requests, invoke the
// matching adapters, and re-invoke the engine over the grown sequence.
func (d *Dispatcher) runToolTurn(ctx context.Context, t *turn, label model.Intent, query string) (string, error) {
	bound, err := d.engine.WithTools(d.registry.ForIntent(label))
	if err != nil {
		return "", errx.Internal(fmt.Errorf("bind tools: %w", err))
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemInstruction(label)),
		schema.UserMessage(query),
	}

	aiMsg, err := bound.Generate(ctx, messages)
	if err != nil {
		return "", errx.Internal(fmt.Errorf("tool selection generate: %w", err))
	}
	if aiMsg == nil || len(aiMsg.ToolCalls) == 0 {
		// Defined no-result case: the engine chose no capability, so the
		// branch produced no content.
		logx.Warn().Str("intent", label.String()).Msg("No tool calls returned for tool-eligible intent")
		return "", errx.NoResult()
	}
	t.to(model.StateToolsPending)

	resolved := 0
	idSeq := 0
	for _, call := range aiMsg.ToolCalls {
		// Some providers omit tool call ids; synthesize a local one so the
		// result message can still reference its originating call.
		if strings.TrimSpace(call.ID) == "" {
			idSeq++
			call.ID = fmt.Sprintf("call_%d", idSeq)
		}

		capability, ok := d.registry.Lookup(call.Function.Name)
		if !ok {
			logx.Warn().Str("tool_name", call.Function.Name).Msg("Unknown tool call; skipping")
			continue
		}

		arg, ok := resolveArgument(call.Function.Arguments, capability.ArgKey, capability.AltKeys)
		if !ok {
			logx.Warn().
				Str("tool_name", call.Function.Name).
				Str("arguments", call.Function.Arguments).
				Msg("Could not resolve tool call arguments; skipping")
			continue
		}

		result := capability.Invoke(ctx, arg)
		content := result
		if call.Function.Name == tools.ToolImageGeneration {
			// The image result is structured so the client can distinguish
			// "no image produced" from prose.
			encoded, _ := json.Marshal(map[string]string{"imageUrl": result})
			content = string(encoded)
		}

		messages = append(messages,
			schema.AssistantMessage("", []schema.ToolCall{call}),
			schema.ToolMessage(content, call.ID, schema.WithToolName(call.Function.Name)),
		)
		resolved++
	}

	if resolved == 0 {
		logx.Warn().Str("intent", label.String()).Msg("Every tool call was skipped")
		return "", errx.NoResult()
	}

	t.to(model.StateSynthesizing)
	final, err := d.engine.Generate(ctx, messages)
	if err != nil {
		return "", errx.Internal(fmt.Errorf("synthesis generate: %w", err))
	}
	if final == nil || strings.TrimSpace(final.Content) == "" {
		return "", errx.NoResult()
	}
	return final.Content, nil
}

// runBookTurn is the retrieval-then-generate path: passages from the
// collaborator are concatenated into the templated conversational step.
func (d *Dispatcher) runBookTurn(ctx context.Context, in model.QueryInput) (string, error) {
	passages, err := d.retriever.Retrieve(ctx, in.Query)
	if err != nil {
		return "", errx.Internal(fmt.Errorf("retrieve passages: %w", err))
	}

	input := fmt.Sprintf("User query: %s\nDocuments:\n%s", in.Query, strings.Join(passages, "\n"))
	return d.runTemplatedTurn(ctx, in, prompts.RenderBook, input)
}

// runPersonalTurn answers from the canned-fact template; the engine itself
// selects the sub-case.
func (d *Dispatcher) runPersonalTurn(ctx context.Context, in model.QueryInput) (string, error) {
	input := fmt.Sprintf("User query: %s", in.Query)
	return d.runTemplatedTurn(ctx, in, prompts.RenderPersonal, input)
}

func (d *Dispatcher) runTemplatedTurn(
	ctx context.Context,
	in model.QueryInput,
	render func(history, input string) string,
	input string,
) (string, error) {
	history, err := d.manager.HistoryBlock(ctx, in.SessionID)
	if err != nil {
		return "", errx.Internal(fmt.Errorf("load history: %w", err))
	}

	out, err := d.engine.Generate(ctx, []*schema.Message{schema.UserMessage(render(history, input))})
	if err != nil {
		return "", errx.Internal(fmt.Errorf("templated generate: %w", err))
	}

	content := noAnswerMessage
	if out != nil && strings.TrimSpace(out.Content) != "" {
		content = out.Content
	}

	if err := d.manager.RecordAssistant(ctx, in.SessionID, content); err != nil {
		logx.Error().Err(err).Str("session_id", in.SessionID).Msg("Recording assistant turn failed")
	}
	return content, nil
}

// runNewsTurn bypasses the engine entirely: the news adapter is invoked
// with the raw query and its string result becomes the content verbatim.
func (d *Dispatcher) runNewsTurn(ctx context.Context, in model.QueryInput) (string, error) {
	capability, ok := d.registry.Lookup(tools.ToolGeneralNews)
	if !ok {
		return "", errx.Internal(fmt.Errorf("news capability not registered"))
	}
	logx.Debug().Str("keyword", in.Query).Msg("News requested")
	return capability.Invoke(ctx, in.Query), nil
}
