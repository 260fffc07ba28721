package dispatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/bookpal-ai/server/internal/core/error"
	"github.com/bookpal-ai/server/internal/gateway/conversations"
	"github.com/bookpal-ai/server/internal/gateway/intent"
	"github.com/bookpal-ai/server/internal/gateway/model"
	"github.com/bookpal-ai/server/internal/gateway/tools"
)

// scriptedEngine plays back canned responses in order and records every
// Generate input plus the last tool binding.
type scriptedEngine struct {
	responses []*schema.Message
	calls     [][]*schema.Message
	bound     []*schema.ToolInfo
	err       error
}

func (e *scriptedEngine) Generate(ctx context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	e.calls = append(e.calls, in)
	if e.err != nil {
		return nil, e.err
	}
	if len(e.responses) == 0 {
		return nil, errors.New("no scripted response left")
	}
	next := e.responses[0]
	e.responses = e.responses[1:]
	return next, nil
}

func (e *scriptedEngine) Stream(ctx context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not scripted")
}

func (e *scriptedEngine) WithTools(infos []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	e.bound = infos
	return e, nil
}

type fakeRetriever struct {
	passages []string
	err      error
	queries  []string
}

func (r *fakeRetriever) Retrieve(ctx context.Context, query string) ([]string, error) {
	r.queries = append(r.queries, query)
	return r.passages, r.err
}

// harness wires a dispatcher whose weather and news adapters point at
// local fake upstreams.
type harness struct {
	dispatcher *Dispatcher
	engine     *scriptedEngine
	manager    *conversations.Manager
	retriever  *fakeRetriever
	weatherQ   *string
}

func newHarness(t *testing.T, engine *scriptedEngine) *harness {
	t.Helper()

	var weatherQ string
	weatherSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		weatherQ = r.URL.Query().Get("q")
		w.Write([]byte(`{"weather":[{"description":"clear sky"}],"main":{"temp":21.5},"name":"Tokyo"}`))
	}))
	t.Cleanup(weatherSrv.Close)

	newsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"articles":[{"title":"Big Story","source":{"name":"Wire"},"description":"Details.","url":"https://example.com/1"}]}`))
	}))
	t.Cleanup(newsSrv.Close)

	registry := tools.NewRegistry(
		tools.NewWeatherAdapter(model.WeatherConfig{APIKey: "k", BaseURL: weatherSrv.URL}, weatherSrv.Client()),
		tools.NewStockAdapter(model.StockConfig{}, nil),
		tools.NewNewsAdapter(model.NewsConfig{APIKey: "k", BaseURL: newsSrv.URL}, newsSrv.Client()),
		tools.NewImageAdapter(model.ImageConfig{}, nil),
	)

	manager := conversations.NewManager(conversations.NewMemoryRepository(4))
	retriever := &fakeRetriever{}

	return &harness{
		dispatcher: NewDispatcher(engine, registry, retriever, manager, intent.NewClassifier(engine, manager)),
		engine:     engine,
		manager:    manager,
		retriever:  retriever,
		weatherQ:   &weatherQ,
	}
}

func query(q string) model.QueryInput {
	return model.QueryInput{SessionID: "s1", Query: q}
}

func TestDispatcher_WeatherRoundTrip(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{responses: []*schema.Message{
		schema.AssistantMessage("WEATHER", nil),
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call_abc",
			Function: schema.FunctionCall{Name: tools.ToolGetWeather, Arguments: `{"location":"Tokyo, JP"}`},
		}}),
		schema.AssistantMessage("Tokyo is clear at 21.5°C right now.", nil),
	}}
	h := newHarness(t, engine)

	out, err := h.dispatcher.Handle(context.Background(), query("what's the weather in Tokyo?"))
	require.NoError(t, err)
	assert.Equal(t, "Tokyo is clear at 21.5°C right now.", out.Collect())

	// The adapter saw the argument the engine picked.
	assert.Equal(t, "Tokyo, JP", *h.weatherQ)

	// Only the weather capability was bound for this turn.
	require.Len(t, engine.bound, 1)
	assert.Equal(t, tools.ToolGetWeather, engine.bound[0].Name)

	// Classification, tool selection, synthesis.
	require.Len(t, engine.calls, 3)

	// The synthesis input carries the tool result threaded to its call id.
	synthesis := engine.calls[2]
	require.Len(t, synthesis, 4)
	assert.Equal(t, schema.System, synthesis[0].Role)
	assert.Equal(t, schema.Assistant, synthesis[2].Role)
	require.Len(t, synthesis[2].ToolCalls, 1)
	assert.Equal(t, "call_abc", synthesis[2].ToolCalls[0].ID)
	assert.Equal(t, schema.Tool, synthesis[3].Role)
	assert.Equal(t, "call_abc", synthesis[3].ToolCallID)
	assert.Contains(t, synthesis[3].Content, "clear sky")
	assert.Contains(t, synthesis[3].Content, "21.5")
}

func TestDispatcher_SynthesizesToolCallID(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{responses: []*schema.Message{
		schema.AssistantMessage("WEATHER", nil),
		schema.AssistantMessage("", []schema.ToolCall{{
			Function: schema.FunctionCall{Name: tools.ToolGetWeather, Arguments: `{"location":"Tokyo, JP"}`},
		}}),
		schema.AssistantMessage("Clear skies ahead.", nil),
	}}
	h := newHarness(t, engine)

	_, err := h.dispatcher.Handle(context.Background(), query("weather in Tokyo?"))
	require.NoError(t, err)

	synthesis := engine.calls[2]
	require.Len(t, synthesis, 4)
	assert.Equal(t, "call_1", synthesis[2].ToolCalls[0].ID)
	assert.Equal(t, "call_1", synthesis[3].ToolCallID)
}

func TestDispatcher_ArgumentFallbackShapes(t *testing.T) {
	t.Parallel()

	for _, arguments := range []string{`"Tokyo, JP"`, `{"query":"Tokyo, JP"}`, `{"location":{"value":"Tokyo, JP"}}`} {
		engine := &scriptedEngine{responses: []*schema.Message{
			schema.AssistantMessage("WEATHER", nil),
			schema.AssistantMessage("", []schema.ToolCall{{
				ID:       "call_1",
				Function: schema.FunctionCall{Name: tools.ToolGetWeather, Arguments: arguments},
			}}),
			schema.AssistantMessage("Clear.", nil),
		}}
		h := newHarness(t, engine)

		_, err := h.dispatcher.Handle(context.Background(), query("weather?"))
		require.NoError(t, err, "arguments=%s", arguments)
		assert.Equal(t, "Tokyo, JP", *h.weatherQ, "arguments=%s", arguments)
	}
}

func TestDispatcher_NoToolCallsIsNoResult(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{responses: []*schema.Message{
		schema.AssistantMessage("WEATHER", nil),
		schema.AssistantMessage("I cannot call tools today.", nil),
	}}
	h := newHarness(t, engine)

	_, err := h.dispatcher.Handle(context.Background(), query("weather in Tokyo?"))
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, errx.StatusOf(err))
	assert.Equal(t, errx.NoResultMessage, errx.MessageOf(err))
}

func TestDispatcher_AllToolCallsSkippedIsNoResult(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{responses: []*schema.Message{
		schema.AssistantMessage("WEATHER", nil),
		schema.AssistantMessage("", []schema.ToolCall{
			{ID: "call_1", Function: schema.FunctionCall{Name: "NoSuchTool", Arguments: `{"location":"Tokyo"}`}},
			{ID: "call_2", Function: schema.FunctionCall{Name: tools.ToolGetWeather, Arguments: `{"foo":{"bar":1}}`}},
		}),
	}}
	h := newHarness(t, engine)

	_, err := h.dispatcher.Handle(context.Background(), query("weather in Tokyo?"))
	require.Error(t, err)
	assert.Equal(t, errx.NoResultMessage, errx.MessageOf(err))
	// Synthesis never ran.
	assert.Len(t, engine.calls, 2)
}

func TestDispatcher_EmptySynthesisIsNoResult(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{responses: []*schema.Message{
		schema.AssistantMessage("WEATHER", nil),
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call_1",
			Function: schema.FunctionCall{Name: tools.ToolGetWeather, Arguments: `{"location":"Tokyo"}`},
		}}),
		schema.AssistantMessage("   ", nil),
	}}
	h := newHarness(t, engine)

	_, err := h.dispatcher.Handle(context.Background(), query("weather?"))
	require.Error(t, err)
	assert.Equal(t, errx.NoResultMessage, errx.MessageOf(err))
}

func TestDispatcher_BookTurn(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{responses: []*schema.Message{
		schema.AssistantMessage("BOOK", nil),
		schema.AssistantMessage("Adam was the first man in the garden.", nil),
	}}
	h := newHarness(t, engine)
	h.retriever.passages = []string{"Adam was formed from dust.", "Eve was his companion."}

	out, err := h.dispatcher.Handle(context.Background(), query("who is adam?"))
	require.NoError(t, err)
	assert.Equal(t, "Adam was the first man in the garden.", out.Collect())

	require.Equal(t, []string{"who is adam?"}, h.retriever.queries)

	// The retrieved passages ride inside the templated prompt.
	require.Len(t, engine.calls, 2)
	prompt := engine.calls[1][0].Content
	assert.Contains(t, prompt, "User query: who is adam?")
	assert.Contains(t, prompt, "Adam was formed from dust.")
	assert.Contains(t, prompt, "Eve was his companion.")

	// The final answer lands in the window after classification's pair.
	window, err := h.manager.Window(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, window, 3)
	assert.Equal(t, "Adam was the first man in the garden.", window[2].Content)
}

func TestDispatcher_BookTurnRetrieverFailure(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{responses: []*schema.Message{
		schema.AssistantMessage("BOOK", nil),
	}}
	h := newHarness(t, engine)
	h.retriever.err = errors.New("index unreachable")

	_, err := h.dispatcher.Handle(context.Background(), query("who is adam?"))
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, errx.StatusOf(err))
	assert.Equal(t, errx.SystemErrorMessage, errx.MessageOf(err))
}

func TestDispatcher_PersonalTurn(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{responses: []*schema.Message{
		schema.AssistantMessage("PERSONAL", nil),
		schema.AssistantMessage("I was developed by Payal Bhattad.", nil),
	}}
	h := newHarness(t, engine)

	out, err := h.dispatcher.Handle(context.Background(), query("who made you?"))
	require.NoError(t, err)
	assert.Equal(t, "I was developed by Payal Bhattad.", out.Collect())

	prompt := engine.calls[1][0].Content
	assert.Contains(t, prompt, "User query: who made you?")
}

func TestDispatcher_TemplatedTurnEmptyAnswer(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{responses: []*schema.Message{
		schema.AssistantMessage("PERSONAL", nil),
		schema.AssistantMessage("  ", nil),
	}}
	h := newHarness(t, engine)

	out, err := h.dispatcher.Handle(context.Background(), query("who made you?"))
	require.NoError(t, err)
	assert.Equal(t, noAnswerMessage, out.Collect())
}

func TestDispatcher_NewsTurnBypassesEngine(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{responses: []*schema.Message{
		schema.AssistantMessage("NEWS", nil),
	}}
	h := newHarness(t, engine)

	out, err := h.dispatcher.Handle(context.Background(), query("latest technology news"))
	require.NoError(t, err)

	content := out.Collect()
	assert.Contains(t, content, `Here are the top news articles for "latest technology news":`)
	assert.Contains(t, content, "1. Big Story - Wire")
	assert.Contains(t, content, "Read more: https://example.com/1")

	// Only classification touched the engine; the digest is verbatim.
	assert.Len(t, engine.calls, 1)
}

func TestDispatcher_ImageResultIsStructured(t *testing.T) {
	t.Parallel()

	// The harness image adapter carries no credential, so generation yields
	// the empty string; the tool message must still be well-formed JSON.
	engine := &scriptedEngine{responses: []*schema.Message{
		schema.AssistantMessage("IMAGE", nil),
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call_img",
			Function: schema.FunctionCall{Name: tools.ToolImageGeneration, Arguments: `{"prompt":"a red bicycle"}`},
		}}),
		schema.AssistantMessage("I couldn't produce an image this time.", nil),
	}}
	h := newHarness(t, engine)

	out, err := h.dispatcher.Handle(context.Background(), query("draw me a red bicycle"))
	require.NoError(t, err)
	assert.Equal(t, "I couldn't produce an image this time.", out.Collect())

	synthesis := engine.calls[2]
	require.Len(t, synthesis, 4)
	assert.Equal(t, `{"imageUrl":""}`, synthesis[3].Content)
}

func TestDispatcher_UnknownLabel(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{responses: []*schema.Message{
		schema.AssistantMessage("SPORTS", nil),
	}}
	h := newHarness(t, engine)

	_, err := h.dispatcher.Handle(context.Background(), query("who won last night?"))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errx.StatusOf(err))
	assert.Equal(t, errx.UnknownIntentMessage, errx.MessageOf(err))
}

func TestDispatcher_EmptyQuery(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{}
	h := newHarness(t, engine)

	_, err := h.dispatcher.Handle(context.Background(), query("  "))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errx.StatusOf(err))
	assert.Empty(t, engine.calls)
}
