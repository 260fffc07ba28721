package tools

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/bookpal-ai/server/internal/gateway/model"
)

// Capability ties an adapter to its engine-facing schema and the argument
// keys the dispatcher probes when resolving a tool call. ArgKey is the
// primary expected key; AltKeys are the fallback shapes probed before the
// call is skipped as unresolvable.
type Capability struct {
	Info    *schema.ToolInfo
	ArgKey  string
	AltKeys []string
	Invoke  func(ctx context.Context, arg string) string
}

// Registry is the static named capability set. It is assembled once at
// startup and never mutated afterwards.
type Registry struct {
	caps  map[string]*Capability
	order []string
}

// NewRegistry wires the four adapters into the capability set.
func NewRegistry(weather *WeatherAdapter, stock *StockAdapter, news *NewsAdapter, image *ImageAdapter) *Registry {
	r := &Registry{caps: make(map[string]*Capability)}

	r.register(&Capability{
		Info:    weather.Descriptor(),
		ArgKey:  "location",
		AltKeys: []string{"city", "query"},
		Invoke:  weather.Invoke,
	})
	r.register(&Capability{
		Info:    stock.Descriptor(),
		ArgKey:  "symbol",
		AltKeys: []string{"ticker", "query"},
		Invoke:  stock.Invoke,
	})
	r.register(&Capability{
		Info:    news.Descriptor(),
		ArgKey:  "keyword",
		AltKeys: []string{"topic", "query"},
		Invoke:  news.Invoke,
	})
	r.register(&Capability{
		Info:    image.Descriptor(),
		ArgKey:  "prompt",
		AltKeys: []string{"description", "query"},
		Invoke:  image.Invoke,
	})

	return r
}

func (r *Registry) register(c *Capability) {
	r.caps[c.Info.Name] = c
	r.order = append(r.order, c.Info.Name)
}

// Lookup resolves a capability by its engine-facing name.
func (r *Registry) Lookup(name string) (*Capability, bool) {
	c, ok := r.caps[name]
	return c, ok
}

// Infos returns every descriptor in registration order.
func (r *Registry) Infos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.caps[name].Info)
	}
	return infos
}

// ForIntent returns the descriptor subset bound to the engine for a
// tool-eligible intent. Non-tool intents get nil.
func (r *Registry) ForIntent(intent model.Intent) []*schema.ToolInfo {
	var name string
	switch intent {
	case model.IntentWeather:
		name = ToolGetWeather
	case model.IntentStock:
		name = ToolGetStockPrice
	case model.IntentImage:
		name = ToolImageGeneration
	default:
		return nil
	}
	return []*schema.ToolInfo{r.caps[name].Info}
}
