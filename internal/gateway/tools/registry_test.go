package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookpal-ai/server/internal/gateway/model"
)

func testRegistry() *Registry {
	return NewRegistry(
		NewWeatherAdapter(model.WeatherConfig{}, nil),
		NewStockAdapter(model.StockConfig{}, nil),
		NewNewsAdapter(model.NewsConfig{}, nil),
		NewImageAdapter(model.ImageConfig{}, nil),
	)
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()

	r := testRegistry()

	for _, name := range []string{ToolGetWeather, ToolGetStockPrice, ToolGeneralNews, ToolImageGeneration} {
		c, ok := r.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Info.Name)
		assert.NotEmpty(t, c.ArgKey)
		assert.NotNil(t, c.Invoke)
	}

	_, ok := r.Lookup("NoSuchTool")
	assert.False(t, ok)
}

func TestRegistry_Infos(t *testing.T) {
	t.Parallel()

	infos := testRegistry().Infos()
	require.Len(t, infos, 4)

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	assert.Equal(t, []string{ToolGetWeather, ToolGetStockPrice, ToolGeneralNews, ToolImageGeneration}, names)
}

func TestRegistry_ForIntent(t *testing.T) {
	t.Parallel()

	r := testRegistry()

	tests := []struct {
		intent model.Intent
		want   string
	}{
		{intent: model.IntentWeather, want: ToolGetWeather},
		{intent: model.IntentStock, want: ToolGetStockPrice},
		{intent: model.IntentImage, want: ToolImageGeneration},
	}
	for _, tt := range tests {
		infos := r.ForIntent(tt.intent)
		require.Len(t, infos, 1, tt.intent)
		assert.Equal(t, tt.want, infos[0].Name)
	}

	assert.Nil(t, r.ForIntent(model.IntentBook))
	assert.Nil(t, r.ForIntent(model.IntentNews))
	assert.Nil(t, r.ForIntent(model.IntentPersonal))
}
