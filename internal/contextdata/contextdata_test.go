package contextdata

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourroute/internal/model"
	"tourroute/internal/opt"
)

var _ opt.ContextProvider = (*Static)(nil)
var _ opt.ContextProvider = (*Redis)(nil)

func TestStaticProvider(t *testing.T) {
	p := NewStatic(map[string]model.CrowdLevel{"louvre": model.CrowdHigh}, nil)
	ctx := context.Background()

	lvl, err := p.CrowdLevel(ctx, "louvre")
	require.NoError(t, err)
	require.NotNil(t, lvl)
	assert.Equal(t, model.CrowdHigh, *lvl)

	lvl, err = p.CrowdLevel(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, lvl)

	w, err := p.Weather(ctx)
	require.NoError(t, err)
	assert.Nil(t, w)

	p.SetWeather(&model.WeatherReading{Condition: "rain", TemperatureC: 12})
	w, err = p.Weather(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rain", w.Condition)
}

func TestStaticProviderCancelled(t *testing.T) {
	p := NewStatic(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Weather(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("crowd:louvre", "High"))
	require.NoError(t, mr.Set("crowd:broken", "packed"))
	require.NoError(t, mr.Set("weather:current", `{"condition":"light rain","temperatureC":9}`))
	p := NewRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	lvl, err := p.CrowdLevel(ctx, "louvre")
	require.NoError(t, err)
	assert.Equal(t, model.CrowdHigh, *lvl)

	lvl, err = p.CrowdLevel(ctx, "orsay")
	require.NoError(t, err)
	assert.Nil(t, lvl)

	_, err = p.CrowdLevel(ctx, "broken")
	assert.Error(t, err)

	w, err := p.Weather(ctx)
	require.NoError(t, err)
	assert.Equal(t, &model.WeatherReading{Condition: "light rain", TemperatureC: 9}, w)
}

func TestRedisProviderFeedsGatherer(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("crowd:a", "low"))
	require.NoError(t, mr.Set("weather:current", "not json"))
	p := NewRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	wps := []model.Waypoint{{ID: "a"}, {ID: "b"}}
	snap := opt.GatherContext(context.Background(), p, wps, time.Second)
	assert.Equal(t, map[string]model.CrowdLevel{"a": model.CrowdLow}, snap.Crowd)
	assert.Nil(t, snap.Weather)
}
