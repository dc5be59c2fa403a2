package contextdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"tourroute/internal/model"
)

// Redis reads signals that an upstream feed writes as
// crowd:<waypointId> = low|medium|high and weather:current = WeatherReading JSON.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{rdb: redis.NewClient(opt)}, nil
}

func NewRedisClient(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

func (p *Redis) CrowdLevel(ctx context.Context, waypointID string) (*model.CrowdLevel, error) {
	v, err := p.rdb.Get(ctx, "crowd:"+waypointID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lvl := model.CrowdLevel(strings.ToLower(strings.TrimSpace(v)))
	switch lvl {
	case model.CrowdLow, model.CrowdMedium, model.CrowdHigh:
		return &lvl, nil
	}
	return nil, fmt.Errorf("contextdata: bad crowd level %q for %s", v, waypointID)
}

func (p *Redis) Weather(ctx context.Context) (*model.WeatherReading, error) {
	b, err := p.rdb.Get(ctx, "weather:current").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var w model.WeatherReading
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("contextdata: decode weather: %w", err)
	}
	return &w, nil
}

func (p *Redis) Close() error { return p.rdb.Close() }
