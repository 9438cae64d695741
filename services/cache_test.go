package services

import (
	"context"
	"net"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRedis answers the handful of commands Cache sends from a map, so the
// client never dials
type memoryRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryRedis) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, net.ErrClosed
	}
}

func (m *memoryRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (m *memoryRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		args := cmd.Args()
		switch strings.ToLower(cmd.Name()) {
		case "get":
			v, ok := m.data[args[1].(string)]
			if !ok {
				cmd.SetErr(redis.Nil)
				break
			}
			cmd.(*redis.StringCmd).SetVal(v)
		case "set":
			switch v := args[2].(type) {
			case []byte:
				m.data[args[1].(string)] = string(v)
			case string:
				m.data[args[1].(string)] = v
			}
			cmd.(*redis.StatusCmd).SetVal("OK")
		case "del":
			var n int64
			for _, k := range args[1:] {
				if _, ok := m.data[k.(string)]; ok {
					delete(m.data, k.(string))
					n++
				}
			}
			cmd.(*redis.IntCmd).SetVal(n)
		case "scan":
			prefix := ""
			for i := 0; i+1 < len(args); i++ {
				if s, ok := args[i].(string); ok && strings.EqualFold(s, "match") {
					prefix = strings.TrimSuffix(args[i+1].(string), "*")
				}
			}
			var keys []string
			for k := range m.data {
				if strings.HasPrefix(k, prefix) {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			cmd.(*redis.ScanCmd).SetVal(keys, 0)
		case "ping":
			cmd.(*redis.StatusCmd).SetVal("PONG")
		}
		return cmd.Err()
	}
}

func (m *memoryRedis) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newMemoryCache(t *testing.T, seed map[string]string) (*Cache, *memoryRedis) {
	t.Helper()
	backend := &memoryRedis{data: map[string]string{}}
	for k, v := range seed {
		backend.data[k] = v
	}
	client := redis.NewClient(&redis.Options{Addr: "memory:0"})
	client.AddHook(backend)
	t.Cleanup(func() { client.Close() })
	return &Cache{client: client, ttl: time.Minute}, backend
}

func TestCacheJSON(t *testing.T) {
	cache, _ := newMemoryCache(t, map[string]string{"student:bad": "{"})
	ctx := context.Background()

	var got struct{ Name string }
	assert.False(t, cache.GetJSON(ctx, "student:s1", &got))

	cache.SetJSON(ctx, "student:s1", struct{ Name string }{"Asha"})
	require.True(t, cache.GetJSON(ctx, "student:s1", &got))
	assert.Equal(t, "Asha", got.Name)

	assert.False(t, cache.GetJSON(ctx, "student:bad", &got), "corrupt entries miss")
	assert.NoError(t, cache.Ping(ctx))
}

func TestCacheDeletePrefix(t *testing.T) {
	cache, backend := newMemoryCache(t, map[string]string{
		"match:a":    "1",
		"match:b":    "2",
		"student:s1": "3",
	})
	ctx := context.Background()

	cache.DeletePrefix(ctx, matchCachePrefix)
	assert.Equal(t, []string{"student:s1"}, backend.keys())

	cache.DeletePrefix(ctx, matchCachePrefix)
	assert.Equal(t, []string{"student:s1"}, backend.keys())
}

func TestNilCache(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	var v map[string]any
	assert.False(t, cache.GetJSON(ctx, "k", &v))
	assert.NotPanics(t, func() {
		cache.SetJSON(ctx, "k", 1)
		cache.Delete(ctx, "k")
		cache.DeletePrefix(ctx, matchCachePrefix)
	})
	assert.NoError(t, cache.Ping(ctx))
	assert.NoError(t, cache.Close())
}
