package notifications

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/redis/go-redis/v9"
)

const (
	defaultOnlineSetKey      = "live:online_devices"
	defaultLastSeenKeyPrefix = "live:last_seen:"
	defaultLastSeenTTL       = 90 * time.Second
	defaultReaperInterval    = 60 * time.Second
)

// PresenceConfig controls the Redis mirror of device presence.
type PresenceConfig struct {
	OnlineSetKey      string
	LastSeenKeyPrefix string
	LastSeenTTL       time.Duration
	ReaperInterval    time.Duration
}

// Presence tracks devices holding a live connection, locally and mirrored
// in Redis so other instances can see them.
type Presence struct {
	rdb *redis.Client

	mu         sync.RWMutex
	localConns map[string]int

	onlineSetKey      string
	lastSeenKeyPrefix string
	lastSeenTTL       time.Duration
	reaperInterval    time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresence creates a tracker and starts the Redis reaper when Redis is available.
func NewPresence(rdb *redis.Client, cfg PresenceConfig) *Presence {
	p := &Presence{
		rdb:               rdb,
		localConns:        make(map[string]int),
		onlineSetKey:      defaultOnlineSetKey,
		lastSeenKeyPrefix: defaultLastSeenKeyPrefix,
		lastSeenTTL:       defaultLastSeenTTL,
		reaperInterval:    defaultReaperInterval,
		stopCh:            make(chan struct{}),
	}
	if cfg.OnlineSetKey != "" {
		p.onlineSetKey = cfg.OnlineSetKey
	}
	if cfg.LastSeenKeyPrefix != "" {
		p.lastSeenKeyPrefix = cfg.LastSeenKeyPrefix
	}
	if cfg.LastSeenTTL > 0 {
		p.lastSeenTTL = cfg.LastSeenTTL
	}
	if cfg.ReaperInterval > 0 {
		p.reaperInterval = cfg.ReaperInterval
	}
	if p.rdb != nil {
		go p.reaperLoop()
	}
	return p
}

func (p *Presence) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

func (p *Presence) Register(ctx context.Context, deviceID string) {
	p.mu.Lock()
	p.localConns[deviceID]++
	p.mu.Unlock()
	p.Touch(ctx, deviceID)
}

// Touch refreshes the last-seen mark of deviceID.
func (p *Presence) Touch(ctx context.Context, deviceID string) {
	if p.rdb == nil {
		return
	}
	if err := p.rdb.SAdd(ctx, p.onlineSetKey, deviceID).Err(); err != nil {
		observability.RedisErrors.WithLabelValues("sadd").Inc()
		return
	}
	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err := p.rdb.SetEx(ctx, p.lastSeenKey(deviceID), now, p.lastSeenTTL).Err(); err != nil {
		observability.RedisErrors.WithLabelValues("setex").Inc()
	}
}

func (p *Presence) Unregister(ctx context.Context, deviceID string) {
	p.mu.Lock()
	n := p.localConns[deviceID] - 1
	if n > 0 {
		p.localConns[deviceID] = n
		p.mu.Unlock()
		return
	}
	delete(p.localConns, deviceID)
	p.mu.Unlock()

	if p.rdb != nil {
		_ = p.rdb.Del(ctx, p.lastSeenKey(deviceID)).Err()
		_ = p.rdb.SRem(ctx, p.onlineSetKey, deviceID).Err()
	}
}

// IsOnline reports whether deviceID has a live connection on any instance.
func (p *Presence) IsOnline(ctx context.Context, deviceID string) bool {
	p.mu.RLock()
	local := p.localConns[deviceID] > 0
	p.mu.RUnlock()
	if local || p.rdb == nil {
		return local
	}
	exists, err := p.rdb.Exists(ctx, p.lastSeenKey(deviceID)).Result()
	return err == nil && exists > 0
}

// reapOnce drops online-set members whose last-seen mark expired.
func (p *Presence) reapOnce(ctx context.Context) int {
	if p.rdb == nil {
		return 0
	}
	members, err := p.rdb.SMembers(ctx, p.onlineSetKey).Result()
	if err != nil {
		observability.RedisErrors.WithLabelValues("smembers").Inc()
		return 0
	}
	reaped := 0
	for _, deviceID := range members {
		exists, err := p.rdb.Exists(ctx, p.lastSeenKey(deviceID)).Result()
		if err != nil || exists > 0 {
			continue
		}
		p.mu.RLock()
		hasLocal := p.localConns[deviceID] > 0
		p.mu.RUnlock()
		if hasLocal {
			continue
		}
		_ = p.rdb.SRem(ctx, p.onlineSetKey, deviceID).Err()
		reaped++
	}
	return reaped
}

func (p *Presence) reaperLoop() {
	ticker := time.NewTicker(p.reaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce(context.Background())
		}
	}
}

func (p *Presence) lastSeenKey(deviceID string) string {
	return p.lastSeenKeyPrefix + deviceID
}
