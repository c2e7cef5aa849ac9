package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const fanoutPattern = "relay:room:*"

// fanoutFrame is one envelope crossing instances. Instance marks the
// origin so a relay never re-applies its own broadcasts.
type fanoutFrame struct {
	Instance string `json:"instance"`
	RoomID   string `json:"roomId"`
	Except   string `json:"except,omitempty"`
	Payload  []byte `json:"payload"`
}

// Fanout rebroadcasts relay frames across instances over redis pub/sub,
// so members of one room can be connected to different relay processes.
type Fanout struct {
	rdb        *redis.Client
	hub        *Hub
	instanceID string
	logger     *slog.Logger
	cancel     context.CancelFunc
}

func NewFanout(redisURL string, hub *Hub, logger *slog.Logger) (*Fanout, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	instanceID, err := gonanoid.New(12)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}

	f := &Fanout{
		rdb:        rdb,
		hub:        hub,
		instanceID: instanceID,
		logger:     logger.With("component", "relay_fanout", "instance", instanceID),
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go f.subscribe(ctx)
	f.logger.Info("relay fanout connected")
	return f, nil
}

// Publish forwards a locally produced frame to the other instances.
func (f *Fanout) Publish(roomID, exceptConnID string, payload []byte) {
	frame := fanoutFrame{
		Instance: f.instanceID,
		RoomID:   roomID,
		Except:   exceptConnID,
		Payload:  payload,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		f.logger.Error("marshal fanout frame failed", "error", err)
		return
	}
	if err := f.rdb.Publish(context.Background(), "relay:room:"+roomID, data).Err(); err != nil {
		f.logger.Error("publish fanout frame failed", "room_id", roomID, "error", err)
	}
}

func (f *Fanout) subscribe(ctx context.Context) {
	pubsub := f.rdb.PSubscribe(ctx, fanoutPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		f.logger.Error("fanout subscription failed", "error", err)
		return
	}

	for msg := range pubsub.Channel() {
		var frame fanoutFrame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			f.logger.Warn("dropping malformed fanout frame", "channel", msg.Channel, "error", err)
			continue
		}
		if frame.Instance == f.instanceID {
			continue
		}
		f.hub.Broadcast(frame.RoomID, frame.Except, frame.Payload)
	}
}

func (f *Fanout) Close() error {
	f.cancel()
	return f.rdb.Close()
}
