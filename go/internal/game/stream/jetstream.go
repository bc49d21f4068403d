package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Header names set on every mirrored message.
const (
	HeaderRoomID = "Claimline-Room"
	HeaderEvent  = "Claimline-Event"
)

// JetStreamConfig selects the NATS server and the stream room broadcasts land in.
type JetStreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	// Retention bounds. A match is short, so a day of history is plenty for replays.
	MaxAge  time.Duration
	MaxMsgs int64
	// Memory keeps the stream off disk; useful for local play where nothing needs replaying.
	Memory bool
	// DedupeWindow is how long JetStream remembers event ids for duplicate suppression.
	DedupeWindow  time.Duration
	ConnectWait   time.Duration
	ReconnectWait time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "CLAIMLINE_ROOMS",
		SubjectPrefix: "claimline.rooms",
		MaxAge:        24 * time.Hour,
		MaxMsgs:       -1,
		DedupeWindow:  time.Minute,
		ConnectWait:   10 * time.Second,
		ReconnectWait: 2 * time.Second,
	}
}

// streamConfig is the JetStream stream holding every room subject under the prefix.
func (c JetStreamConfig) streamConfig() jetstream.StreamConfig {
	storage := jetstream.FileStorage
	if c.Memory {
		storage = jetstream.MemoryStorage
	}
	return jetstream.StreamConfig{
		Name:        c.StreamName,
		Description: "claimline room broadcasts",
		Subjects:    []string{c.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		Discard:     jetstream.DiscardOld,
		MaxAge:      c.MaxAge,
		MaxMsgs:     c.MaxMsgs,
		Storage:     storage,
		Replicas:    1,
		Duplicates:  c.DedupeWindow,
	}
}

// JetStreamPublisher writes room events to <prefix>.<room>.<event>.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// NewJetStreamPublisher connects and makes sure the room stream exists.
func NewJetStreamPublisher(cfg JetStreamConfig) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("claimline-mirror"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("room mirror lost NATS, events will queue")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("room mirror reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectWait)
	defer cancel()
	sc := cfg.streamConfig()
	if _, err := js.CreateOrUpdateStream(ctx, sc); err != nil {
		nc.Close()
		return nil, fmt.Errorf("create or update stream %s: %w", sc.Name, err)
	}
	log.Info().Str("stream", sc.Name).Str("subjects", sc.Subjects[0]).Bool("memory", cfg.Memory).Msg("room stream ready")

	return &JetStreamPublisher{nc: nc, js: js, config: cfg}, nil
}

// Subject is where events of a room are published.
func Subject(prefix, roomID, eventType string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, subjectToken(roomID), subjectToken(eventType))
}

var subjectReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return subjectReplacer.Replace(s)
}

// MirroredEvent is the JSON body of a mirrored message. Payload is the exact broadcast the
// room's clients received.
type MirroredEvent struct {
	ID     string          `json:"id"`
	Room   string          `json:"room"`
	Event  string          `json:"event"`
	SentAt int64           `json:"sentAt"`
	Data   json.RawMessage `json:"data"`
}

func encodeMessage(prefix string, event RoomEvent) (*nats.Msg, error) {
	body, err := json.Marshal(MirroredEvent{
		ID:     event.ID.String(),
		Room:   event.RoomID,
		Event:  event.EventType,
		SentAt: event.CreatedAt.UnixMilli(),
		Data:   json.RawMessage(event.Payload),
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s for room %s: %w", event.EventType, event.RoomID, err)
	}
	msg := nats.NewMsg(Subject(prefix, event.RoomID, event.EventType))
	msg.Data = body
	msg.Header.Set(HeaderRoomID, event.RoomID)
	msg.Header.Set(HeaderEvent, event.EventType)
	return msg, nil
}

// Publish sends one room event. The event id doubles as the JetStream message id, so a retry
// inside the dedupe window is stored once.
func (p *JetStreamPublisher) Publish(ctx context.Context, event RoomEvent) error {
	msg, err := encodeMessage(p.config.SubjectPrefix, event)
	if err != nil {
		return err
	}
	ack, err := p.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(event.ID.String()),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	log.Debug().
		Str("subject", msg.Subject).
		Uint64("seq", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("room event mirrored")
	return nil
}

func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// Connected reports whether the NATS connection is currently up.
func (p *JetStreamPublisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}
