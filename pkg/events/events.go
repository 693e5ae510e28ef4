// Package events delivers order lifecycle events to an actor that writes the audit trail
// off the request path.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/foodhall/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

type Kind string

const (
	OrderPlaced      Kind = "order_placed"
	PaymentConfirmed Kind = "payment_confirmed"
	PaymentFailed    Kind = "payment_failed"
	OrderUpdated     Kind = "order_updated"
	ItemCreated      Kind = "item_created"
	ItemDeleted      Kind = "item_deleted"
	UserRegistered   Kind = "user_registered"
)

type Event struct {
	Kind     Kind
	EntityID string
	UserID   string
	Data     map[string]interface{}
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(ev Event)
}

// AuditWriter persists audit entries; *repository.MongoRepository implements it.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
}

type flush struct{}
type flushed struct{}

// AuditActor writes one audit entry per event, in arrival order.
type AuditActor struct {
	service string
	writer  AuditWriter
	logger  *zap.Logger
	timeout time.Duration
}

func (a *AuditActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *Event:
		a.logger.Info("Order event",
			zap.String("kind", string(msg.Kind)),
			zap.String("entity_id", msg.EntityID),
			zap.String("user_id", msg.UserID))

		if a.writer == nil {
			return
		}
		wctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		data := bson.M{"user_id": msg.UserID}
		for k, v := range msg.Data {
			data[k] = v
		}
		err := a.writer.CreateAuditLog(wctx, &repository.AuditLog{
			Service:  a.service,
			Action:   string(msg.Kind),
			EntityID: msg.EntityID,
			Data:     data,
		})
		if err != nil {
			a.logger.Error("Failed to write audit log",
				zap.String("kind", string(msg.Kind)),
				zap.String("entity_id", msg.EntityID),
				zap.Error(err))
		}

	case *flush:
		ctx.Respond(&flushed{})

	case *actor.Started:
		a.logger.Info("Audit actor started")

	case *actor.Stopping:
		a.logger.Info("Audit actor stopping")
	}
}

type Bus struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

// NewBus starts the actor system and spawns the audit actor.
func NewBus(service string, writer AuditWriter, logger *zap.Logger) (*Bus, error) {
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &AuditActor{
			service: service,
			writer:  writer,
			logger:  logger.Named("audit-actor"),
			timeout: 5 * time.Second,
		}
	})
	pid, err := system.Root.SpawnNamed(props, "audit-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn audit actor: %w", err)
	}

	return &Bus{system: system, pid: pid, logger: logger}, nil
}

func (b *Bus) Publish(ev Event) {
	b.system.Root.Send(b.pid, &ev)
}

// Flush waits until every event published before the call has been handled.
func (b *Bus) Flush(timeout time.Duration) error {
	_, err := b.system.Root.RequestFuture(b.pid, &flush{}, timeout).Result()
	return err
}

func (b *Bus) Close(timeout time.Duration) {
	if err := b.Flush(timeout); err != nil {
		b.logger.Warn("Audit actor did not drain before shutdown", zap.Error(err))
	}
	b.system.Root.Stop(b.pid)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
