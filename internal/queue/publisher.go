package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// ErrBufferFull is returned by Publish when the outbound buffer is full and
// the event was dropped.
var ErrBufferFull = errors.New("queue: publish buffer full")

const (
    defaultBuffer = 256
    maxBackoff    = 30 * time.Second
)

// Publisher sends activity events to ActivityQueue.  Publish only enqueues;
// Run owns a long-lived broker connection and drains the buffer, so request
// handlers never wait on the broker.  A nil *Publisher or one with an empty
// URL drops events silently.
type Publisher struct {
    url         string
    dialTimeout time.Duration
    buf         chan Event
    log         *zap.Logger

    send func(ctx context.Context, ev Event) error // replaced in tests

    conn *amqp.Connection // owned by Run
    ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the broker at url.  Events are
// delivered only while Run is running.
func NewPublisher(url string, log *zap.Logger) *Publisher {
    if log == nil {
        log = zap.NewNop()
    }
    p := &Publisher{
        url:         url,
        dialTimeout: 2 * time.Second,
        buf:         make(chan Event, defaultBuffer),
        log:         log.Named("publisher"),
    }
    p.send = p.publish
    return p
}

// Publish hands ev to the background sender without blocking.  It returns
// ErrBufferFull when the buffer is full.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
    if p == nil || p.url == "" {
        return nil
    }
    select {
    case p.buf <- ev:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    default:
        return ErrBufferFull
    }
}

// Run delivers buffered events until ctx is cancelled.  A failed delivery is
// retried once on a fresh connection and then dropped; consecutive failures
// back off exponentially up to 30s while events keep buffering.
func (p *Publisher) Run(ctx context.Context) error {
    if p == nil || p.url == "" {
        <-ctx.Done()
        return ctx.Err()
    }
    defer p.reset()

    backoff := time.Second
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case ev := <-p.buf:
            err := p.send(ctx, ev)
            if err != nil {
                p.reset()
                err = p.send(ctx, ev)
            }
            if err == nil {
                backoff = time.Second
                p.log.Debug("event published", zap.String("event", ev.Type), zap.String("id", ev.ID))
                continue
            }
            p.reset()
            p.log.Warn("event dropped", zap.String("event", ev.Type), zap.String("id", ev.ID),
                zap.Duration("backoff", backoff), zap.Error(err))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < maxBackoff {
                backoff *= 2
            }
        }
    }
}

// publish writes ev on the current channel, dialing first when needed.
func (p *Publisher) publish(ctx context.Context, ev Event) error {
    if p.ch == nil || p.conn == nil || p.conn.IsClosed() {
        if err := p.connect(); err != nil {
            return err
        }
    }
    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.ID,
        Type:         ev.Type,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    return p.ch.PublishWithContext(ctx, "", ActivityQueue, false, false, pub)
}

func (p *Publisher) connect() error {
    p.reset()
    conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.dialTimeout)})
    if err != nil {
        return fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return fmt.Errorf("channel open: %w", err)
    }
    if _, err := ch.QueueDeclare(ActivityQueue, true, false, false, false, nil); err != nil {
        _ = conn.Close()
        return fmt.Errorf("queue declare: %w", err)
    }
    p.conn, p.ch = conn, ch
    p.log.Info("connected", zap.String("queue", ActivityQueue))
    return nil
}

func (p *Publisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.conn, p.ch = nil, nil
}
