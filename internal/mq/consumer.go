package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ideafeed/internal/services"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// NoteMsg note.created / note.processed 的消息体
type NoteMsg struct {
	NoteID uint `json:"note_id"`
}

type NoteProcessor interface {
	Process(ctx context.Context, noteID uint) (*services.PublishResult, error)
}

type NotePublisher interface {
	Publish(ctx context.Context, noteID uint) (*services.PublishResult, error)
}

type EngagementRecorder interface {
	Record(ctx context.Context, e services.Engagement) (*services.EngagementResult, error)
}

// Consumer 持有各队列的处理依赖；为 nil 的依赖对应的队列不消费
type Consumer struct {
	rabbit      *RabbitMQ
	classifier  NoteProcessor
	publication NotePublisher
	engagement  EngagementRecorder
	timeout     time.Duration
}

func NewConsumer(rabbit *RabbitMQ, classifier NoteProcessor, publication NotePublisher, engagement EngagementRecorder) *Consumer {
	return &Consumer{
		rabbit:      rabbit,
		classifier:  classifier,
		publication: publication,
		engagement:  engagement,
		timeout:     30 * time.Second,
	}
}

// errBadMessage 消息无法解析，直接丢弃不重试
var errBadMessage = errors.New("bad message")

// Start 启动所有消费者，ctx 结束后停止
func (c *Consumer) Start(ctx context.Context) {
	for _, queue := range c.queues() {
		go c.consume(ctx, queue)
	}
}

func (c *Consumer) queues() []string {
	var qs []string
	if c.classifier != nil {
		qs = append(qs, QueueNoteCreated)
	}
	if c.publication != nil {
		qs = append(qs, QueueNoteProcessed)
	}
	if c.engagement != nil {
		qs = append(qs, QueuePostEngagement)
	}
	return qs
}

func (c *Consumer) consume(ctx context.Context, queue string) {
	msgs, err := c.rabbit.Consume(queue)
	if err != nil {
		zap.L().Error("Failed to start consumer", zap.String("queue", queue), zap.Error(err))
		return
	}

	zap.L().Info("Waiting for messages...", zap.String("queue", queue))
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				zap.L().Warn("Delivery channel closed", zap.String("queue", queue))
				return
			}
			c.deliver(ctx, queue, d)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, queue string, d amqp.Delivery) {
	hctx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.Handle(hctx, queue, d.Body)
	cancel()

	switch ack(err) {
	case ackOK:
		d.Ack(false)
	case ackRequeue:
		zap.L().Warn("Message failed, requeue", zap.String("queue", queue), zap.Error(err))
		d.Nack(false, true)
	default:
		zap.L().Error("Message dropped", zap.String("queue", queue), zap.ByteString("body", d.Body), zap.Error(err))
		d.Nack(false, false)
	}
}

type ackMode int

const (
	ackOK ackMode = iota
	ackRequeue
	ackDrop
)

// ack 临时错误重新入队，其余错误丢弃；找不到 Note 等业务错误重试也不会成功
func ack(err error) ackMode {
	switch {
	case err == nil:
		return ackOK
	case services.IsRetryable(err):
		return ackRequeue
	default:
		return ackDrop
	}
}

// Handle 按队列分发一条消息
func (c *Consumer) Handle(ctx context.Context, queue string, body []byte) error {
	switch queue {
	case QueueNoteCreated, QueueNoteProcessed:
		var msg NoteMsg
		if err := json.Unmarshal(body, &msg); err != nil || msg.NoteID == 0 {
			return fmt.Errorf("%w: %s", errBadMessage, body)
		}
		var (
			res *services.PublishResult
			err error
		)
		if queue == QueueNoteCreated {
			if c.classifier == nil {
				return fmt.Errorf("no handler for %s", queue)
			}
			res, err = c.classifier.Process(ctx, msg.NoteID)
		} else {
			if c.publication == nil {
				return fmt.Errorf("no handler for %s", queue)
			}
			res, err = c.publication.Publish(ctx, msg.NoteID)
		}
		if err != nil {
			return err
		}
		if res != nil && res.Post != nil {
			zap.L().Info("Note handled",
				zap.String("queue", queue),
				zap.Uint("note_id", msg.NoteID),
				zap.Uint("post_id", res.Post.ID),
				zap.Bool("already_published", res.AlreadyPublished),
			)
		}
		return nil

	case QueuePostEngagement:
		if c.engagement == nil {
			return fmt.Errorf("no handler for %s", queue)
		}
		var e services.Engagement
		if err := json.Unmarshal(body, &e); err != nil || e.PostID == 0 {
			return fmt.Errorf("%w: %s", errBadMessage, body)
		}
		if _, err := services.ParseAction(string(e.Action)); err != nil {
			return err
		}
		_, err := c.engagement.Record(ctx, e)
		return err
	}
	return fmt.Errorf("unknown queue %s", queue)
}
