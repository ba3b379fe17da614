// Package mq RabbitMQ 连接、事件发布与消费者
package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	QueueNoteCreated    = "note.created"    // 新 Note，待分类
	QueueNoteProcessed  = "note.processed"  // 外部流程已分类完成，待发布
	QueuePostEngagement = "post.engagement" // 互动事件
)

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	mu       sync.Mutex
	declared map[string]bool
}

// New 初始化 RabbitMQ 连接
func New(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close() // 通道创建失败，关闭连接
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	return &RabbitMQ{
		conn:     conn,
		channel:  ch,
		declared: make(map[string]bool),
	}, nil
}

// declare 持久化队列，每个队列只声明一次
func (r *RabbitMQ) declare(queue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.declared[queue] {
		return nil
	}
	if _, err := r.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	r.declared[queue] = true
	return nil
}

// Publish 以持久化消息投递到默认交换机
func (r *RabbitMQ) Publish(ctx context.Context, queue string, body []byte) error {
	if err := r.declare(queue); err != nil {
		return err
	}
	return r.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Consume 手动确认模式
func (r *RabbitMQ) Consume(queue string) (<-chan amqp.Delivery, error) {
	if err := r.declare(queue); err != nil {
		return nil, err
	}
	if err := r.channel.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return r.channel.Consume(queue, "", false, false, false, false, nil)
}

// Close 关闭连接
func (r *RabbitMQ) Close() {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}
