package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/dallosh/livedesk/internal/services"
	"github.com/dallosh/livedesk/internal/voice"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultEscalationStream = "requests:stream"

// StreamEscalator enqueues escalations onto the Redis stream consumed by
// the worker pool below. Raising a ticket never blocks the live path.
type StreamEscalator struct {
	Redis  *redis.Client
	Stream string
}

func (e *StreamEscalator) Raise(ctx context.Context, esc voice.Escalation) error {
	stream := e.Stream
	if stream == "" {
		stream = DefaultEscalationStream
	}
	return e.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"session_id":  esc.SessionID,
			"title":       esc.Title,
			"description": esc.Description,
			"user_id":     esc.UserID,
			"user_name":   esc.UserName,
			"label":       esc.Label,
		},
	}).Err()
}

// EscalationWorkerPool turns escalation stream entries into support
// request tickets. Duplicate entries for the same session and title are
// absorbed by the service, so redeliveries are harmless.
type EscalationWorkerPool struct {
	Redis      *redis.Client
	Requests   services.RequestService
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *EscalationWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Requests == nil {
		return errors.New("EscalationWorkerPool missing dependency: Redis/Requests must be set")
	}
	if p.Stream == "" {
		p.Stream = DefaultEscalationStream
	}
	if p.Group == "" {
		p.Group = "request-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 3
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *EscalationWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *EscalationWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	sessionID := getStr("session_id")
	title := getStr("title")
	if sessionID == "" || title == "" {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   msg.ID,
		"session_id": sessionID,
	})

	req, err := p.Requests.Create(ctx, services.CreateRequestInput{
		SessionID:   sessionID,
		Title:       title,
		Description: getStr("description"),
		UserID:      getStr("user_id"),
		UserName:    getStr("user_name"),
		Label:       getStr("label"),
	})
	if err != nil {
		log.WithError(err).Warn("create support request failed")
		return
	}
	if req == nil {
		log.Debug("duplicate escalation skipped")
		return
	}

	statusCh := "session:" + sessionID + ":status"
	payload := `{"type":"request_created","request_id":"` + req.RequestID + `"}`
	if err := p.Redis.Publish(ctx, statusCh, payload).Err(); err != nil {
		log.WithError(err).Debug("publish request status failed")
	}
	log.WithField("request_id", req.RequestID).Info("support request created")
}
