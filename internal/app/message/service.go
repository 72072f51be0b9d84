package message

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"messenger/internal/app/notification"
	"messenger/internal/app/thread"
	"messenger/internal/errs"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Directory is the part of the thread service the composer writes through.
type Directory interface {
	CreateThread(ctx context.Context, in thread.NewThread) (*thread.Created, error)
	GetThread(ctx context.Context, threadID uint64) (*thread.Thread, error)
	Reply(ctx context.Context, threadID, senderID uint64, body string) (*thread.Message, error)
	ParticipantUserIDs(ctx context.Context, threadID uint64, includeRemoved bool) ([]uint64, error)
}

type TokenSource interface {
	Token(userID uint64) string
}

// Service hands out drafts and sends replies into existing threads.
type Service interface {
	New() *Draft
	Create(defaults Fields) *Draft
	Reply(ctx context.Context, threadID uint64, sender Sender, body string, notify bool) (*ReplyResponse, error)
}

type service struct {
	directory Directory
	publisher notification.Publisher
	tokens    TokenSource
	validate  *validator.Validate
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewService(directory Directory, publisher notification.Publisher, tokens TokenSource, logger *zap.Logger) Service {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &service{
		directory: directory,
		publisher: publisher,
		tokens:    tokens,
		validate:  validate,
		logger:    logger.Sugar(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) New() *Draft {
	return &Draft{svc: s, store: true}
}

func (s *service) Create(defaults Fields) *Draft {
	d := s.New()
	d.fields = defaults
	return d
}

func (s *service) check(fields Fields) error {
	err := s.validate.Struct(fields)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &errs.ValidationError{Field: verrs[0].Field()}
	}
	return err
}

func (s *service) send(ctx context.Context, d *Draft, overrides Fields) (*Result, error) {
	if !d.store && !d.notify {
		return nil, &errs.ConfigurationError{Reason: "enable at least one of store or notify"}
	}

	fields := d.fields.merge(overrides)
	if err := s.check(fields); err != nil {
		return nil, err
	}
	recipients := thread.UniqueIDs(d.recipients)
	if !d.toAll && len(recipients) == 0 {
		return nil, &errs.ValidationError{Field: "recipients", Reason: "must be set, or the message sent to all users"}
	}

	result := &Result{}
	payload := notification.Message{
		Subject:   fields.Subject,
		Body:      fields.Body,
		Link:      fields.Link,
		Links:     fields.Links,
		SenderID:  fields.SenderID,
		Category:  fields.Category,
		CreatedAt: s.now(),
		Store:     d.store,
	}

	if d.store {
		created, err := s.directory.CreateThread(ctx, thread.NewThread{
			Subject:    fields.Subject,
			Category:   fields.Category,
			SenderID:   fields.SenderID,
			Body:       fields.Body,
			Recipients: recipients,
			Broadcast:  d.toAll,
		})
		if err != nil {
			return nil, err
		}
		result.Thread = created.Thread
		result.Message = created.Message
		payload.ThreadID = created.Thread.ID
		payload.Category = created.Thread.Category
		payload.CreatedAt = created.Message.CreatedAt
	}

	if d.notify {
		result.Notified = s.notify(ctx, payload, d.toAll, recipients)
	}

	s.logger.Infow("Message sent",
		"sender_id", fields.SenderID,
		"stored", d.store,
		"notified", result.Notified,
		"to_all", d.toAll,
		"recipients", len(recipients),
	)
	return result, nil
}

// notify emits one event for a broadcast, otherwise one per recipient.
func (s *service) notify(ctx context.Context, payload notification.Message, toAll bool, recipients []uint64) int {
	if toAll {
		s.publisher.Publish(ctx, notification.Broadcast(payload))
		return 1
	}
	for _, userID := range recipients {
		s.publisher.Publish(ctx, notification.Directed(s.tokens.Token(userID), payload))
	}
	return len(recipients)
}

func (s *service) Reply(ctx context.Context, threadID uint64, sender Sender, body string, notify bool) (*ReplyResponse, error) {
	t, err := s.directory.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if t.ToAll && !sender.Admin {
		return nil, &errs.ForbiddenError{Action: "reply to broadcast", ThreadID: threadID}
	}

	message, err := s.directory.Reply(ctx, threadID, sender.ID, body)
	if err != nil {
		return nil, err
	}
	resp := &ReplyResponse{Message: message}
	if !notify {
		return resp, nil
	}

	payload := notification.Message{
		ThreadID:  t.ID,
		Subject:   t.Subject,
		Body:      message.Body,
		SenderID:  sender.ID,
		Category:  t.Category,
		CreatedAt: message.CreatedAt,
		Store:     true,
	}

	var recipients []uint64
	if !t.ToAll {
		ids, err := s.directory.ParticipantUserIDs(ctx, threadID, false)
		if err != nil {
			s.logger.Warnw("Reply stored but participant lookup failed, skipping notify", "thread_id", threadID, "error", err)
			return resp, nil
		}
		for _, id := range ids {
			if id != sender.ID {
				recipients = append(recipients, id)
			}
		}
	}
	resp.Notified = s.notify(ctx, payload, t.ToAll, thread.UniqueIDs(recipients))
	return resp, nil
}
