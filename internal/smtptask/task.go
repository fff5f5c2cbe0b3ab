// Package smtptask implements the send execution task (C7): resolve the
// account's executor (SMTP or Gmail API), stream the composed body from the
// disk cache, negotiate DSN when the account is known-capable, and on
// success mark the \Answered flag / append to Sent for replies and forwards.
// Grounded on original_source/src/modules/smtp/request/task.rs.
package smtptask

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/diskcache"
	"github.com/sparklive/rustmailer/internal/events"
	"github.com/sparklive/rustmailer/internal/metrics"
	"github.com/sparklive/rustmailer/internal/model"
	"github.com/sparklive/rustmailer/internal/store"
)

const (
	TaskKey = "send_email"
	Queue   = "smtp_send"
)

// Executor is the narrow surface this task needs from the account's
// transport (C1): send the raw MIME body, and on success report whether the
// account turned out to be DSN-capable (learned from EHLO).
type Executor interface {
	Send(ctx context.Context, accountID uint64, from string, to []string, dsn bool, body []byte) (dsnCapable bool, err error)
}

// ExecutorResolver picks the Executor for an account (SMTP pool, or MTA-by-id
// when the account has no SMTP config of its own — Gmail accounts send
// through the Gmail API executor instead, resolved the same way).
type ExecutorResolver interface {
	ExecutorFor(accountID uint64) (Executor, error)
}

// MailboxFlagger marks a message \Answered and appends the composed body to
// Sent after a successful reply/forward delivery.
type MailboxFlagger interface {
	MarkAnswered(ctx context.Context, accountID, mailboxID uint64, uid string) error
	AppendToSent(ctx context.Context, accountID uint64, body []byte) error
}

// SmtpTask is the scheduler.Task wrapping one model.SmtpTaskParams.
type SmtpTask struct {
	Params model.SmtpTaskParams `json:"params"`

	cache    *diskcache.Cache  `json:"-"`
	meta     *store.MetaStore  `json:"-"`
	resolver ExecutorResolver  `json:"-"`
	flagger  MailboxFlagger    `json:"-"`
	events   *events.Channel   `json:"-"`
	instance string            `json:"-"`
}

func (t *SmtpTask) Key() string           { return TaskKey }
func (t *SmtpTask) Queue() string         { return Queue }
func (t *SmtpTask) DelaySeconds() uint32  { return 0 }

func (t *SmtpTask) RetryPolicy() model.RetryPolicy {
	max := uint32(5)
	return model.RetryPolicy{Strategy: model.RetryExponential, BaseS: 2, MaxRetries: &max}
}

// Run streams the cached body out through the resolved executor, then
// applies the on-success/on-failure side effects described in §4.7.
func (t *SmtpTask) Run(ctx context.Context, taskID model.TaskID) error {
	p := t.Params
	body, err := t.cache.Get(p.CacheKey)
	if err != nil {
		return err
	}

	executor, err := t.resolver.ExecutorFor(p.AccountID)
	if err != nil {
		return apperr.Wrap(err, apperr.ResourceNotFound, "no send executor available for account")
	}

	wantsDSN := p.SendControl.NeedsDSN
	start := time.Now()
	dsnCapable, sendErr := executor.Send(ctx, p.AccountID, p.From, allRecipients(p), wantsDSN, body)
	duration := time.Since(start)

	if sendErr != nil {
		metrics.EmailSentTotal.WithLabelValues(metrics.Failure).Inc()
		if t.events != nil {
			t.queueSendingErrorEvent(ctx, taskID, sendErr)
		}
		return sendErr
	}

	_ = t.meta.UpdateDSNCapable(p.AccountID, dsnCapable)
	metrics.EmailSentTotal.WithLabelValues(metrics.Success).Inc()
	metrics.EmailSentBytes.Add(float64(len(body)))
	metrics.EmailSendDuration.WithLabelValues(metrics.Success).Observe(duration.Seconds())

	if p.Answer != nil && t.flagger != nil {
		if err := t.flagger.MarkAnswered(ctx, p.AccountID, p.Answer.MailboxID, p.Answer.UID); err != nil {
			return apperr.Wrap(err, apperr.ImapCommandFailed, "failed to mark original message answered")
		}
		if err := t.flagger.AppendToSent(ctx, p.AccountID, body); err != nil {
			return apperr.Wrap(err, apperr.ImapCommandFailed, "failed to append sent message to Sent folder")
		}
	}

	if t.events != nil {
		t.queueSentEvent(ctx, p)
	}
	return nil
}

func (t *SmtpTask) queueSentEvent(ctx context.Context, p model.SmtpTaskParams) {
	record := events.NewEventRecord(model.EventEmailSentSuccess, t.instance, events.EmailSentSuccess{
		AccountID: p.AccountID, AccountEmail: p.AccountEmail, From: p.From, To: p.To,
		Subject: &p.Subject, MessageID: p.MessageID,
	})
	t.events.Queue(ctx, events.Event{AccountID: p.AccountID, AccountEmail: p.AccountEmail, Record: record})
}

// queueSendingErrorEvent fires EmailSendingError on every failing attempt,
// the final one included. The event carries the task id and error text;
// RetryCount and NextRunUnix are left at zero, since Run is not given the
// task's retry count and the next run time is computed by the scheduler's
// completion path after Run returns.
func (t *SmtpTask) queueSendingErrorEvent(ctx context.Context, taskID model.TaskID, sendErr error) {
	p := t.Params
	record := events.NewEventRecord(model.EventEmailSendingError, t.instance, events.EmailSendingError{
		AccountID: p.AccountID, AccountEmail: p.AccountEmail, TaskID: taskID.String(), Error: sendErr.Error(),
	})
	t.events.Queue(ctx, events.Event{AccountID: p.AccountID, AccountEmail: p.AccountEmail, Record: record})
}

func allRecipients(p model.SmtpTaskParams) []string {
	out := append([]string{}, p.To...)
	out = append(out, p.Cc...)
	out = append(out, p.Bcc...)
	return out
}

// Bind attaches runtime collaborators the decoder cannot construct from the
// serialized params alone.
func (t *SmtpTask) Bind(cache *diskcache.Cache, meta *store.MetaStore, resolver ExecutorResolver, flagger MailboxFlagger, ch *events.Channel, instanceURL string) *SmtpTask {
	t.cache, t.meta, t.resolver, t.flagger, t.events, t.instance = cache, meta, resolver, flagger, ch, instanceURL
	return t
}

// decodeParams is used by RegisterDecoder.
func decodeParams(raw []byte) (model.SmtpTaskParams, error) {
	var p model.SmtpTaskParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, apperr.Wrap(err, apperr.InternalError, "failed to decode send_email task params")
	}
	return p, nil
}
