package notify

import (
	"context"
	"errors"
	"net"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/diewo77/invoicing/internal/apperr"
	"github.com/diewo77/invoicing/internal/config"
	"github.com/sirupsen/logrus"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an SMTP relay. Transient failures (4xx replies,
// timeouts) are retried with backoff, but only for messages carrying an ID so
// a retried send can be recognised as the same message downstream.
type SMTPMailer struct {
	cfg     config.SMTPConfig
	log     logrus.FieldLogger
	send    SendFunc
	backoff time.Duration
}

func NewSMTPMailer(cfg config.SMTPConfig, log logrus.FieldLogger) *SMTPMailer {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &SMTPMailer{
		cfg:     cfg,
		log:     log.WithField("client", "SMTPMailer"),
		send:    smtp.SendMail,
		backoff: time.Second,
	}
}

// WithSendFunc swaps the transport; used by tests.
func (m *SMTPMailer) WithSendFunc(fn SendFunc, backoff time.Duration) *SMTPMailer {
	m.send = fn
	m.backoff = backoff
	return m
}

func (m *SMTPMailer) auth() smtp.Auth {
	if m.cfg.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		msg.From = m.cfg.From
	}
	raw, err := msg.Bytes()
	if err != nil {
		return apperr.Transport("compose email", err)
	}

	retries := m.cfg.MaxRetries
	if msg.ID == "" {
		retries = 0
	}
	backoff := m.backoff
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return apperr.Transport("send email", ctx.Err())
		}
		err = m.send(m.cfg.Addr(), m.auth(), msg.From, []string{msg.To}, raw)
		if err == nil {
			return nil
		}
		if !IsTransient(err) || attempt >= retries {
			return apperr.Transport("send email", err)
		}
		m.log.WithFields(logrus.Fields{
			"message_id":  msg.ID,
			"attempt":     attempt + 1,
			"max_retries": retries,
			"sleep":       backoff.String(),
		}).WithError(err).Warn("smtp send retrying")

		select {
		case <-ctx.Done():
			return apperr.Transport("send email", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// IsTransient reports whether err is worth retrying: an SMTP 4xx reply or a network timeout.
func IsTransient(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code >= 400 && tpErr.Code < 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
