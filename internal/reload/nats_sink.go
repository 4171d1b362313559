package reload

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes reload signals on a NATS subject for observers outside
// the dev server, such as editor plugins or a remote preview.
type NATSSink struct {
	conn    *nats.Conn
	pub     publisher
	subject string
}

// NewNATSSink connects to url and publishes on subject.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	conn, err := nats.Connect(url, nats.Name("assetflow"))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryReload, "failed to connect to NATS").
			WithContext("url", url).
			Build()
	}
	slog.Info("NATS reload sink connected", "url", url, "subject", subject)
	return &NATSSink{conn: conn, pub: conn, subject: subject}, nil
}

// Name implements Sink.
func (s *NATSSink) Name() string { return "nats" }

// Send implements Sink.
func (s *NATSSink) Send(_ context.Context, sig Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryReload, "encode reload signal").Build()
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryReload, "failed to publish reload signal").
			WithContext("subject", s.subject).
			Build()
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
