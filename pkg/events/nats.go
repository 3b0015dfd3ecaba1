package events

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

var errConnNotInitialized = errors.New("NATS connection not initialized")

// NATSConfig represents NATS publisher configuration.
type NATSConfig struct {
	Servers       []string `json:"servers" mapstructure:"servers"`
	Stream        string   `json:"stream" mapstructure:"stream"`
	SubjectPrefix string   `json:"subjectPrefix" mapstructure:"subjectPrefix"`
	Username      string   `json:"username,omitempty" mapstructure:"username"`
	Password      string   `json:"password,omitempty" mapstructure:"password"`
}

// NATSPublisher publishes events to a NATS JetStream stream.
type NATSPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	Config NATSConfig
}

// NewNATSPublisher connects to the first reachable server and ensures the
// configured stream exists.
func NewNATSPublisher(config NATSConfig) (*NATSPublisher, error) {
	p := &NATSPublisher{Config: config}

	if len(p.Config.Servers) == 0 {
		p.Config.Servers = []string{nats.DefaultURL}
	}
	p.Config.SubjectPrefix = cmp.Or(p.Config.SubjectPrefix, "finrag")
	p.Config.Stream = cmp.Or(p.Config.Stream, fmt.Sprintf("%s-stream", p.Config.SubjectPrefix))

	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	}
	if p.Config.Username != "" {
		opts = append(opts, nats.UserInfo(p.Config.Username, p.Config.Password))
	}

	var err error
	for _, server := range p.Config.Servers {
		p.nc, err = nats.Connect(server, opts...)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to NATS server: %w", err)
	}

	if p.js, err = p.nc.JetStream(); err != nil {
		p.nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	if err := p.ensureStream(); err != nil {
		p.nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *NATSPublisher) ensureStream() error {
	subject := fmt.Sprintf("%s.>", p.Config.SubjectPrefix)
	_, err := p.js.StreamInfo(p.Config.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:     p.Config.Stream,
		Subjects: []string{subject},
	})
	return err
}

// Publish sends the event on <prefix>.<subject>.
func (p *NATSPublisher) Publish(event Event) error {
	if p.js == nil {
		return errConnNotInitialized
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", p.Config.SubjectPrefix, event.Subject)
	if _, err := p.js.Publish(subject, data); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
