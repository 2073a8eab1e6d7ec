package events

import (
	"encoding/json"
	"fmt"

	"conveyor/pkg/util/context"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

// AMQPType is the emitter type publishing events to an AMQP queue, for
// downstream consumers such as notification or audit services.
const AMQPType Type = "amqp"

func init() {
	f := func(ctx context.Context, c interface{}) (Emitter, error) {
		asAMQPConf, isAMQPConf := c.(*AMQPConfig)
		if !isAMQPConf {
			return nil, errors.Errorf("given configuration struct is not type %v", AMQPConfig{})
		}
		return NewAMQPEmitter(ctx, *asAMQPConf)
	}
	register(AMQPType, f, &AMQPConfig{})
}

// AMQPConfig is the configuration for the AMQP emitter.
type AMQPConfig struct {
	User     string `json:"user" env:"EVENTS_AMQP_USER"`
	Password string `json:"password" env:"EVENTS_AMQP_PASSWORD"`
	URI      string `json:"uri" env:"EVENTS_AMQP_URI"`
	Queue    string `json:"queue" env:"EVENTS_AMQP_QUEUE" envDefault:"conveyor.events"`
}

// NewAMQPEmitter returns an Emitter publishing events to an AMQP queue.
func NewAMQPEmitter(ctx context.Context, conf AMQPConfig) (Emitter, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s", conf.User, conf.Password, conf.URI)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to amqp broker at %s", conf.URI)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "cannot open amqp channel")
	}
	if _, err := ch.QueueDeclare(conf.Queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "cannot declare queue %s", conf.Queue)
	}
	return &amqpEmitter{
		conn:  conn,
		ch:    ch,
		queue: conf.Queue,
	}, nil
}

type amqpEmitter struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func (e *amqpEmitter) Emit(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrapf(err, "cannot encode event %s", evt)
	}
	pub := amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: evt.CorrelationID,
		Timestamp:     evt.Time,
		Body:          body,
	}
	if err := e.ch.Publish("", e.queue, false, false, pub); err != nil {
		return errors.Wrapf(err, "cannot publish event %s", evt)
	}
	return nil
}

func (e *amqpEmitter) Close() error {
	if err := e.ch.Close(); err != nil {
		return errors.Wrap(err, "cannot close amqp channel")
	}
	return errors.Wrap(e.conn.Close(), "cannot close amqp connection")
}
