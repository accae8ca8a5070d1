package events

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/customeros/violationstack/dto"
	"github.com/customeros/violationstack/internal/enum"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/tracing"
	"github.com/customeros/violationstack/internal/utils"
)

const (
	// Exchange names
	ExchangeViolations = "violations"
	ExchangeDeadLetter = "dead-letter"

	// queues
	QueueViolationCreated   = "violation-created"
	QueueNotificationFailed = "notification-failed"
	DLQViolationCreated     = QueueViolationCreated + "-dlq"
	DLQNotificationFailed   = QueueNotificationFailed + "-dlq"

	// routing keys
	RoutingKeyDeadLetter         = "dead-letter"
	RoutingKeyViolationCreated   = "violation.created"
	RoutingKeyNotificationFailed = "notification.failed"

	DefaultMessageTTL          = 240 * time.Hour
	DefaultMaxRetries          = 3
	DefaultPublishTimeout      = 5 * time.Second
	DefaultReconnectBackoff    = time.Second
	DefaultMaxReconnectBackoff = 30 * time.Second
)

type PublisherConfig struct {
	MessageTTL          time.Duration
	MaxRetries          int
	PublishTimeout      time.Duration
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration
	AppSource           string
}

func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{
		MessageTTL:          DefaultMessageTTL,
		MaxRetries:          DefaultMaxRetries,
		PublishTimeout:      DefaultPublishTimeout,
		ReconnectBackoff:    DefaultReconnectBackoff,
		MaxReconnectBackoff: DefaultMaxReconnectBackoff,
	}
}

type RabbitMQPublisher struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	publishChannel  *amqp091.Channel
	publishMutex    sync.Mutex
	url             string
	logger          logger.Logger
	confirms        chan amqp091.Confirmation
	config          PublisherConfig
	closed          chan struct{}
}

func NewRabbitMQPublisher(rabbitmqURL string, logger logger.Logger, config *PublisherConfig) (*RabbitMQPublisher, error) {
	if config == nil {
		config = DefaultPublisherConfig()
	}

	publisher := &RabbitMQPublisher{
		url:    rabbitmqURL,
		logger: logger,
		config: *config,
		closed: make(chan struct{}),
	}

	err := publisher.connect()
	if err != nil {
		return nil, err
	}
	go publisher.handleReconnection()

	return publisher, nil
}

func (r *RabbitMQPublisher) PublishViolationCreated(ctx context.Context, violation *models.Violation) error {
	ctx = utils.SetTenantInContext(ctx, violation.TenantID)
	payload := dto.ViolationCreated{
		ViolationId:   violation.ID,
		DriverId:      violation.DriverID,
		ViolationType: violation.Category,
		Source:        violation.Source,
		SourceRef:     violation.SourceRef,
		OccurredAt:    violation.OccurredAt,
	}
	return r.publishEventOnExchange(ctx, violation.ID, enum.VIOLATION, payload, ExchangeViolations, RoutingKeyViolationCreated)
}

func (r *RabbitMQPublisher) PublishNotificationFailed(ctx context.Context, attempt *models.NotificationAttempt) error {
	ctx = utils.SetTenantInContext(ctx, attempt.TenantID)
	payload := dto.NotificationFailed{
		ViolationId: attempt.ViolationID,
		Channel:     attempt.Channel,
		Outcome:     attempt.Outcome,
		RetryCount:  attempt.RetryCount,
		Error:       attempt.Error,
	}
	return r.publishEventOnExchange(ctx, attempt.ID, enum.NOTIFICATION, payload, ExchangeViolations, RoutingKeyNotificationFailed)
}

func (r *RabbitMQPublisher) setupPublishChannel() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "Failed to open publish channel")
	}

	err = channel.Confirm(false)
	if err != nil {
		channel.Close()
		return errors.Wrap(err, "Failed to enable publisher confirms")
	}

	r.confirms = channel.NotifyPublish(make(chan amqp091.Confirmation, 1))
	r.publishChannel = channel
	return nil
}

func (r *RabbitMQPublisher) handleReconnection() {
	backoff := r.config.ReconnectBackoff

	for {
		r.connectionMutex.Lock()
		conn := r.connection
		r.connectionMutex.Unlock()

		notifyClose := conn.NotifyClose(make(chan *amqp091.Error, 1))
		select {
		case <-r.closed:
			return
		case err := <-notifyClose:
			r.logger.Warnf("RabbitMQ connection closed: %v, attempting to reconnect", err)
		}

		for {
			select {
			case <-r.closed:
				return
			default:
			}

			err := r.connect()
			if err == nil {
				r.logger.Info("Successfully reconnected to RabbitMQ")
				break
			}

			r.logger.Errorf("Failed to reconnect: %v, retrying in %v", err, backoff)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > r.config.MaxReconnectBackoff {
				backoff = r.config.MaxReconnectBackoff
			}
		}

		backoff = r.config.ReconnectBackoff
	}
}

func (r *RabbitMQPublisher) setupExchangesAndQueues() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "Failed to open channel for exchange/queue setup")
	}
	defer channel.Close()

	err = channel.ExchangeDeclare(ExchangeDeadLetter, "direct", true, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "Failed to declare dead letter exchange")
	}

	err = channel.ExchangeDeclare(ExchangeViolations, "topic", true, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "Failed to declare violations exchange")
	}

	bindings := []struct {
		queue      string
		dlq        string
		routingKey string
	}{
		{QueueViolationCreated, DLQViolationCreated, RoutingKeyViolationCreated},
		{QueueNotificationFailed, DLQNotificationFailed, RoutingKeyNotificationFailed},
	}
	for _, b := range bindings {
		if err := r.declareQueueWithDLQ(channel, b.queue, b.dlq); err != nil {
			return err
		}
		if err := channel.QueueBind(b.queue, b.routingKey, ExchangeViolations, false, nil); err != nil {
			return errors.Wrapf(err, "Failed to bind queue %s to exchange %s", b.queue, ExchangeViolations)
		}
	}

	return nil
}

func (r *RabbitMQPublisher) declareQueueWithDLQ(channel *amqp091.Channel, queueName string, dlqName string) error {
	_, err := channel.QueueDeclare(dlqName, true, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "Failed to declare DLQ %s", dlqName)
	}

	err = channel.QueueBind(dlqName, RoutingKeyDeadLetter, ExchangeDeadLetter, false, nil)
	if err != nil {
		return errors.Wrapf(err, "Failed to bind DLQ %s to exchange", dlqName)
	}

	args := amqp091.Table{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": RoutingKeyDeadLetter,
		"x-message-ttl":             int64(r.config.MessageTTL.Milliseconds()),
	}

	_, err = channel.QueueDeclare(queueName, true, false, false, false, args)
	if err != nil {
		return errors.Wrapf(err, "Failed to declare queue %s", queueName)
	}

	return nil
}

func (r *RabbitMQPublisher) connect() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	var err error
	r.connection, err = amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "Failed to connect to RabbitMQ")
	}

	err = r.setupExchangesAndQueues()
	if err != nil {
		return errors.Wrap(err, "Failed to setup exchanges and queues")
	}

	err = r.setupPublishChannel()
	if err != nil {
		return errors.Wrap(err, "Failed to setup publish channel")
	}

	return nil
}

func (r *RabbitMQPublisher) ensureConnectionAndChannel() error {
	if r.connection == nil || r.connection.IsClosed() {
		if err := r.connect(); err != nil {
			return errors.Wrap(err, "Failed to establish connection")
		}
	}

	if r.publishChannel == nil || r.publishChannel.IsClosed() {
		if err := r.setupPublishChannel(); err != nil {
			return errors.Wrap(err, "Failed to establish channel")
		}
	}

	return nil
}

func (r *RabbitMQPublisher) publishEventOnExchange(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}, exchange, routingKey string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishEventOnExchange")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("routingKey", routingKey)

	eventMessage := buildEvent(ctx, span, entityId, entityType, message, r.config.AppSource)

	return r.publishMessageOnExchange(ctx, eventMessage, exchange, routingKey)
}

func buildEvent(ctx context.Context, span opentracing.Span, entityId string, entityType enum.EntityType, message interface{}, appSource string) dto.Event {
	tracingData := tracing.ExtractTextMapCarrier(span.Context())

	messageType := reflect.TypeOf(message)
	if messageType.Kind() == reflect.Ptr {
		messageType = messageType.Elem()
	}

	if source := utils.GetAppSourceFromContext(ctx); source != "" {
		appSource = source
	}

	return dto.Event{
		Event: dto.EventDetails{
			Id:         utils.GenerateNanoIDWithPrefix("event", 21),
			EntityId:   entityId,
			EntityType: entityType,
			Tenant:     utils.GetTenantFromContext(ctx),
			EventType:  messageType.Name(),
			Data:       message,
		},
		Metadata: dto.EventMetadata{
			UberTraceId: tracingData["uber-trace-id"],
			AppSource:   appSource,
			RequestId:   utils.GetRequestIdFromContext(ctx),
			Timestamp:   utils.Now().Format(time.RFC3339),
		},
	}
}

func (r *RabbitMQPublisher) publishMessageOnExchange(ctx context.Context, message interface{}, exchange, routingKey string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishMessageOnExchange")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	tracing.LogObjectAsJson(span, "message", message)

	var lastErr error
	for attempt := 0; attempt < r.config.MaxRetries; attempt++ {
		err := r.publishWithConfirm(ctx, message, exchange, routingKey)
		if err == nil {
			return nil
		}
		lastErr = err

		r.logger.Warnf("Publish attempt %d failed: %v", attempt+1, err)
		if attempt < r.config.MaxRetries-1 {
			time.Sleep(time.Millisecond * 100 * time.Duration(attempt+1))
		}
	}

	err := errors.Wrap(lastErr, "Failed to publish message after all retries")
	tracing.TraceErr(span, err)
	return err
}

func (r *RabbitMQPublisher) publishWithConfirm(ctx context.Context, message interface{}, exchange, routingKey string) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := r.ensureConnectionAndChannel(); err != nil {
		return err
	}

	jsonBody, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "Failed to marshal message")
	}

	err = r.publishChannel.Publish(
		exchange,
		routingKey,
		true,  // mandatory
		false, // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Body:         jsonBody,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return errors.Wrap(err, "Failed to publish message")
	}

	select {
	case confirm := <-r.confirms:
		if !confirm.Ack {
			return errors.New("Message was not confirmed by server")
		}
	case <-time.After(r.config.PublishTimeout):
		return errors.New("Publish confirmation timeout")
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// Close gracefully shuts down the publisher
func (r *RabbitMQPublisher) Close() error {
	select {
	case <-r.closed:
	default:
		close(r.closed)
	}

	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	var err error
	if r.publishChannel != nil {
		err = r.publishChannel.Close()
		if err != nil {
			r.logger.Errorf("Error closing publish channel: %v", err)
		}
	}

	if r.connection != nil {
		if closeErr := r.connection.Close(); closeErr != nil {
			r.logger.Errorf("Error closing connection: %v", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}

	return err
}
