package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/infrastructure/resilience"
)

// connectionErrors clear up once the client reconnects.
var connectionErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
}

// publishMisuse is never fixed by retrying.
var publishMisuse = []error{
	nats.ErrMaxPayload,
	nats.ErrBadSubject,
	nats.ErrInvalidMsg,
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isAny(err, connectionErrors):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// publishError maps a failed publish to a domain kind: misuse is a
// configuration problem, connection trouble is temporary.
func publishError(err error) error {
	const op = "publish queued job"
	switch {
	case err == nil:
		return nil
	case domain.IsKind(err, domain.ErrTemporary):
		return err
	case isAny(err, publishMisuse):
		return domain.WrapError(domain.ErrConfiguration, op, err)
	case classifyNATSError(err).Retryable:
		return domain.WrapError(domain.ErrTemporary, op, err)
	default:
		return err
	}
}
