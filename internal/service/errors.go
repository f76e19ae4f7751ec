package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/grouporder/internal/middleware"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/orders"
	"github.com/mmynk/grouporder/internal/session"
)

var (
	errNoIdentity     = errors.New("no authenticated participant")
	errUnknownSession = errors.New("unknown session")
)

// toConnectError maps the order engine's error taxonomy to Connect codes.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	code := connect.CodeInternal
	switch {
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrMalformedRecord):
		code = connect.CodeNotFound
	case errors.Is(err, models.ErrAlreadyExists):
		code = connect.CodeAlreadyExists
	case errors.Is(err, models.ErrPermissionDenied):
		code = connect.CodePermissionDenied
	case errors.Is(err, models.ErrUnavailable):
		code = connect.CodeUnavailable
	case errors.Is(err, orders.ErrInvalidName):
		code = connect.CodeInvalidArgument
	case errors.Is(err, session.ErrClosed), errors.Is(err, session.ErrNotOpen):
		code = connect.CodeFailedPrecondition
	}
	return connect.NewError(code, err)
}

// participant returns the caller's identity or an Unauthenticated error.
func participant(ctx context.Context) (models.Identity, error) {
	who, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return models.Identity{}, connect.NewError(connect.CodeUnauthenticated, errNoIdentity)
	}
	return who, nil
}
