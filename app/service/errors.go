package service

import "errors"

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrGatewayDisabled    = errors.New("gateway is disabled")
	ErrNotConfigured      = errors.New("gateway is not configured")
	ErrIssueFailed        = errors.New("payment request could not be created")
)
