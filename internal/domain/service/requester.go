package service

import "context"

// RequesterResolver maps a workflow identifier to the requester name sent
// with a forecast submission.
type RequesterResolver interface {
	Resolve(ctx context.Context, identifier string) (string, error)
}
