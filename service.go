package lineproto

import "context"

// Service handles one request message and produces its response.
// A Service is created per connection, so implementations may keep
// connection-scoped state without locking.
type Service interface {
	// Handle returns the response for req. Returning an error fails the
	// connection unless the connection's service error callback says otherwise.
	Handle(ctx context.Context, req Message) (Message, error)
}

// ServiceFunc adapts an ordinary function to the Service interface.
type ServiceFunc func(ctx context.Context, req Message) (Message, error)

// Handle calls f(ctx, req).
func (f ServiceFunc) Handle(ctx context.Context, req Message) (Message, error) {
	return f(ctx, req)
}

// ServiceFactory creates a Service for a newly accepted connection.
type ServiceFactory func() Service

// Echo is a Service that returns every request unchanged.
type Echo struct{}

// Handle implements Service.
func (Echo) Handle(_ context.Context, req Message) (Message, error) {
	return req, nil
}

// NewEcho is a ServiceFactory for Echo.
func NewEcho() Service {
	return Echo{}
}
