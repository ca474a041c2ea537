package wsrouter

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidArity   = errors.New("invalid number of arguments")
)

// HandlerFunc handles one parsed command and returns an acknowledgement.
type HandlerFunc[C any] func(ctx context.Context, conn C, args []string) (string, error)

type Middleware[C any] func(next HandlerFunc[C]) HandlerFunc[C]

// Arity bounds the argument count of a command. Max < 0 means unbounded.
type Arity struct {
	Min, Max int
}

func Exact(n int) Arity {
	return Arity{Min: n, Max: n}
}

func AtLeast(n int) Arity {
	return Arity{Min: n, Max: -1}
}

func (a Arity) accepts(n int) bool {
	return n >= a.Min && (a.Max < 0 || n <= a.Max)
}

type route[C any] struct {
	arity   Arity
	handler HandlerFunc[C]
}

// WSRouter dispatches space separated text commands such as "queue rm <id>".
type WSRouter[C any] struct {
	routes      map[string]route[C]
	middlewares []Middleware[C]
}

func New[C any]() *WSRouter[C] {
	return &WSRouter[C]{routes: make(map[string]route[C])}
}

func (r *WSRouter[C]) Use(mws ...Middleware[C]) {
	r.middlewares = append(r.middlewares, mws...)
}

// Handle registers a command of one or two words, e.g. "play" or "queue add".
func (r *WSRouter[C]) Handle(command string, arity Arity, handler HandlerFunc[C]) {
	r.routes[command] = route[C]{arity: arity, handler: handler}
}

func (r *WSRouter[C]) Dispatch(ctx context.Context, conn C, msg string) (string, error) {
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		return "", ErrUnknownCommand
	}

	command, args := fields[0], fields[1:]
	rt, ok := route[C]{}, false
	if len(args) > 0 {
		if rt, ok = r.routes[command+" "+args[0]]; ok {
			command, args = command+" "+args[0], args[1:]
		}
	}
	if !ok {
		if rt, ok = r.routes[command]; !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownCommand, command)
		}
	}

	if !rt.arity.accepts(len(args)) {
		return "", fmt.Errorf("%w for %q: %d", ErrInvalidArity, command, len(args))
	}

	h := rt.handler
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}

	return h(context.WithValue(ctx, commandKey, command), conn, args)
}
