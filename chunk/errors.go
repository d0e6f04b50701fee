package chunk

import (
	"errors"
	"fmt"
	"log"
)

var (
	ErrMalformedStream        = errors.New("chunk: malformed stream")
	ErrUnknownBiomeID         = errors.New("chunk: unknown biome id")
	ErrUnknownBlockIdentifier = errors.New("chunk: unknown block identifier")
)

// ErrorHandler receives errors that abort decoding.
type ErrorHandler interface {
	HandleError(err error)
}

type ErrorHandlerFunc func(err error)

func (f ErrorHandlerFunc) HandleError(err error) {
	f(err)
}

// LogErrorHandler logs errors. A nil Logger uses the standard logger.
type LogErrorHandler struct {
	Logger *log.Logger
}

func (h LogErrorHandler) HandleError(err error) {
	if h.Logger == nil {
		log.Printf("chunk data: %v", err)
		return
	}
	h.Logger.Printf("chunk data: %v", err)
}

func malformed(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformedStream, what, err)
}
