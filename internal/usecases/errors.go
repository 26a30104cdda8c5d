package usecases

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrUnauthorized       = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrSlotUnavailable    = errors.New("Disponibilidad no encontrada o ya está ocupada")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrYouTubeUnavailable = errors.New("Actualmente los videos de YouTube no están disponibles. Prueba con un video de TikTok o Instagram.")
	ErrNotConfigured      = errors.New("service not configured")
	ErrPersistence        = errors.New("persistence failed")
)

// Error carries a user-facing message while matching its Kind with errors.Is.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func invalid(msg string) error  { return newError(ErrInvalidInput, msg) }
func notFound(msg string) error { return newError(ErrNotFound, msg) }
