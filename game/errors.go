package game

import "errors"

// OpError is a recoverable, typed rejection of a session operation. The Code
// travels to the transport layer verbatim so it can be translated into a user
// message. Operations that return an OpError leave session state untouched.
type OpError struct {
	Code    string
	Message string
}

func (e *OpError) Error() string { return e.Code + ": " + e.Message }

var (
	ErrCapacityExceeded = &OpError{Code: "capacity-exceeded", Message: "session is full"}
	ErrInvalidPhase     = &OpError{Code: "invalid-phase", Message: "operation not allowed in current phase"}
	ErrAlreadyConfirmed = &OpError{Code: "already-confirmed", Message: "card already confirmed this session"}
	ErrNoCardSelected   = &OpError{Code: "no-card-selected", Message: "no card selected"}
	ErrCardTaken        = &OpError{Code: "card-taken", Message: "card number already taken in this session"}
	ErrUnverifiedMarks  = &OpError{Code: "unverified-marks", Message: "a marked cell was never drawn"}
	ErrNoWinningLine    = &OpError{Code: "no-winning-line", Message: "no complete row, column or diagonal"}
	ErrGameAlreadyOver  = &OpError{Code: "game-already-over", Message: "the game has already finished"}
	ErrUnknownSession   = &OpError{Code: "unknown-session", Message: "no such session"}
	ErrUnknownPlayer    = &OpError{Code: "unknown-player", Message: "player not in session"}
	ErrNotHost          = &OpError{Code: "not-host", Message: "only the host may start the game"}
	ErrInvalidCell      = &OpError{Code: "invalid-cell", Message: "cell coordinates out of range"}
)

// ErrInternal marks invariant violations (generator retry exhaustion,
// corrupted draw state). It is fatal for the affected session only: the
// session broadcasts gameEnded{reason:"internal-error"} and finishes.
var ErrInternal = errors.New("internal-error")

// CodeOf extracts the wire reason code from an operation error.
func CodeOf(err error) string {
	var op *OpError
	if errors.As(err, &op) {
		return op.Code
	}
	if errors.Is(err, ErrInternal) {
		return "internal-error"
	}
	return "internal-error"
}
