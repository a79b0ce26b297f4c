package ledger

import "errors"

// Rejection errors: expected, non-fatal outcomes of risk checks. A
// rejected signal leaves every portfolio untouched. Distinguished from
// not-found and invariant errors so callers can branch with errors.Is.
var (
	ErrQuantityTooSmall    = errors.New("ledger: requested size buys zero contracts")
	ErrInsufficientCapital = errors.New("ledger: insufficient available capital")
	ErrPositionTooLarge    = errors.New("ledger: requested size exceeds max position size")
	ErrExposureCapExceeded = errors.New("ledger: aggregate exposure cap exceeded")
	ErrMaxPositionsReached = errors.New("ledger: max concurrent positions reached")
	ErrDailyLossLimit      = errors.New("ledger: daily loss limit reached")
)

// Not-found errors: reported to the caller, never fatal.
var (
	ErrUnknownStrategy  = errors.New("ledger: unknown strategy")
	ErrPositionNotFound = errors.New("ledger: position not found")
)

// ErrInvalidPrice marks a price outside (0, 1). Prices are validated
// upstream, so hitting this is a programming error, not a rejection.
var ErrInvalidPrice = errors.New("ledger: market price must be in (0, 1)")

// rejectReasons maps rejection errors to stable reason codes used in
// logs, metrics labels, and API responses.
var rejectReasons = map[error]string{
	ErrQuantityTooSmall:    "quantity_too_small",
	ErrInsufficientCapital: "insufficient_capital",
	ErrPositionTooLarge:    "position_too_large",
	ErrExposureCapExceeded: "max_exposure_exceeded",
	ErrMaxPositionsReached: "max_positions_reached",
	ErrDailyLossLimit:      "daily_loss_limit",
}

// IsRejection reports whether err is an expected risk-limit rejection.
func IsRejection(err error) bool {
	for rejection := range rejectReasons {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}

// RejectReason returns the reason code for a rejection error, or "" if
// the error is not a rejection.
func RejectReason(err error) string {
	for rejection, reason := range rejectReasons {
		if errors.Is(err, rejection) {
			return reason
		}
	}
	return ""
}
