package session

import "errors"

// Sentinel errors for the three platform failure classes. Platforms wrap them
// with fmt.Errorf("...: %w", ...) so callers can classify with errors.Is.
var (
	ErrQueryFailed           = errors.New("session: platform query failed")
	ErrConfigurationRejected = errors.New("session: configuration rejected by platform")
	ErrSubscription          = errors.New("session: notification subscription failed")
	ErrUnsupported           = errors.New("session: operation not supported on this platform")
)

// ErrorKind is the wire classification of a failure carried inside a
// [Snapshot].
type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindQueryFailure          ErrorKind = "queryFailure"
	KindConfigurationRejected ErrorKind = "configurationRejected"
	KindSubscriptionFailure   ErrorKind = "subscriptionFailure"
	KindUnsupported           ErrorKind = "unsupported"
	KindInternal              ErrorKind = "internal"
)

// KindOf maps err onto its [ErrorKind]. Unclassified errors are
// [KindInternal]; nil is [KindNone].
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrQueryFailed):
		return KindQueryFailure
	case errors.Is(err, ErrConfigurationRejected):
		return KindConfigurationRejected
	case errors.Is(err, ErrSubscription):
		return KindSubscriptionFailure
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	default:
		return KindInternal
	}
}
