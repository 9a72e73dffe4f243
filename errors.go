package comdirect

import "fmt"

// Kind groups API failures into the categories callers branch on.
type Kind int

const (
	KindUnknown Kind = iota

	// KindAuthentication covers rejected credentials and rejected tokens.
	KindAuthentication

	// KindTANTimeout is a TAN challenge that was never approved.
	KindTANTimeout

	// KindValidation is a request the API understood but refused.
	KindValidation

	// KindServer is a server-side failure (5xx).
	KindServer

	// KindAccountNotFound is an unknown or foreign account identifier.
	KindAccountNotFound

	// KindTokenExpired is a locally detected expired token set. No request
	// was sent.
	KindTokenExpired
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindTANTimeout:
		return "tan timeout"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindAccountNotFound:
		return "account not found"
	case KindTokenExpired:
		return "token expired"
	default:
		return "unknown"
	}
}

// Sentinel targets for errors.Is. Each matches every *Error of its kind.
var (
	ErrAuthentication  = &Error{Kind: KindAuthentication}
	ErrTANTimeout      = &Error{Kind: KindTANTimeout}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrServer          = &Error{Kind: KindServer}
	ErrAccountNotFound = &Error{Kind: KindAccountNotFound}
	ErrTokenExpired    = &Error{Kind: KindTokenExpired}
)

// Error is a classified API failure.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v: %v (status %d)", e.Op, e.Kind, e.Status)
	}

	if e.Op == "" {
		return e.Message
	}

	return fmt.Sprintf("%v: %v", e.Op, e.Message)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrServer) works
// regardless of which call produced the error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Kind == t.Kind
}

// opClass is the classification context of a call. The same status code maps
// to different kinds depending on what the call was doing.
type opClass int

const (
	// opAuth is a step of the login protocol or a token grant.
	opAuth opClass = iota

	// opBusiness is a business call not scoped to a single account.
	opBusiness

	// opAccountScoped is a business call addressing one account, where 404
	// means the account rather than the route.
	opAccountScoped
)

// classifyStatus maps a non-2xx status to a classified error.
func classifyStatus(op string, class opClass, status int) *Error {
	e := &Error{Kind: KindUnknown, Op: op, Status: status}

	switch {
	case status >= 500:
		e.Kind = KindServer
		e.Message = "server error"

	case status == 404 && class == opAccountScoped:
		e.Kind = KindAccountNotFound
		e.Message = "account not found"

	case status == 422 && class != opAuth:
		e.Kind = KindValidation
		e.Message = "request rejected"

	case status == 401 || status == 403:
		e.Kind = KindAuthentication
		e.Message = "not authorized"

	default:
		e.Message = "unexpected status"
	}

	return e
}
