// Package automation defines the capability interface consumed from the
// remote messaging platform. The wire protocol behind it is out of scope;
// the core depends only on these contracts.
package automation

import "context"

// VerifyOutcome is the result of a code verification attempt.
type VerifyOutcome int

const (
	// VerifyOK means the account is signed in.
	VerifyOK VerifyOutcome = iota
	// VerifySecondFactorRequired means the platform wants an additional secret.
	VerifySecondFactorRequired
)

// Credentials identifies an application and account on the remote platform.
// Session is empty during onboarding and carries a previously exported
// session when reconnecting a stored account.
type Credentials struct {
	APIID   string
	APIHash string
	Phone   string
	Session string
}

// CreateResult is the outcome of one remote group creation. Exactly one of
// Created or Failed is set.
type CreateResult struct {
	Created *Created
	Failed  *Failed
}

// Created describes a successfully created remote group.
type Created struct {
	RemoteID    int64
	InviteLink  string
	MemberCount int
}

// Failed describes a creation attempt rejected by the platform.
type Failed struct {
	Reason string
}

// Client is one live connection to the remote platform. Implementations are
// not required to be safe for concurrent use; the owning flow serializes
// calls.
type Client interface {
	// Connect establishes the transport.
	Connect(ctx context.Context) error
	// RequestCode asks the platform to deliver a one-time login code.
	// Requires a prior Connect.
	RequestCode(ctx context.Context) error
	// VerifyCode submits the one-time code.
	VerifyCode(ctx context.Context, code string) (VerifyOutcome, error)
	// VerifySecondFactor submits the additional secret after
	// VerifySecondFactorRequired.
	VerifySecondFactor(ctx context.Context, secret string) error
	// ExportSession serializes the signed-in session. Valid only after a
	// successful verification.
	ExportSession() (string, error)
	// CreateGroup performs one remote group creation.
	CreateGroup(ctx context.Context, name string) CreateResult
	// Disconnect releases the transport. Idempotent and always safe to call.
	Disconnect()
}

// Dialer constructs clients. Implementations wrap the real platform library;
// tests substitute fakes.
type Dialer interface {
	Dial(creds Credentials) Client
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(creds Credentials) Client

// Dial implements Dialer.
func (f DialerFunc) Dial(creds Credentials) Client { return f(creds) }
