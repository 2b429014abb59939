package session

// Environment tells the token store and the client controller which execution
// context they run in. It is injected at construction instead of being sniffed at
// runtime, so the same code is exercised in client and server configurations.
type Environment interface {
	IsClient() bool
}

type staticEnvironment bool

func (e staticEnvironment) IsClient() bool { return bool(e) }

var (
	// Client is the environment of an interactive session holder (a browser tab, a CLI).
	Client Environment = staticEnvironment(true)
	// Server is the environment of a request-scoped renderer. Token store writes are no-ops.
	Server Environment = staticEnvironment(false)
)

// IsClient reports whether env is a non-nil client environment.
func IsClient(env Environment) bool {
	return env != nil && env.IsClient()
}
