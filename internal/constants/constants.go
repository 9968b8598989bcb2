package constants

const (
	// IDRandomBytes is the number of random bytes in generated entity IDs.
	IDRandomBytes = 16

	// SessionTokenBytes is the number of random bytes in a session token.
	SessionTokenBytes = 32
)
