// Package credstore holds the session's access/refresh credential pair. It is
// the only mutable state shared between concurrent requests, so all writes go
// through a single atomic replace or clear and reads never observe a torn pair.
package credstore

// Credential is the access/refresh token pair used to authenticate outbound
// requests. Consumers always receive a snapshot copy, never a shared reference.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Store is the process-wide credential holder. Lifecycle is one app session:
// populated on login, cleared on logout or irrecoverable refresh failure.
type Store interface {
	// Current returns the latest snapshot without blocking on writers.
	Current() (Credential, bool)
	// Replace atomically swaps in a new credential pair.
	Replace(cred Credential) error
	// Clear removes the stored credential.
	Clear() error
}
