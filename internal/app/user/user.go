/*
Package user defines the identity records shared by the directory, the credential
service and the clients.
*/
package user

// User is the public identity of a registered account.
type User struct {
	// ID is the stable identifier every other component keys on.
	ID string `json:"id"`

	// Username is the display name.
	Username string `json:"username"`

	// Email is the login email.
	Email string `json:"email"`
}

// Account is a User together with its stored password hash. It never leaves the server.
type Account struct {
	User
	PasswordHash string
}

// Peer is a directory entry as seen by another user.
type Peer struct {
	User

	// Online reports whether the peer had a live connection when the directory was read.
	Online bool `json:"online"`
}
