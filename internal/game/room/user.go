package room

// UserInfo is a connection's resolved identity, built once from the
// directory during the handshake and immutable afterwards.
//
// Hubs key their client registry by Username alone, so a user reconnecting
// under a fresh token occupies the same seat for presence purposes.
type UserInfo struct {
	Token    string
	ID       int64
	Username string
	IsHost   bool
}
