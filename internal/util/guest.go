package util

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// guestPasswordHash is md5("<NOPASS>"), the fixed token the legacy
// client sends in place of a password for guest logins.
var guestPasswordHash = func() string {
	sum := md5.Sum([]byte("<NOPASS>"))
	return hex.EncodeToString(sum[:])
}()

// IsGuestLogin reports whether a login is a guest login: the username
// carries the " GUEST" suffix the client appends, and the password is
// the fixed guest token.
func IsGuestLogin(username, password string) bool {
	return strings.HasSuffix(username, " GUEST") && password == guestPasswordHash
}
