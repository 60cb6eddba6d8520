// Package avatar provides profile-image handling: a Gravatar-based
// default at signup and object-storage uploads for custom avatars.
package avatar

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// GravatarURL returns the Gravatar image URL for an email address.
// Used as the default avatar when an account is created.
func GravatarURL(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	hash := md5.Sum([]byte(normalized))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon", hex.EncodeToString(hash[:]))
}
