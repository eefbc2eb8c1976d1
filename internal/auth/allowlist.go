package auth

import "strings"

// adminEmails is the comma-separated admin allow-list. It is fixed at build
// time:
//
//	go build -ldflags "-X github.com/vokorun/runclub/internal/auth.adminEmails=a@example.com,b@example.com"
var adminEmails string

// AllowList is the set of email addresses that are elevated to admin on sign-in.
type AllowList map[string]struct{}

// BuildAllowList returns the allow-list compiled into the binary.
func BuildAllowList() AllowList {
	return ParseAllowList(adminEmails)
}

// ParseAllowList splits a comma-separated list of addresses.
func ParseAllowList(s string) AllowList {
	list := make(AllowList)
	for _, email := range strings.Split(s, ",") {
		if email = normalizeEmail(email); email != "" {
			list[email] = struct{}{}
		}
	}
	return list
}

// Contains reports whether email is on the list. Matching ignores case and
// surrounding space; an empty email never matches.
func (l AllowList) Contains(email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}
	_, ok := l[email]
	return ok
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
