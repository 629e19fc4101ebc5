package users

import (
	"strings"
	"unicode"
)

var commonPasswords = map[string]bool{
	"password": true, "password1": true, "12345678": true, "123456789": true,
	"qwertyui": true, "qwerty123": true, "iloveyou": true, "11111111": true,
	"abc12345": true, "admin123": true, "letmein1": true, "welcome1": true,
	"sunshine": true, "football": true, "baseball": true, "00000000": true,
}

// passwordProblems lists the rules password breaks.
func passwordProblems(password, username string) []string {
	var out []string
	if len([]rune(password)) < minPasswordLength {
		out = append(out, msgPasswordTooShort)
	}
	lower := strings.ToLower(password)
	if commonPasswords[lower] {
		out = append(out, msgPasswordTooCommon)
	}
	if isNumeric(password) {
		out = append(out, msgPasswordNumeric)
	}
	if u := strings.ToLower(username); len(u) >= 3 && (strings.Contains(lower, u) || strings.Contains(u, lower)) {
		out = append(out, msgPasswordLikeUser)
	}
	return out
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
