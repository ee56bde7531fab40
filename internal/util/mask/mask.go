// Package mask acorta valores sensibles antes de loguearlos o imprimirlos.
package mask

import "strings"

// Email deja la primera letra del usuario y del dominio: "alice@example.com" => "a…@e….com".
func Email(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return Secret(s)
	}
	user, domain := s[:at], s[at+1:]

	label, rest, _ := strings.Cut(domain, ".")
	out := short(user) + "@" + short(label)
	if rest != "" {
		out += "." + rest
	}
	return out
}

// Secret reemplaza cualquier valor no vacío por "***".
func Secret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func short(s string) string {
	if len(s) <= 1 {
		return s
	}
	return s[:1] + "…"
}
