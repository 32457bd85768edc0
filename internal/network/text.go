package network

import "strings"

// ParseFields разбирает текстовое сообщение "ключ|значение" построчно.
// Строки без разделителя пропускаются, повторный ключ перекрывает прежний.
func ParseFields(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		key, value, ok := strings.Cut(line, "|")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// FormatFields обратная операция к ParseFields; порядок ключей задаётся keys
func FormatFields(fields map[string]string, keys ...string) string {
	var b strings.Builder
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		b.WriteString(k)
		b.WriteByte('|')
		b.WriteString(v)
		b.WriteByte('\n')
	}
	return b.String()
}
