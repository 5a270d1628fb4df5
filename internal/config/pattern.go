package config

import "strings"

// MatchPattern reports whether name satisfies pattern, where pattern may
// use '*' as a prefix wildcard ("foo*"), a suffix wildcard ("*foo"), or
// a single interior wildcard ("foo*bar"); any pattern without '*' must
// match name exactly.
func MatchPattern(pattern, name string) bool {
	idx := strings.IndexByte(pattern, '*')
	if idx == -1 {
		return pattern == name
	}
	prefix := pattern[:idx]
	suffix := pattern[idx+1:]
	if strings.ContainsRune(suffix, '*') {
		// only a single interior wildcard is supported; treat any
		// additional '*' as a literal match failure rather than guessing.
		return false
	}
	return len(name) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(name, prefix) &&
		strings.HasSuffix(name, suffix)
}

// InBlackList reports whether table matches any pattern in blacklist.
func InBlackList(blacklist []string, table string) bool {
	for _, p := range blacklist {
		if MatchPattern(p, table) {
			return true
		}
	}
	return false
}

// Matches reports whether inst routes the given (schema, table) pair:
// both the schema and table patterns must match, and table must not be
// in the instance's blacklist.
func (inst Instance) Matches(schemaName, tableName string) bool {
	if !MatchPattern(inst.Schemas, schemaName) {
		return false
	}
	if !MatchPattern(inst.Tables, tableName) {
		return false
	}
	return !InBlackList(inst.BlackList, tableName)
}
