package models

import "strings"

// Class tags that address every class. They never name a real class.
const (
	ClassTagAll   = "ALL"
	ClassTagAllJA = "全体"
)

// IsAllClassTag reports whether tag is one of the every-class sentinels.
func IsAllClassTag(tag string) bool {
	return tag == ClassTagAll || tag == ClassTagAllJA
}

// ParseClassTags splits a comma separated tag list, trimming whitespace around
// each tag and dropping empty entries. Matching stays case-sensitive.
func ParseClassTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// JoinClassTags is the inverse of ParseClassTags.
func JoinClassTags(tags []string) string {
	return strings.Join(tags, ",")
}
