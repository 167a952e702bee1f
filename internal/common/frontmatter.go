package common

import "strings"

// SplitFrontmatter separates a leading YAML frontmatter block from a Markdown
// document. The block must open with a --- line at the very start and close
// with a --- line; both fences are dropped from the returned block. Documents
// without a complete block come back unchanged with an empty block.
func SplitFrontmatter(markdown string) (block string, body string) {
	if !strings.HasPrefix(markdown, "---\n") {
		return "", markdown
	}

	rest := markdown[4:]
	if idx := strings.Index(rest, "\n---\n"); idx >= 0 {
		return rest[:idx], rest[idx+5:]
	}
	if strings.HasSuffix(rest, "\n---") {
		return strings.TrimSuffix(rest, "\n---"), ""
	}
	return "", markdown
}
