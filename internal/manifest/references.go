package manifest

import (
	"path"
	"regexp"
	"strings"
)

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	mdLinkRe   = regexp.MustCompile(`\[([^\]]*)\]\(\s*<?([^)\s>]+?\.md)(?:#[^)\s]*)?>?(?:\s+"[^"]*")?\s*\)`)
	codePathRe = regexp.MustCompile("`([^`\\s]+\\.md)`")
	bulletRe   = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(.*)$`)
	tableSepRe = regexp.MustCompile(`^\|?[\s:|-]+\|?$`)
)

// ExtractReferences scans a skill body for the documents it declares under a
// heading containing "reference" (level 2 or deeper). The section runs until
// the next heading of the same or a higher level. Lines are matched one at a
// time; links, table rows and bullets naming a relative .md path are read.
func ExtractReferences(body string) []Reference {
	var (
		out     []Reference
		seen    = make(map[string]bool)
		level   int
		inFence bool
	)
	add := func(p, title string) {
		p = normalizeRefPath(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		title = cleanTitle(title)
		if title == "" {
			title = strings.TrimSuffix(path.Base(p), ".md")
		}
		out = append(out, Reference{Path: p, Title: title})
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if hm := headingRe.FindStringSubmatch(trimmed); hm != nil {
			n := len(hm[1])
			if level > 0 && n <= level {
				level = 0
			}
			if level == 0 && n >= 2 && strings.Contains(strings.ToLower(hm[2]), "reference") {
				level = n
			}
			continue
		}
		if level == 0 || trimmed == "" {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "|"):
			if tableSepRe.MatchString(trimmed) {
				continue
			}
			if p, title, ok := tableReference(trimmed); ok {
				add(p, title)
			}
		case bulletRe.MatchString(line):
			rest := bulletRe.FindStringSubmatch(line)[1]
			if lm := mdLinkRe.FindAllStringSubmatch(rest, -1); lm != nil {
				for _, m := range lm {
					add(m[2], m[1])
				}
				continue
			}
			if cm := codePathRe.FindStringSubmatchIndex(rest); cm != nil {
				p := rest[cm[2]:cm[3]]
				title := rest[:cm[0]] + " " + rest[cm[1]:]
				add(p, title)
			}
		default:
			for _, m := range mdLinkRe.FindAllStringSubmatch(trimmed, -1) {
				add(m[2], m[1])
			}
		}
	}
	return out
}

// tableReference reads a table row holding a backticked or linked .md path.
// The title is the first cell that is not the path cell.
func tableReference(row string) (p, title string, ok bool) {
	row = strings.TrimSuffix(strings.TrimPrefix(row, "|"), "|")
	cells := strings.Split(row, "|")
	pathCell := -1
	linkText := ""
	for i, c := range cells {
		if m := mdLinkRe.FindStringSubmatch(c); m != nil {
			p, linkText, pathCell = m[2], m[1], i
			break
		}
		if m := codePathRe.FindStringSubmatch(c); m != nil {
			p, pathCell = m[1], i
			break
		}
	}
	if pathCell < 0 {
		return "", "", false
	}
	for i, c := range cells {
		if i == pathCell {
			continue
		}
		if t := cleanTitle(c); t != "" {
			return p, t, true
		}
	}
	return p, linkText, true
}

func normalizeRefPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.Contains(p, "://") || strings.HasPrefix(p, "/") {
		return ""
	}
	p = strings.TrimPrefix(p, "./")
	return path.Clean(p)
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-:–— ")
	s = strings.TrimRight(s, "-:–— ")
	return strings.TrimSpace(s)
}
