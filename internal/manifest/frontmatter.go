package manifest

import (
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// knownKeys are the keys of AgentFrontMatter and SkillFrontMatter.
var knownKeys = map[string]bool{
	"name":        true,
	"description": true,
	"tools":       true,
	"color":       true,
	"model":       true,
}

// splitFrontmatter separates the leading --- block from the body.
//
// found is false when the content does not open with a delimiter line; the
// whole content is then the body. An opening delimiter without a closing one
// is reported as ErrUnterminatedFrontMatter.
func splitFrontmatter(content string) (lines []string, body string, found bool, err error) {
	s := strings.TrimPrefix(content, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")

	all := strings.Split(s, "\n")
	if len(all) == 0 || strings.TrimRight(all[0], " \t") != frontMatterDelimiter {
		return nil, strings.TrimSpace(s), false, nil
	}
	for i := 1; i < len(all); i++ {
		if strings.TrimRight(all[i], " \t") == frontMatterDelimiter {
			body = strings.Join(all[i+1:], "\n")
			return all[1:i], strings.TrimSpace(body), true, nil
		}
	}
	return nil, "", true, ErrUnterminatedFrontMatter
}

// rawField is one key of the front matter before typing.
type rawField struct {
	key   string
	value string
	block byte // '|' or '>' for block scalars
	cont  []string
	items []string
}

// frontMatter is the ordered key/value view of a front-matter block.
// It is deliberately not YAML: keys are flat, values are strings or lists.
type frontMatter struct {
	fields []*rawField
	byKey  map[string]*rawField
	dups   []string
}

func parseFrontMatter(lines []string) *frontMatter {
	fm := &frontMatter{byKey: make(map[string]*rawField)}
	var cur *rawField
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if cur != nil && cur.block != 0 {
				cur.cont = append(cur.cont, "")
			}
			continue
		}
		key, value, ok := cutKeyLine(line)
		if ok && cur != nil && cur.key == "description" && !knownKeys[key] {
			// Narrative lines such as "user: ..." inside a multi-line
			// description are text, not keys.
			ok = false
		}
		if ok {
			f := &rawField{key: key, value: value}
			switch value {
			case "|", "|-", "|+", ">", ">-", ">+":
				f.block = value[0]
				f.value = ""
			}
			if _, seen := fm.byKey[key]; seen {
				fm.dups = append(fm.dups, key)
				// Keep collecting continuation lines into a detached field
				// so they do not leak into the previous key.
				cur = f
				continue
			}
			fm.byKey[key] = f
			fm.fields = append(fm.fields, f)
			cur = f
			continue
		}
		if cur == nil {
			continue
		}
		t := strings.TrimSpace(line)
		if cur.block == 0 && cur.value == "" && len(cur.cont) == 0 && (t == "-" || strings.HasPrefix(t, "- ")) {
			cur.items = append(cur.items, strings.TrimSpace(strings.TrimPrefix(t, "-")))
			continue
		}
		if cur.block != 0 {
			cur.cont = append(cur.cont, line)
			continue
		}
		cur.cont = append(cur.cont, t)
	}
	return fm
}

// cutKeyLine reports whether line is an unindented "key: value" line.
func cutKeyLine(line string) (key, value string, ok bool) {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return "", "", false
	}
	k, v, found := strings.Cut(line, ":")
	if !found || k == "" {
		return "", "", false
	}
	for _, r := range k {
		isWord := r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isWord {
			return "", "", false
		}
	}
	if v != "" && v[0] != ' ' && v[0] != '\t' {
		// "http://..." style continuation, not a key.
		return "", "", false
	}
	return strings.ToLower(k), strings.TrimSpace(v), true
}

// has reports whether key was declared, even with an empty value.
func (fm *frontMatter) has(key string) bool {
	_, ok := fm.byKey[key]
	return ok
}

// scalar returns the string value of key.
func (fm *frontMatter) scalar(key string) string {
	f, ok := fm.byKey[key]
	if !ok {
		return ""
	}
	switch f.block {
	case '|':
		return strings.TrimRight(strings.Join(dedent(f.cont), "\n"), "\n")
	case '>':
		return foldLines(dedent(f.cont))
	}
	parts := make([]string, 0, 1+len(f.cont))
	if f.value != "" {
		parts = append(parts, f.value)
	}
	parts = append(parts, f.cont...)
	if len(parts) == 0 && len(f.items) > 0 {
		return strings.Join(f.items, ", ")
	}
	v := strings.Join(parts, "\n")
	return unquote(v)
}

// list returns the list value of key from "- item" lines, a [flow, list]
// or a comma separated scalar.
func (fm *frontMatter) list(key string) []string {
	f, ok := fm.byKey[key]
	if !ok {
		return nil
	}
	if len(f.items) > 0 {
		return cleanList(f.items)
	}
	v := strings.TrimSpace(fm.scalar(key))
	if v == "" {
		return nil
	}
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		var out []string
		if err := yaml.Unmarshal([]byte(v), &out); err == nil {
			return cleanList(out)
		}
		v = strings.TrimSuffix(strings.TrimPrefix(v, "["), "]")
	}
	return cleanList(strings.Split(v, ","))
}

// unknown returns declared keys not in allowed, in declaration order.
func (fm *frontMatter) unknown(allowed ...string) []string {
	var out []string
	for _, f := range fm.fields {
		known := false
		for _, a := range allowed {
			if f.key == a {
				known = true
				break
			}
		}
		if !known {
			out = append(out, f.key)
		}
	}
	return out
}

// unquote decodes a value wrapped in matching quotes as a YAML quoted
// scalar, so escapes like \n and \" inside agent descriptions come out as
// text. Anything that fails to decode is returned unchanged.
func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	first, last := v[0], v[len(v)-1]
	if (first != '"' || last != '"') && (first != '\'' || last != '\'') {
		return v
	}
	var out string
	if err := yaml.Unmarshal([]byte(v), &out); err != nil {
		return v
	}
	return out
}

func dedent(lines []string) []string {
	indent := -1
	for _, ln := range lines {
		if strings.TrimSpace(ln) == "" {
			continue
		}
		n := len(ln) - len(strings.TrimLeft(ln, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	out := make([]string, len(lines))
	for i, ln := range lines {
		switch {
		case indent <= 0:
			out[i] = ln
		case len(ln) >= indent:
			out[i] = ln[indent:]
		default:
			out[i] = strings.TrimLeft(ln, " \t")
		}
	}
	return out
}

func foldLines(lines []string) string {
	var b strings.Builder
	for i, ln := range lines {
		if ln == "" {
			b.WriteString("\n")
			continue
		}
		if i > 0 && lines[i-1] != "" {
			b.WriteString(" ")
		}
		b.WriteString(ln)
	}
	return strings.TrimSpace(b.String())
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.Trim(strings.TrimSpace(it), `"'`)
		if it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
