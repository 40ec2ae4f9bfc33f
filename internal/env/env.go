// Package env composes the extra environment handed to the managed process.
package env

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Var map[string]string

type Env struct {
	Var  Var // overrides collected from env files and Set, K->V
	base Var // cached OS environment used for ${VAR} lookups
}

func New() *Env {
	return &Env{Var: make(Var)}
}

// FromOS caches the current process environment as the expansion base.
func (e *Env) FromOS() {
	e.base = parse(os.Environ())
}

// WithBase replaces the expansion base.
func (e *Env) WithBase(kvs []string) *Env {
	e.base = parse(kvs)
	return e
}

// Set sets an override K=V. Empty keys are ignored.
func (e *Env) Set(k, v string) {
	if k == "" {
		return
	}
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// LoadFile merges a .env file into the overrides. Blank lines and lines
// starting with # are skipped, an "export " prefix is dropped and one pair of
// matching quotes around the value is stripped.
func (e *Env) LoadFile(path string) error {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		i := strings.IndexByte(line, '=')
		if i < 0 {
			continue
		}
		v := strings.TrimSpace(line[i+1:])
		if n := len(v); n >= 2 && (v[0] == '"' || v[0] == '\'') && v[n-1] == v[0] {
			v = v[1 : n-1]
		}
		e.Set(strings.TrimSpace(line[:i]), v)
	}
	return nil
}

// Overrides applies perProc ("K=V") on top of the collected overrides and
// returns only the overridden keys, sorted, in "K=V" form. ${VAR} references
// are resolved once against base, then overrides; unknown names are left
// untouched and bare $VAR is never expanded.
func (e *Env) Overrides(perProc []string) []string {
	if e.base == nil {
		e.FromOS()
	}
	m := make(Var, len(e.Var)+len(perProc))
	for k, v := range e.Var {
		m[k] = v
	}
	for k, v := range parse(perProc) {
		m[k] = v
	}

	lookup := make(Var, len(e.base)+len(m))
	for k, v := range e.base {
		lookup[k] = v
	}
	for k, v := range m {
		lookup[k] = v
	}

	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, lookup))
	}
	sort.Strings(out)
	return out
}

func parse(kvs []string) Var {
	m := make(Var, len(kvs))
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			break
		}
		name := s[i+2 : i+2+j]
		b.WriteString(s[:i])
		if v, ok := m[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+3+j])
		}
		s = s[i+3+j:]
	}
	b.WriteString(s)
	return b.String()
}
