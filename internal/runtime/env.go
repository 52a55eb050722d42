package runtime

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
)

// envVars is a K->V environment map, folding in the teacher's internal/env
// package directly as the runtime env builder's own merge table rather than
// a separately versioned package — buildEnv is its only caller.
type envVars map[string]string

// mergeEnv composes the final environment list applying order: base = OS
// environment, then global overrides, then perProc (slice of "K=V")
// overrides, expanding ${VAR} references against the composed map (simple
// expansion, no recursion).
func mergeEnv(global envVars, perProc []string) []string {
	m := make(envVars)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			if k := kv[:i]; k != "" {
				m[k] = kv[i+1:]
			}
		}
	}
	for k, v := range global {
		if k == "" {
			continue
		}
		m[k] = v
	}
	for _, kv := range perProc {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			if k := kv[:i]; k != "" {
				m[k] = kv[i+1:]
			}
		}
	}

	expanded := make(envVars, len(m))
	for k, v := range m {
		expanded[k] = expandVars(v, m)
	}
	out := make([]string, 0, len(expanded))
	for k, v := range expanded {
		if k == "" {
			continue
		}
		out = append(out, k+"="+v)
	}
	return out
}

// expandVars performs simple ${VAR} substitution against m, without
// recursive re-expansion of the substituted value.
func expandVars(s string, m envVars) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.Index(s[i+2:], "}")
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

// buildEnv composes a child's final environment: OS environment, then the
// app's own env map, then its allocated/fixed port under port_env_var, then
// one <DEP_ID>_PORT variable per dependency that was given a port — the
// convention confirmed by the original implementation's _prepare_environment.
func buildEnv(spec appmodel.ApplicationSpec, ownPort int, depPorts map[string]int) []string {
	perProc := make([]string, 0, len(spec.Env)+1+len(depPorts))
	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		perProc = append(perProc, k+"="+spec.Env[k])
	}
	if spec.PortEnvVar != "" && ownPort != 0 {
		perProc = append(perProc, fmt.Sprintf("%s=%d", spec.PortEnvVar, ownPort))
	}
	depIDs := make([]string, 0, len(depPorts))
	for id := range depPorts {
		depIDs = append(depIDs, id)
	}
	sort.Strings(depIDs)
	for _, id := range depIDs {
		perProc = append(perProc, fmt.Sprintf("%s_PORT=%d", upperSnake(id), depPorts[id]))
	}
	return mergeEnv(nil, perProc)
}

func upperSnake(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, r-('a'-'A'))
		case r == '-':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
