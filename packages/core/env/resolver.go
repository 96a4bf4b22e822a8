package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/restbench/packages/builtin"
	"github.com/abdul-hamid-achik/restbench/packages/collection"
	"github.com/abdul-hamid-achik/restbench/packages/core/inherit"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver substitutes {{...}} expressions. It is safe for concurrent use.
type Resolver struct {
	mu          sync.RWMutex
	environment map[string]any
	variables   map[string]any
	funcs       *builtin.Registry
	warnFunc    WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		environment: make(map[string]any),
		variables:   make(map[string]any),
		funcs:       builtin.NewRegistry(),
	}
}

// SetWarnFunc sets a function to be called when warnings occur (e.g., unresolved variables)
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

// SetEnvironment adds environment-level values. They shadow request
// variables with the same name.
func (r *Resolver) SetEnvironment(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.environment[k] = v
	}
}

func (r *Resolver) SetEnvironmentVariables(vars []collection.Variable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range vars {
		r.environment[v.Key] = v.Value
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.environment[name]; ok {
		return v, true
	}
	v, ok := r.variables[name]
	return v, ok
}

func (r *Resolver) Resolve(input string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		if strings.HasPrefix(expr, "$") {
			name := expr[1:]
			if val, ok := os.LookupEnv(name); ok {
				return val
			}
			r.warn("unresolved environment variable: $%s", name)
			return match
		}

		if strings.Contains(expr, "(") {
			if result, ok := r.funcs.Call(expr); ok {
				return fmt.Sprintf("%v", result)
			}
			r.warn("unresolved function call: %s", expr)
			return match
		}

		if val, ok := r.GetVariable(expr); ok {
			return fmt.Sprintf("%v", val)
		}

		r.warn("unresolved variable: %s", expr)
		return match
	})
}

// HasUnresolved reports whether input still contains a {{...}} expression
// that Resolve would leave untouched.
func (r *Resolver) HasUnresolved(input string) bool {
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		switch {
		case strings.HasPrefix(expr, "$"):
			if _, ok := os.LookupEnv(expr[1:]); !ok {
				return true
			}
		case strings.Contains(expr, "("):
			if !r.funcs.Has(expr) {
				return true
			}
		default:
			if _, ok := r.GetVariable(expr); !ok {
				return true
			}
		}
	}
	return false
}

// Clone returns an independent resolver with the same values.
func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	for k, v := range r.environment {
		clone.environment[k] = v
	}
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	clone.warnFunc = r.warnFunc
	return clone
}

// Apply returns a copy of req with every URL, header, param, form, body and
// auth value interpolated. The request's own merged variables are visible
// to the copy but never leak into r.
func (r *Resolver) Apply(req *inherit.EffectiveRequest) *inherit.EffectiveRequest {
	scoped := r.Clone()
	scoped.SetVariables(req.VariableMap())

	out := req.Clone()
	out.URL = scoped.Resolve(out.URL)
	out.Body = scoped.Resolve(out.Body)
	for i := range out.Headers {
		out.Headers[i].Value = scoped.Resolve(out.Headers[i].Value)
	}
	for i := range out.Params {
		out.Params[i].Value = scoped.Resolve(out.Params[i].Value)
	}
	for i := range out.Form {
		out.Form[i].Value = scoped.Resolve(out.Form[i].Value)
	}
	out.Auth.Username = scoped.Resolve(out.Auth.Username)
	out.Auth.Password = scoped.Resolve(out.Auth.Password)
	out.Auth.Token = scoped.Resolve(out.Auth.Token)
	return out
}
