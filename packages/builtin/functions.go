package builtin

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Func func(args []string) any

type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.funcs["uuid"] = func([]string) any { return uuid.New().String() }
	r.funcs["now"] = func([]string) any { return time.Now().UTC().Format(time.RFC3339) }
	r.funcs["timestamp"] = func([]string) any { return time.Now().Unix() }
	r.funcs["timestampMs"] = func([]string) any { return time.Now().UnixMilli() }
	r.funcs["date"] = funcDate
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["base64"] = unary(func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) })
	r.funcs["urlEncode"] = unary(url.QueryEscape)
	r.funcs["sha256"] = unary(func(s string) string {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	})
	return r
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Has reports whether expr is a call to a registered function.
func (r *Registry) Has(expr string) bool {
	m := funcCallPattern.FindStringSubmatch(expr)
	if m == nil {
		return false
	}
	_, ok := r.funcs[m[1]]
	return ok
}

func (r *Registry) Call(expr string) (any, bool) {
	m := funcCallPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, false
	}
	fn, ok := r.funcs[m[1]]
	if !ok {
		return nil, false
	}
	return fn(splitArgs(m[2])), true
}

// splitArgs splits a comma separated argument list, honouring single and
// double quotes.
func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var args []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && ch == ',':
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	return append(args, strings.TrimSpace(cur.String()))
}

func unary(fn func(string) string) Func {
	return func(args []string) any {
		if len(args) == 0 {
			return ""
		}
		return fn(args[0])
	}
}

func funcDate(args []string) any {
	layout := "2006-01-02"
	if len(args) > 0 && args[0] != "" {
		layout = args[0]
	}
	return time.Now().UTC().Format(layout)
}

func funcRandom(args []string) any {
	lo, hi := 0, 100
	if len(args) >= 2 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			lo = v
		}
		if v, err := strconv.Atoi(args[1]); err == nil {
			hi = v
		}
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return rand.Intn(hi-lo+1) + lo
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func funcRandomString(args []string) any {
	n := 16
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil && v >= 0 {
			n = v
		}
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[rand.Intn(len(alphanumeric))]
	}
	return string(b)
}
