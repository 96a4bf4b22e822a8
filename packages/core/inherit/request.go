package inherit

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/restbench/packages/collection"
)

// ScriptSegment is one script contributed by a group or the item itself.
// Source names the contributor so script errors can be attributed.
type ScriptSegment struct {
	Source string
	Text   string
}

// EffectiveRequest is the fully merged request for a single execution.
type EffectiveRequest struct {
	Name        string
	Method      string
	URL         string
	Body        string
	Auth        collection.AuthSpec
	Headers     []collection.Header
	Variables   []collection.Variable
	Params      []collection.Param
	Form        []collection.Param
	Checks      []collection.Check
	PreScripts  []ScriptSegment
	PostScripts []ScriptSegment
}

// PreScript returns the pre-request scripts joined in execution order.
func (r *EffectiveRequest) PreScript() string {
	return joinScripts(r.PreScripts)
}

// PostScript returns the post-response scripts joined in execution order.
func (r *EffectiveRequest) PostScript() string {
	return joinScripts(r.PostScripts)
}

func joinScripts(segs []ScriptSegment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "// --- %s ---\n", s.Source)
		b.WriteString(s.Text)
	}
	return b.String()
}

// Header returns the value of the first enabled header named key
// (case-insensitive).
func (r *EffectiveRequest) Header(key string) (string, bool) {
	for _, h := range r.Headers {
		if h.Enabled && strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}

func (r *EffectiveRequest) Variable(key string) (string, bool) {
	for _, v := range r.Variables {
		if v.Key == key {
			return v.Value, true
		}
	}
	return "", false
}

// VariableMap returns the merged variables as a map.
func (r *EffectiveRequest) VariableMap() map[string]any {
	m := make(map[string]any, len(r.Variables))
	for _, v := range r.Variables {
		m[v.Key] = v.Value
	}
	return m
}

// Clone returns a deep copy.
func (r *EffectiveRequest) Clone() *EffectiveRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.Headers = append([]collection.Header(nil), r.Headers...)
	c.Variables = append([]collection.Variable(nil), r.Variables...)
	c.Params = append([]collection.Param(nil), r.Params...)
	c.Form = append([]collection.Param(nil), r.Form...)
	c.Checks = cloneChecks(r.Checks)
	c.PreScripts = append([]ScriptSegment(nil), r.PreScripts...)
	c.PostScripts = append([]ScriptSegment(nil), r.PostScripts...)
	return &c
}

func cloneChecks(in []collection.Check) []collection.Check {
	if in == nil {
		return nil
	}
	out := make([]collection.Check, len(in))
	for i, c := range in {
		c.Args = append([]any(nil), c.Args...)
		out[i] = c
	}
	return out
}
