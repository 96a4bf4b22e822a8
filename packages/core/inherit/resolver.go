package inherit

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/restbench/packages/collection"
)

// Resolve merges item with its ancestor chain. ancestors is ordered outer to
// inner: the root group first and the immediate parent last. Neither item
// nor any ancestor is modified.
func Resolve(item *collection.Item, ancestors []collection.Node) *EffectiveRequest {
	if item == nil {
		return &EffectiveRequest{}
	}
	groups := groupsOf(ancestors)

	req := &EffectiveRequest{
		Name:   item.Name,
		Method: item.Method,
		URL:    item.URL,
		Body:   item.Body,
		Auth:   resolveAuth(item.Auth, groups),
		Params: append([]collection.Param(nil), item.Params...),
		Form:   append([]collection.Param(nil), item.Form...),
		Checks: cloneChecks(item.Checks),
	}

	for _, g := range groups {
		if strings.TrimSpace(g.PreScript) != "" {
			req.PreScripts = append(req.PreScripts, ScriptSegment{Source: groupLabel(g), Text: g.PreScript})
		}
	}
	if strings.TrimSpace(item.PreScript) != "" {
		req.PreScripts = append(req.PreScripts, ScriptSegment{Source: itemLabel(item), Text: item.PreScript})
	}

	if strings.TrimSpace(item.PostScript) != "" {
		req.PostScripts = append(req.PostScripts, ScriptSegment{Source: itemLabel(item), Text: item.PostScript})
	}
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if strings.TrimSpace(g.PostScript) != "" {
			req.PostScripts = append(req.PostScripts, ScriptSegment{Source: groupLabel(g), Text: g.PostScript})
		}
	}

	headers := newOrdered[collection.Header]()
	vars := newOrdered[collection.Variable]()
	for _, g := range groups {
		mergeHeaders(headers, g.Headers)
		mergeVariables(vars, g.Variables)
	}
	mergeHeaders(headers, item.Headers)
	req.Headers = headers.list()
	req.Variables = vars.list()

	return req
}

// ResolveInTree resolves the item stored at id using the tree's ancestor
// chain.
func ResolveInTree(t *collection.Tree, id collection.NodeID) (*EffectiveRequest, error) {
	item, ok := t.Item(id)
	if !ok {
		return nil, fmt.Errorf("node %d is not a request", id)
	}
	return Resolve(item, t.Ancestors(id)), nil
}

// groupsOf drops nil and non-group nodes.
func groupsOf(chain []collection.Node) []*collection.Group {
	groups := make([]*collection.Group, 0, len(chain))
	for _, n := range chain {
		if g, ok := n.(*collection.Group); ok && g != nil {
			groups = append(groups, g)
		}
	}
	return groups
}

func resolveAuth(own collection.AuthSpec, groups []*collection.Group) collection.AuthSpec {
	if own.IsExplicit() {
		return own
	}
	for i := len(groups) - 1; i >= 0; i-- {
		a := groups[i].Auth
		if !a.IsExplicit() {
			continue
		}
		if a.Type == collection.AuthNone {
			return collection.NoAuth()
		}
		return a
	}
	return own
}

func mergeHeaders(dst *ordered[collection.Header], src []collection.Header) {
	for _, h := range src {
		if strings.TrimSpace(h.Key) == "" {
			continue
		}
		dst.set(strings.ToLower(h.Key), h)
	}
}

func mergeVariables(dst *ordered[collection.Variable], src []collection.Variable) {
	for _, v := range src {
		if v.Key == "" {
			continue
		}
		dst.set(v.Key, v)
	}
}

func groupLabel(g *collection.Group) string {
	if g.Name == "" {
		return "group"
	}
	return "group " + g.Name
}

func itemLabel(it *collection.Item) string {
	if it.Name == "" {
		return "request"
	}
	return "request " + it.Name
}
