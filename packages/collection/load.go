package collection

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileAuth struct {
	Type     string `yaml:"type"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
}

type fileHeader struct {
	Key     string `yaml:"key"`
	Value   string `yaml:"value"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

type fileVariable struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type fileCheck struct {
	Name    string `yaml:"name"`
	Subject string `yaml:"subject"`
	Assert  string `yaml:"assert"`
	Args    []any  `yaml:"args,omitempty"`
	Not     bool   `yaml:"not,omitempty"`
}

type fileCapture struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
}

type fileRequest struct {
	Method  string       `yaml:"method"`
	URL     string       `yaml:"url"`
	Body    string       `yaml:"body,omitempty"`
	Headers []fileHeader `yaml:"headers,omitempty"`
	Params  []fileHeader `yaml:"params,omitempty"`
	Form    []fileHeader `yaml:"form,omitempty"`
}

// fileNode is either a group (has items) or an item (has request).
type fileNode struct {
	ID         string         `yaml:"id,omitempty"`
	Name       string         `yaml:"name"`
	Auth       *fileAuth      `yaml:"auth,omitempty"`
	PreScript  string         `yaml:"preScript,omitempty"`
	PostScript string         `yaml:"postScript,omitempty"`
	Headers    []fileHeader   `yaml:"headers,omitempty"`
	Variables  []fileVariable `yaml:"variables,omitempty"`
	Request    *fileRequest   `yaml:"request,omitempty"`
	Checks     []fileCheck    `yaml:"checks,omitempty"`
	Captures   []fileCapture  `yaml:"captures,omitempty"`
	Weight     int            `yaml:"weight,omitempty"`
	Items      []fileNode     `yaml:"items,omitempty"`
}

// LoadFile parses a YAML collection file into a Tree. The top level of the
// file is itself a group, so collection-wide auth, headers and variables are
// inherited by every item.
func LoadFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading collection: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML collection data.
func Parse(data []byte) (*Tree, error) {
	var root fileNode
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing collection: %w", err)
	}
	if root.Request != nil {
		return nil, fmt.Errorf("parsing collection: top level must be a group, not a request")
	}

	t := NewTree(root.Name)
	rootID, err := t.AddGroup(Root, root.toGroup())
	if err != nil {
		return nil, err
	}
	if err := t.addChildren(rootID, root.Items); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) addChildren(parent NodeID, nodes []fileNode) error {
	for i := range nodes {
		n := &nodes[i]
		if n.Request != nil {
			if len(n.Items) > 0 {
				return fmt.Errorf("node %q: a request cannot contain items", n.Name)
			}
			for _, c := range n.Captures {
				if c.Name == "" || c.From == "" {
					return fmt.Errorf("node %q: captures need a name and a from subject", n.Name)
				}
			}
			if _, err := t.AddItem(parent, n.toItem()); err != nil {
				return err
			}
			continue
		}
		id, err := t.AddGroup(parent, n.toGroup())
		if err != nil {
			return err
		}
		if err := t.addChildren(id, n.Items); err != nil {
			return err
		}
	}
	return nil
}

func (n *fileNode) toGroup() *Group {
	return &Group{
		ID:         n.ID,
		Name:       n.Name,
		Auth:       n.Auth.toSpec(),
		PreScript:  n.PreScript,
		PostScript: n.PostScript,
		Headers:    toHeaders(n.Headers),
		Variables:  toVariables(n.Variables),
	}
}

func (n *fileNode) toItem() *Item {
	it := &Item{
		ID:         n.ID,
		Name:       n.Name,
		Method:     strings.ToUpper(strings.TrimSpace(n.Request.Method)),
		URL:        n.Request.URL,
		Body:       n.Request.Body,
		Auth:       n.Auth.toSpec(),
		PreScript:  n.PreScript,
		PostScript: n.PostScript,
		Headers:    toHeaders(append(append([]fileHeader(nil), n.Headers...), n.Request.Headers...)),
		Params:     toParams(n.Request.Params),
		Form:       toParams(n.Request.Form),
		Weight:     n.Weight,
	}
	if it.Method == "" {
		it.Method = "GET"
	}
	for _, c := range n.Checks {
		it.Checks = append(it.Checks, Check{
			Name:    c.Name,
			Subject: c.Subject,
			Assert:  c.Assert,
			Args:    c.Args,
			Not:     c.Not,
		})
	}
	for _, c := range n.Captures {
		it.Captures = append(it.Captures, Capture{Name: c.Name, Subject: c.From})
	}
	return it
}

func (a *fileAuth) toSpec() AuthSpec {
	if a == nil {
		return AuthSpec{}
	}
	return AuthSpec{
		Type:     ParseAuthType(a.Type),
		Username: a.Username,
		Password: a.Password,
		Token:    a.Token,
	}
}

func toHeaders(in []fileHeader) []Header {
	if len(in) == 0 {
		return nil
	}
	out := make([]Header, 0, len(in))
	for _, h := range in {
		out = append(out, Header{Key: h.Key, Value: h.Value, Enabled: h.Enabled == nil || *h.Enabled})
	}
	return out
}

func toParams(in []fileHeader) []Param {
	if len(in) == 0 {
		return nil
	}
	out := make([]Param, 0, len(in))
	for _, p := range in {
		out = append(out, Param{Key: p.Key, Value: p.Value, Enabled: p.Enabled == nil || *p.Enabled})
	}
	return out
}

func toVariables(in []fileVariable) []Variable {
	if len(in) == 0 {
		return nil
	}
	out := make([]Variable, 0, len(in))
	for _, v := range in {
		out = append(out, Variable{Key: v.Key, Value: v.Value})
	}
	return out
}
