package collection

import "strings"

// AuthType selects how a node authenticates its requests.
type AuthType int

const (
	// AuthInherit defers to the nearest ancestor that defines auth.
	AuthInherit AuthType = iota
	// AuthNone disables auth and stops inheritance.
	AuthNone
	AuthBasic
	AuthBearer
)

func (t AuthType) String() string {
	switch t {
	case AuthInherit:
		return "inherit"
	case AuthNone:
		return "none"
	case AuthBasic:
		return "basic"
	case AuthBearer:
		return "bearer"
	default:
		return "unknown"
	}
}

// ParseAuthType maps a config spelling to an AuthType. Unknown or empty
// values map to AuthInherit.
func ParseAuthType(s string) AuthType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "noauth":
		return AuthNone
	case "basic":
		return AuthBasic
	case "bearer":
		return AuthBearer
	default:
		return AuthInherit
	}
}

// AuthSpec is the auth configuration of a group or item. The zero value
// inherits.
type AuthSpec struct {
	Type     AuthType
	Username string
	Password string
	Token    string
}

func Basic(user, pass string) AuthSpec {
	return AuthSpec{Type: AuthBasic, Username: user, Password: pass}
}

func Bearer(token string) AuthSpec {
	return AuthSpec{Type: AuthBearer, Token: token}
}

func NoAuth() AuthSpec {
	return AuthSpec{Type: AuthNone}
}

// IsExplicit reports whether this auth setting ends an inheritance scan.
func (a AuthSpec) IsExplicit() bool {
	return a.Type != AuthInherit
}

type Header struct {
	Key     string
	Value   string
	Enabled bool
}

type Variable struct {
	Key   string
	Value string
}

// Param is a query parameter or form field.
type Param struct {
	Key     string
	Value   string
	Enabled bool
}

// Check is a declarative assertion attached to an item. Subject selects the
// actual value, Assert names the terminal expectation and Args are its
// arguments.
type Check struct {
	Name    string
	Subject string
	Assert  string
	Args    []any
	Not     bool
}

// Capture stores a response value as a variable for the items that run
// after it. Subject uses the check subject syntax.
type Capture struct {
	Name    string
	Subject string
}

// Node is anything that can sit in a collection tree. Group and Item are the
// only kinds the resolver understands; other implementations are ignored.
type Node interface {
	NodeName() string
}

type Group struct {
	ID         string
	Name       string
	Auth       AuthSpec
	PreScript  string
	PostScript string
	Headers    []Header
	Variables  []Variable
}

func (g *Group) NodeName() string {
	if g == nil {
		return ""
	}
	return g.Name
}

type Item struct {
	ID         string
	Name       string
	Method     string
	URL        string
	Body       string
	Auth       AuthSpec
	PreScript  string
	PostScript string
	Headers    []Header
	Params     []Param
	Form       []Param
	Checks     []Check
	Captures   []Capture
	// Weight is the relative pick frequency in stress runs. Zero means 1
	// and a negative weight leaves the item out.
	Weight int
}

func (it *Item) NodeName() string {
	if it == nil {
		return ""
	}
	return it.Name
}
