package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Capability is one permission bit. The set is closed: JSON overrides that
// name anything else are rejected.
type Capability uint32

const (
	AddOrder Capability = 1 << iota
	EditOrder
	RemoveOrder
	ShowMandobe
	AddMandobe
	EditMandobe
	RemoveMandobe
	ShowCode
	AddCode
	EditCode
	RemoveCode
	ShowStore
	AddStore
	EditStore

	allCapabilities Capability = 1<<iota - 1
)

// capabilityNames are the wire names used in stored overrides and tokens.
var capabilityNames = map[Capability]string{
	AddOrder:      "addOrder",
	EditOrder:     "editOrder",
	RemoveOrder:   "removeOrder",
	ShowMandobe:   "showMandobe",
	AddMandobe:    "addMandobe",
	EditMandobe:   "editMandobe",
	RemoveMandobe: "removeMandobe",
	ShowCode:      "showCode",
	AddCode:       "addCode",
	EditCode:      "editCode",
	RemoveCode:    "removeCode",
	ShowStore:     "showStore",
	AddStore:      "addStore",
	EditStore:     "editStore",
}

var capabilityByName = func() map[string]Capability {
	m := make(map[string]Capability, len(capabilityNames))
	for c, n := range capabilityNames {
		m[n] = c
	}
	return m
}()

func (c Capability) String() string {
	if n, ok := capabilityNames[c]; ok {
		return n
	}
	return strings.Join(c.Names(), "|")
}

func (c Capability) Has(want Capability) bool { return c&want == want }

// Names lists the set bits by wire name, sorted.
func (c Capability) Names() []string {
	var out []string
	for bit, name := range capabilityNames {
		if c&bit != 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Map renders the set as the name -> bool map clients expect.
func (c Capability) Map() map[string]bool {
	m := make(map[string]bool, len(capabilityNames))
	for bit, name := range capabilityNames {
		m[name] = c&bit != 0
	}
	return m
}

func ParseCapability(name string) (Capability, error) {
	if c, ok := capabilityByName[name]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("unknown permission %q", name)
}

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSales    Role = "sales"
	RoleMarketer Role = "marketer"
	RoleMandobe  Role = "mandobe"
)

func (r Role) Valid() bool {
	_, ok := roleDefaults[r]
	return ok
}

var roleDefaults = map[Role]Capability{
	RoleAdmin:    allCapabilities,
	RoleSales:    AddOrder | EditOrder | RemoveOrder | ShowMandobe | ShowCode | ShowStore,
	RoleMarketer: AddOrder,
	RoleMandobe:  0,
}

// Defaults returns the role's capabilities. Unknown roles get the marketer set.
func Defaults(r Role) Capability {
	if c, ok := roleDefaults[r]; ok {
		return c
	}
	return roleDefaults[RoleMarketer]
}

// Merge applies per-user overrides on top of the role defaults. Admins
// always hold every capability.
func Merge(r Role, overrides map[string]bool) (Capability, error) {
	caps := Defaults(r)
	for name, on := range overrides {
		c, err := ParseCapability(name)
		if err != nil {
			return 0, err
		}
		if on {
			caps |= c
		} else {
			caps &^= c
		}
	}
	if r == RoleAdmin {
		return allCapabilities, nil
	}
	return caps, nil
}

// ParseOverrides converts a stored JSON object into overrides, rejecting
// unknown names and non-boolean values.
func ParseOverrides(raw map[string]any) (map[string]bool, error) {
	out := make(map[string]bool, len(raw))
	for name, v := range raw {
		if _, err := ParseCapability(name); err != nil {
			return nil, err
		}
		on, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("permission %q must be true or false", name)
		}
		out[name] = on
	}
	return out, nil
}
