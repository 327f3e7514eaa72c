package status

// Code is the production status of a single order detail. Codes are stable
// wire values shared with the backend database and every API consumer; never
// renumber them.
type Code int

const (
	Draft       Code = 0
	Created     Code = 1
	NeedDesign  Code = 2
	Designing   Code = 3
	CheckDesign Code = 4
	DesignRedo  Code = 5
	ReadyProd   Code = 6
	InProd      Code = 7
	Finished    Code = 8
	QCDone      Code = 9
	QCFail      Code = 10
	ProdRework  Code = 11
	Shipping    Code = 12
	Shipped     Code = 13
	HoldRefund  Code = 14
	HoldReprint Code = 15
	Refund      Code = 16
)

// Unknown is the sentinel bucket for codes outside 0-16. Consumers must
// treat unrecognized wire values as Unknown rather than failing.
const Unknown Code = -1

// Role identifies an actor in the design/production workflow.
type Role string

const (
	RoleSeller   Role = "SELLER"
	RoleDesigner Role = "DESIGNER"
	RoleManager  Role = "MANAGER"
)

// Color tokens for status badges. The UI maps these to its own theme;
// the catalog only guarantees a stable token per status.
const (
	ColorGray   = "gray"
	ColorBlue   = "blue"
	ColorYellow = "yellow"
	ColorOrange = "orange"
	ColorGreen  = "green"
	ColorRed    = "red"
	ColorPurple = "purple"
)

// Description is the catalog entry for one status code.
type Description struct {
	Name  string
	Color string
	Roles []Role
}

var allRoles = []Role{RoleSeller, RoleDesigner, RoleManager}

// catalog is the single source of truth for status display metadata.
// Every consuming view selects a subset from here instead of redefining
// labels.
var catalog = map[Code]Description{
	Draft:       {Name: "Draft", Color: ColorGray, Roles: []Role{RoleSeller, RoleManager}},
	Created:     {Name: "Created", Color: ColorGray, Roles: []Role{RoleSeller, RoleManager}},
	NeedDesign:  {Name: "Need Design", Color: ColorYellow, Roles: allRoles},
	Designing:   {Name: "Designing", Color: ColorBlue, Roles: allRoles},
	CheckDesign: {Name: "Check Design", Color: ColorOrange, Roles: allRoles},
	DesignRedo:  {Name: "Design Redo", Color: ColorRed, Roles: allRoles},
	ReadyProd:   {Name: "Ready for Production", Color: ColorGreen, Roles: []Role{RoleSeller, RoleManager}},
	InProd:      {Name: "In Production", Color: ColorBlue, Roles: []Role{RoleSeller, RoleManager}},
	Finished:    {Name: "Finished", Color: ColorGreen, Roles: []Role{RoleSeller, RoleManager}},
	QCDone:      {Name: "QC Done", Color: ColorGreen, Roles: []Role{RoleSeller, RoleManager}},
	QCFail:      {Name: "QC Fail", Color: ColorRed, Roles: []Role{RoleSeller, RoleManager}},
	ProdRework:  {Name: "Production Rework", Color: ColorOrange, Roles: []Role{RoleSeller, RoleManager}},
	Shipping:    {Name: "Shipping", Color: ColorPurple, Roles: []Role{RoleSeller, RoleManager}},
	Shipped:     {Name: "Shipped", Color: ColorGreen, Roles: []Role{RoleSeller, RoleManager}},
	HoldRefund:  {Name: "Hold for Refund", Color: ColorRed, Roles: []Role{RoleSeller, RoleManager}},
	HoldReprint: {Name: "Hold for Reprint", Color: ColorRed, Roles: []Role{RoleSeller, RoleManager}},
	Refund:      {Name: "Refund", Color: ColorRed, Roles: []Role{RoleSeller, RoleManager}},
}

var unknownDescription = Description{Name: "Unknown", Color: ColorGray}

// Describe returns the catalog entry for the given code. Unknown codes
// return the "Unknown" entry; Describe never panics.
func Describe(c Code) Description {
	if d, ok := catalog[c]; ok {
		return d
	}
	return unknownDescription
}

// Normalize maps any out-of-range code to Unknown so callers can use the
// result as a bucket key.
func Normalize(c Code) Code {
	if _, ok := catalog[c]; ok {
		return c
	}
	return Unknown
}

// IsValid reports whether c is one of the 17 defined wire values.
func IsValid(c Code) bool {
	_, ok := catalog[c]
	return ok
}

// IsTerminal reports whether c ends the lifecycle. QCFail, ProdRework and
// DesignRedo are recoverable branch states, not terminal.
func IsTerminal(c Code) bool {
	return c == Shipped || c == Refund
}

func (c Code) String() string {
	return Describe(c).Name
}

// IsValidRole reports whether s is a known workflow role.
func IsValidRole(s string) bool {
	switch Role(s) {
	case RoleSeller, RoleDesigner, RoleManager:
		return true
	}
	return false
}
