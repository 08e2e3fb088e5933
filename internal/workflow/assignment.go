package workflow

import (
	"fmt"

	"github.com/door-access-manager/backend/internal/pin"
)

// AccessMethod is the credential type assigned to a door.
type AccessMethod string

const (
	MethodNone        AccessMethod = ""
	MethodNFC         AccessMethod = "NFC"
	MethodVirtualPIN  AccessMethod = "VIRTUAL_PIN"
	MethodPhysicalKey AccessMethod = "PHYSICAL_KEY"
)

// ParseAccessMethod parses a wire method name.
func ParseAccessMethod(s string) (AccessMethod, error) {
	switch m := AccessMethod(s); m {
	case MethodNFC, MethodVirtualPIN, MethodPhysicalKey:
		return m, nil
	default:
		return MethodNone, invalid("method", "unknown access method %q", s)
	}
}

// Role is the assignee's role on the door.
type Role string

const (
	RoleUser          Role = "user"
	RoleAdmin         Role = "admin"
	RoleInstaller     Role = "installer"
	RolePassKeyHolder Role = "pass_key_holder"
)

// ParseRole parses a role. An empty string means RoleUser.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case "":
		return RoleUser, nil
	case RoleUser, RoleAdmin, RoleInstaller, RolePassKeyHolder:
		return r, nil
	default:
		return "", invalid("role", "unknown role %q", s)
	}
}

// AccessWindow is when the assignment grants access.
type AccessWindow = pin.Window

// DoorSelection is the operator's choice for one door.
type DoorSelection struct {
	Selected bool
	Method   AccessMethod
}

// Credential is the credential material gathered for one door.
type Credential struct {
	NFCTagID   string
	VirtualPIN string
	Scanning   bool
}

// Assignment is the pending user/credential assignment a workflow owns.
type Assignment struct {
	SubjectName  string
	SubjectEmail string
	SubjectPhone string
	Role         Role
	Window       AccessWindow
	Selections   map[string]DoorSelection
	Credentials  map[string]Credential
}

func newAssignment(doorIDs []string) Assignment {
	a := Assignment{
		Role:        RoleUser,
		Window:      pin.Permanent(),
		Selections:  make(map[string]DoorSelection, len(doorIDs)),
		Credentials: make(map[string]Credential),
	}
	for _, id := range doorIDs {
		a.Selections[id] = DoorSelection{}
	}
	return a
}

// doorProblem returns why a selected door is not ready, or nil.
func (a *Assignment) doorProblem(doorID string) *ValidationError {
	sel := a.Selections[doorID]
	cred := a.Credentials[doorID]
	field := fmt.Sprintf("doors.%s", doorID)

	switch sel.Method {
	case MethodNone:
		return invalid(field+".method", "no access method selected")
	case MethodNFC:
		if cred.NFCTagID == "" {
			return invalid(field+".nfc_tag", "NFC tag not scanned")
		}
	case MethodVirtualPIN:
		if !pin.Complete(cred.VirtualPIN) {
			return invalid(field+".virtual_pin", "PIN must be %d keys", pin.Length)
		}
	}
	return nil
}
