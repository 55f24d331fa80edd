package enums

// AuthKind names the authentication sub-flow a shopper picked at the gate.
type AuthKind string

const (
	AuthKindSignIn   AuthKind = "sign_in"
	AuthKindRegister AuthKind = "register"
)

var authKinds = []AuthKind{AuthKindSignIn, AuthKindRegister}

func (k AuthKind) String() string { return string(k) }

func (k AuthKind) IsValid() bool { return known(k, authKinds) }

func ParseAuthKind(value string) (AuthKind, error) {
	return parse("auth kind", value, authKinds, false)
}
