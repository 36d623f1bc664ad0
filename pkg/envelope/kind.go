package envelope

// Kind classifies an envelope by its event_name.
type Kind int

const (
	KindUnknown Kind = iota
	KindAppInit
	KindAppLogin
	KindAppLogout
	KindPageView
	KindProductPageView
	KindUpdatePushToken
)

var kindNames = map[string]Kind{
	"app.init":          KindAppInit,
	"app.login":         KindAppLogin,
	"app.logout":        KindAppLogout,
	"page.view":         KindPageView,
	"productpage.view":  KindProductPageView,
	"update.push_token": KindUpdatePushToken,
}

// KindOf maps an event name to its Kind. Unrecognised names map to KindUnknown.
func KindOf(eventName string) Kind {
	if k, ok := kindNames[eventName]; ok {
		return k
	}
	return KindUnknown
}

// Kinds returns all known kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindAppInit, KindAppLogin, KindAppLogout, KindPageView, KindProductPageView, KindUpdatePushToken}
}

// String returns the wire event name.
func (k Kind) String() string {
	switch k {
	case KindAppInit:
		return "app.init"
	case KindAppLogin:
		return "app.login"
	case KindAppLogout:
		return "app.logout"
	case KindPageView:
		return "page.view"
	case KindProductPageView:
		return "productpage.view"
	case KindUpdatePushToken:
		return "update.push_token"
	default:
		return "unknown"
	}
}

// HookName is the name hooks are registered under, e.g. "app_init".
func (k Kind) HookName() string {
	switch k {
	case KindAppInit:
		return "app_init"
	case KindAppLogin:
		return "app_login"
	case KindAppLogout:
		return "app_logout"
	case KindPageView:
		return "page_view"
	case KindProductPageView:
		return "productpage_view"
	case KindUpdatePushToken:
		return "update_push_token"
	default:
		return "unknown"
	}
}

// IsAPIEvent reports whether the kind is billable. Every known kind except push-token updates is.
func (k Kind) IsAPIEvent() bool {
	switch k {
	case KindAppInit, KindAppLogin, KindAppLogout, KindPageView, KindProductPageView:
		return true
	default:
		return false
	}
}

// IsLifecycle reports whether the kind writes an app lifecycle record.
func (k Kind) IsLifecycle() bool {
	return k == KindAppInit || k == KindAppLogin || k == KindAppLogout
}

// HasTaxonomy reports whether the kind carries categories and tags.
func (k Kind) HasTaxonomy() bool {
	return k == KindPageView || k == KindProductPageView
}
