package google

// CalendarScopes are requested on the consent screen: identity for the
// registry key and full calendar access for the tool catalog.
var CalendarScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/calendar",
}
