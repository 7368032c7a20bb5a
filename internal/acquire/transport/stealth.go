package transport

import (
	"fmt"
	"strings"
)

// stealthScript runs before any page script on every document the session
// opens and hides the usual automation tells.
func stealthScript(session Session) string {
	lang := session.Locale
	short := strings.SplitN(lang, "-", 2)[0]
	return fmt.Sprintf(`
Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });
delete navigator.webdriver;

Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5], configurable: true });
Object.defineProperty(navigator, 'languages', { get: () => [%q, %q], configurable: true });
Object.defineProperty(navigator, 'language', { get: () => %q, configurable: true });

window.chrome = { runtime: {} };

const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications' ?
		Promise.resolve({ state: Notification.permission }) :
		originalQuery(parameters)
);
`, lang, short, lang)
}
