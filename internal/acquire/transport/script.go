package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
)

var errNoState = errors.New("page did not assign any known state global")

// browserShim gives page scripts the handful of globals they touch while
// bootstrapping, anything beyond that throws and is skipped.
const browserShim = `
var window = globalThis;
var self = window;
var navigator = { userAgent: __userAgent, language: "ko-KR", languages: ["ko-KR", "ko"], webdriver: undefined };
var location = { href: "", hostname: "", pathname: "", search: "" };
var document = {
	cookie: "",
	readyState: "loading",
	documentElement: {},
	addEventListener: function () {},
	getElementById: function () { return null; },
	querySelector: function () { return null; },
	querySelectorAll: function () { return []; },
	createElement: function () { return { style: {}, setAttribute: function () {}, appendChild: function () {} }; },
};
window.addEventListener = function () {};
window.setTimeout = function () { return 0; };
window.setInterval = function () { return 0; };
window.requestAnimationFrame = function () { return 0; };
`

func isInlineScript(s *goquery.Selection) bool {
	if _, external := s.Attr("src"); external {
		return false
	}
	kind, ok := s.Attr("type")
	if !ok {
		return true
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	return kind == "" || kind == "text/javascript" || kind == "application/javascript" || kind == "module"
}

// extractState runs every inline script that mentions one of keys and
// returns the JSON encoding of {key: value} for the globals that ended up
// assigned.
func extractState(ctx context.Context, html []byte, userAgent string, keys []string, limit time.Duration) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	vm := goja.New()
	err = vm.Set("__userAgent", userAgent)
	if err != nil {
		return nil, err
	}
	_, err = vm.RunString(browserShim)
	if err != nil {
		return nil, fmt.Errorf("install shim: %w", err)
	}

	timer := time.AfterFunc(limit, func() {
		vm.Interrupt("script time limit exceeded")
	})
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	var interrupted error
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !isInlineScript(s) {
			return true
		}
		text := s.Text()
		if !mentionsAny(text, keys) {
			return true
		}
		_, err := vm.RunString(text)
		var ie *goja.InterruptedError
		if errors.As(err, &ie) {
			interrupted = ie
			return false
		}
		// a throwing script may still have assigned the state before failing
		return true
	})
	if interrupted != nil {
		return nil, interrupted
	}

	state := vm.NewObject()
	found := false
	global := vm.GlobalObject()
	for _, key := range keys {
		value := global.Get(key)
		if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
			continue
		}
		err := state.Set(key, value)
		if err != nil {
			return nil, err
		}
		found = true
	}
	if !found {
		return nil, errNoState
	}

	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return nil, fmt.Errorf("JSON.stringify unavailable")
	}
	encoded, err := stringify(goja.Undefined(), state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return []byte(encoded.String()), nil
}

func mentionsAny(text string, keys []string) bool {
	for _, key := range keys {
		if strings.Contains(text, key) {
			return true
		}
	}
	return false
}
