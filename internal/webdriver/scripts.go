package webdriver

// In-page scripts shared by every driver. Drivers without a JavaScript engine
// (the static HTML driver) recognise these constants and emulate them.
const (
	// ScriptReadyState returns document.readyState.
	ScriptReadyState = `return document.readyState;`
	// ScriptClick clicks arguments[0] through the DOM API instead of a native
	// pointer event.
	ScriptClick = `arguments[0].click();`
	// ScriptFocus focuses arguments[0].
	ScriptFocus = `arguments[0].focus();`
	// ScriptHover dispatches mouseover/mouseenter on arguments[0].
	ScriptHover = `var el = arguments[0];
['mouseover', 'mouseenter'].forEach(function (type) {
  el.dispatchEvent(new MouseEvent(type, {bubbles: type === 'mouseover', cancelable: true, view: window}));
});`
	// ScriptScrollIntoView centres arguments[0] in the viewport.
	ScriptScrollIntoView = `arguments[0].scrollIntoView({block: 'center', inline: 'center'});`
	// ScriptActiveElement returns the focused element.
	ScriptActiveElement = `return document.activeElement;`
)
