package browser

// Scripts evaluated by the crawler. Fakes match on these exact strings.
const (
	// ScriptScrollHeight returns the document height in CSS pixels.
	ScriptScrollHeight = `document.body ? document.body.scrollHeight : document.documentElement.scrollHeight`

	// ScriptScrollWidth returns the document width in CSS pixels.
	ScriptScrollWidth = `document.body ? document.body.scrollWidth : document.documentElement.scrollWidth`

	// ScriptScrollToBottom scrolls the window to the end of the document.
	ScriptScrollToBottom = `window.scrollTo(0, document.body ? document.body.scrollHeight : document.documentElement.scrollHeight)`

	// ScriptContentType returns the MIME type of the loaded document.
	ScriptContentType = `document.contentType`

	// ScriptOuterHTML returns the serialized rendered DOM.
	ScriptOuterHTML = `document.documentElement ? document.documentElement.outerHTML : ""`

	// ScriptBaseURI returns the base URL relative links resolve against,
	// honoring <base href>.
	ScriptBaseURI = `document.baseURI`

	// ScriptLocation returns the URL of the loaded document.
	ScriptLocation = `location.href`

	// ScriptResponseStatus returns the HTTP status of the main document.
	// Documents without a navigation timing entry report 200.
	ScriptResponseStatus = `window.performance?.getEntriesByType?.('navigation')?.[0]?.responseStatus || 200`
)

// handleAttribute is set on every element returned by FindElements.
const handleAttribute = "data-sitegraph-handle"

// findElementsTemplate lists elements matching __SELECTOR__ and tags each
// one with a handle attribute so later calls can address it.
const findElementsTemplate = `(() => {
  let next = window.__sitegraphHandle || 0;
  const out = [];
  document.querySelectorAll(__SELECTOR__).forEach((el) => {
    if (!el.hasAttribute('` + handleAttribute + `')) {
      next += 1;
      el.setAttribute('` + handleAttribute + `', String(next));
    }
    const style = window.getComputedStyle(el);
    const boxed = el.offsetWidth > 0 || el.offsetHeight > 0 || el.getClientRects().length > 0;
    out.push({
      handle: el.getAttribute('` + handleAttribute + `'),
      tag: el.tagName.toLowerCase(),
      text: (el.textContent || '').replace(/\s+/g, ' ').trim().slice(0, 512),
      class: typeof el.className === 'string' ? el.className : (el.getAttribute('class') || ''),
      id: el.id || '',
      href: el.getAttribute('href') || '',
      nested: el.querySelector('a, button') !== null,
      visible: boxed && style.visibility !== 'hidden' && style.display !== 'none',
      enabled: !el.disabled,
    });
  });
  window.__sitegraphHandle = next;
  return out;
})()`
