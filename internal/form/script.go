// File: internal/form/script.go
package form

import (
	jsoniter "github.com/json-iterator/go"
)

// The fill protocol addresses controls by a scanner-assigned handle stored in
// a data attribute. Handles are minted from a counter on the evaluating
// window, so they are unique within one execution root and survive re-scans
// as long as the element stays attached.
const handleAttr = "data-apid"

// jsHelpers is the shared prelude compiled into every protocol script. It is
// wrapped in an IIFE by wrapJS/wrapAsyncJS so nothing leaks into the page's
// global scope except the handle counter.
const jsHelpers = `
    const walkDocs = (visit) => {
        const seen = new Set();
        const walk = (doc) => {
            if (!doc || seen.has(doc)) return;
            seen.add(doc);
            visit(doc);
            let frames = [];
            try { frames = doc.querySelectorAll('iframe, frame'); } catch (e) { return; }
            for (const f of frames) {
                try {
                    if (f.contentDocument) walk(f.contentDocument);
                } catch (e) {
                    // Cross-origin frame; it is its own execution root.
                }
            }
        };
        walk(document);
    };
    const byHandle = (h) => {
        let found = null;
        walkDocs((doc) => {
            if (found) return;
            try { found = doc.querySelector('[data-apid="' + h + '"]'); } catch (e) {}
        });
        return found;
    };
    const tagHandle = (el) => {
        let h = el.getAttribute('data-apid');
        if (!h) {
            window.__apSeq = (window.__apSeq || 0) + 1;
            h = 'ap-' + window.__apSeq;
            el.setAttribute('data-apid', h);
        }
        return h;
    };
    const visible = (el) => {
        if (!el || !el.isConnected) return false;
        const win = (el.ownerDocument && el.ownerDocument.defaultView) || window;
        let st = null;
        try { st = win.getComputedStyle(el); } catch (e) {}
        if (st && (st.display === 'none' || st.visibility === 'hidden')) return false;
        const r = el.getBoundingClientRect();
        return (r.width > 0 && r.height > 0) || el.getClientRects().length > 0;
    };
    const textOf = (el) => {
        if (!el) return '';
        const raw = (el.innerText !== undefined && el.innerText !== null) ? el.innerText : el.textContent;
        return (raw || '').replace(/\s+/g, ' ').trim();
    };
    const labelTextFor = (el, doc) => {
        const id = el.getAttribute('id');
        if (id) {
            try {
                const esc = (window.CSS && window.CSS.escape) ? window.CSS.escape(id) : id;
                const lab = doc.querySelector('label[for="' + esc + '"]');
                if (lab) {
                    const t = textOf(lab);
                    if (t) return t;
                }
            } catch (e) {}
        }
        let p = el.parentElement;
        while (p) {
            if (p.tagName && p.tagName.toLowerCase() === 'label') return textOf(p);
            p = p.parentElement;
        }
        const refs = el.getAttribute('aria-labelledby');
        if (refs) {
            const parts = [];
            for (const ref of refs.split(/\s+/)) {
                const n = doc.getElementById(ref);
                if (n) parts.push(textOf(n));
            }
            const joined = parts.join(' ').trim();
            if (joined) return joined;
        }
        return '';
    };
    const fire = (el, type) => {
        try { el.dispatchEvent(new Event(type, { bubbles: true, cancelable: true })); } catch (e) {}
    };
    const pressKey = (el, key, code) => {
        const init = { key: key, code: code, bubbles: true, cancelable: true };
        try { el.dispatchEvent(new KeyboardEvent('keydown', init)); } catch (e) {}
        try { el.dispatchEvent(new KeyboardEvent('keyup', init)); } catch (e) {}
    };
    const clickEl = (el) => {
        try { el.scrollIntoView({ block: 'center', inline: 'nearest' }); } catch (e) {}
        const win = (el.ownerDocument && el.ownerDocument.defaultView) || window;
        const init = { bubbles: true, cancelable: true, view: win };
        try { if (win.PointerEvent) el.dispatchEvent(new win.PointerEvent('pointerdown', init)); } catch (e) {}
        try { el.dispatchEvent(new win.MouseEvent('mousedown', init)); } catch (e) {}
        try { el.dispatchEvent(new win.MouseEvent('mouseup', init)); } catch (e) {}
        try {
            if (typeof el.click === 'function') { el.click(); }
            else { el.dispatchEvent(new win.MouseEvent('click', init)); }
        } catch (e) {}
    };
    const setValueRaw = (el, value) => {
        const win = (el.ownerDocument && el.ownerDocument.defaultView) || window;
        let proto = win.HTMLInputElement.prototype;
        const tag = el.tagName ? el.tagName.toLowerCase() : '';
        if (tag === 'textarea') proto = win.HTMLTextAreaElement.prototype;
        else if (tag === 'select') proto = win.HTMLSelectElement.prototype;
        const desc = Object.getOwnPropertyDescriptor(proto, 'value');
        if (desc && desc.set) { desc.set.call(el, value); } else { el.value = value; }
    };
    const setNativeValue = (el, value) => {
        setValueRaw(el, value);
        fire(el, 'input');
        fire(el, 'change');
    };
`

// wrapJS turns a script body into a self-contained expression with the shared
// helpers in scope. The body must end in a return statement.
func wrapJS(body string) string {
	return "(() => {\n\"use strict\";" + jsHelpers + body + "\n})()"
}

// wrapAsyncJS is wrapJS for bodies that await; the resulting expression is a
// promise the evaluator resolves before unmarshaling.
func wrapAsyncJS(body string) string {
	return "(async () => {\n\"use strict\";" + jsHelpers + body + "\n})()"
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(s)
	if err != nil {
		// A Go string always marshals; keep a safe fallback anyway.
		return `""`
	}
	return string(b)
}

// handleLocator builds an expression evaluating to the control with the given
// handle, or null. Used where the protocol needs the element itself rather
// than a value computed from it, such as attaching files.
func handleLocator(handle string) string {
	return wrapJS("return byHandle(" + jsString(handle) + ");")
}
