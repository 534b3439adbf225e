package browser

// Probes run with this bound to the element and return by value.

// probeVisibility is shared by the visible and clickable probes. It brings
// the element into view and returns an unmet reason, or "" when visible.
const probeVisibility = `
	const style = window.getComputedStyle(this);
	if (style.display === 'none') return {ok: false, reason: 'display is none'};
	if (style.visibility === 'hidden' || style.visibility === 'collapse') return {ok: false, reason: 'visibility is hidden'};
	if (parseFloat(style.opacity) === 0) return {ok: false, reason: 'opacity is 0'};
	let rect = this.getBoundingClientRect();
	if (rect.width <= 0 || rect.height <= 0) return {ok: false, reason: 'element has no size'};
	const vw = window.innerWidth || document.documentElement.clientWidth;
	const vh = window.innerHeight || document.documentElement.clientHeight;
	const inView = (r) => r.bottom > 0 && r.right > 0 && r.top < vh && r.left < vw;
	if (!inView(rect)) {
		this.scrollIntoView({block: 'center', inline: 'center'});
		rect = this.getBoundingClientRect();
		if (!inView(rect)) return {ok: false, reason: 'element is outside the viewport'};
	}
`

const jsVisible = `function() {` + probeVisibility + `
	return {ok: true};
}`

const jsClickable = `function() {` + probeVisibility + `
	if (this.disabled === true || this.hasAttribute('disabled')) return {ok: false, reason: 'element is disabled'};
	if (this.getAttribute('aria-disabled') === 'true') return {ok: false, reason: 'element is aria-disabled'};
	const x = rect.left + rect.width / 2;
	const y = rect.top + rect.height / 2;
	const hit = document.elementFromPoint(x, y);
	if (!hit) return {ok: false, reason: 'nothing at element center'};
	if (hit !== this && !this.contains(hit)) {
		let name = hit.tagName.toLowerCase();
		if (hit.id) name += '#' + hit.id;
		return {ok: false, reason: 'element is covered by ' + name};
	}
	return {ok: true};
}`

// jsStyleVisible checks computed style only.
const jsStyleVisible = `function() {
	const style = window.getComputedStyle(this);
	return style.display !== 'none' && style.visibility !== 'hidden' && parseFloat(style.opacity) !== 0;
}`

const jsTextContent = `function() { return this.textContent || this.innerText || ""; }`

const jsClearValue = `function() {
	if ('value' in this) this.value = '';
	this.dispatchEvent(new Event('input', {bubbles: true}));
}`

// probeResult is the decoded shape of jsVisible and jsClickable.
type probeResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
}
