// Package browser drives one playwright session and hosts the extraction
// core: it refreshes snapshots after every interaction, keeps the hid →
// locator maps, and diffs consecutive walks. The driver is not reentrant on
// a single page, so every operation serializes on the session lock.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"

	"github.com/CodingLucasLi/Clawome/internal/compressor"
	"github.com/CodingLucasLi/Clawome/internal/config"
	"github.com/CodingLucasLi/Clawome/internal/dom"
)

// TabInfo describes one open tab.
type TabInfo struct {
	TabID  int    `json:"tab_id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// ActionResult is the outcome of one interaction: a message, the post-settle
// snapshot (when requested), the open tabs, and the DOM diff against the
// previous snapshot for Click, InputText and FillText.
type ActionResult struct {
	Message      string          `json:"message"`
	Snapshot     *dom.Snapshot   `json:"snapshot,omitempty"`
	Tabs         []TabInfo       `json:"tabs"`
	NewTabOpened bool            `json:"new_tab_opened,omitempty"`
	Changes      *dom.DiffResult `json:"dom_changes,omitempty"`
}

type savedSession struct {
	Tabs        []string `json:"tabs"`
	ActiveIndex int      `json:"active_index"`
}

// Session owns the playwright lifecycle for one browser and all per-session
// mutable state. All fields below the mutex are guarded by it.
type Session struct {
	store       *config.Store
	registry    *compressor.Registry
	log         zerolog.Logger
	sessionFile string

	mu           chan struct{} // session lock, see lock()
	pw           *playwright.Playwright
	browser      playwright.Browser
	context      playwright.BrowserContext
	page         playwright.Page
	nodeMap      map[string]string
	xpathMap     map[string]string
	lastFiltered []dom.Node
	downloadDir  string
	downloads    []string
	newPages     []playwright.Page
}

// NewSession wires the extraction core to a (not yet launched) browser.
// sessionFile, when non-empty, is where open tabs persist across restarts.
func NewSession(store *config.Store, registry *compressor.Registry, sessionFile string, logger zerolog.Logger) *Session {
	s := &Session{
		store:       store,
		registry:    registry,
		log:         logger,
		sessionFile: sessionFile,
		mu:          make(chan struct{}, 1),
		nodeMap:     map[string]string{},
		xpathMap:    map[string]string{},
	}
	return s
}

// lock acquires the session token, honoring context cancellation.
func (s *Session) lock(ctx context.Context) error {
	select {
	case s.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) unlock() { <-s.mu }

func (s *Session) cfg() config.Config { return s.store.Get() }

// ensureOpen recovers from an externally closed tab and fails when no page
// is left.
func (s *Session) ensureOpen() error {
	if s.page != nil && s.page.IsClosed() {
		s.page = s.lastLivePage()
	}
	if s.page == nil {
		return ErrNotOpen
	}
	return nil
}

func (s *Session) lastLivePage() playwright.Page {
	if s.context == nil {
		return nil
	}
	pages := s.context.Pages()
	if len(pages) == 0 {
		return nil
	}
	return pages[len(pages)-1]
}

func (s *Session) resolve(hid string) (string, error) {
	sel, ok := s.nodeMap[hid]
	if !ok || sel == "" {
		return "", &NodeNotFoundError{Hid: hid}
	}
	return sel, nil
}

// Open launches the browser on first use and navigates when a URL is given.
// Without a URL, a fresh browser restores the previous tab session.
func (s *Session) Open(ctx context.Context, url string, refresh bool) (ActionResult, error) {
	if err := s.lock(ctx); err != nil {
		return ActionResult{}, err
	}
	defer s.unlock()

	fresh := s.browser == nil
	if fresh {
		if err := s.launch(); err != nil {
			return ActionResult{}, err
		}
	}
	if url != "" {
		url = normalizeURL(url)
		if err := s.navigateTo(url); err != nil {
			return ActionResult{}, &NavigationError{URL: url, Err: err}
		}
		return s.actionResult(fmt.Sprintf("Opened %s", url), refresh), nil
	}
	if fresh {
		if n := s.restoreSession(); n > 0 {
			return s.actionResult(fmt.Sprintf("Restored %d tab(s) from previous session", n), refresh), nil
		}
	}
	return s.actionResult("Opened blank", refresh), nil
}

func (s *Session) launch() error {
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}
	cfg := s.cfg()
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("launch chromium: %w", err)
	}
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		AcceptDownloads: playwright.Bool(true),
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return fmt.Errorf("new context: %w", err)
	}
	// Must land before any page script so the walker can see click handlers.
	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(dom.ClickInterceptorScript)}); err != nil {
		s.log.Warn().Err(err).Msg("install click interceptor")
	}
	bctx.OnPage(s.onNewPage)
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return fmt.Errorf("new page: %w", err)
	}
	dir, err := os.MkdirTemp("", "clawome-downloads-")
	if err != nil {
		dir = os.TempDir()
	}
	s.pw = pw
	s.browser = browser
	s.context = bctx
	s.page = page
	s.downloadDir = dir
	s.newPages = nil
	s.registerPage(page)
	s.log.Info().Bool("headless", cfg.Headless).Msg("browser launched")
	return nil
}

func (s *Session) registerPage(page playwright.Page) {
	page.OnDownload(s.onDownload)
	page.OnClose(func(p playwright.Page) { s.onPageClose(p) })
}

func (s *Session) onNewPage(page playwright.Page) {
	s.registerPage(page)
	s.newPages = append(s.newPages, page)
}

func (s *Session) onPageClose(page playwright.Page) {
	for i, p := range s.newPages {
		if p == page {
			s.newPages = append(s.newPages[:i], s.newPages[i+1:]...)
			break
		}
	}
	if page == s.page {
		s.page = s.lastLivePage()
	}
}

func (s *Session) onDownload(download playwright.Download) {
	path := filepath.Join(s.downloadDir, download.SuggestedFilename())
	if err := download.SaveAs(path); err != nil {
		s.log.Warn().Err(err).Msg("save download")
		return
	}
	s.downloads = append(s.downloads, path)
}

func normalizeURL(url string) string {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "https://" + url
	}
	return url
}

func (s *Session) navigateTo(url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.cfg().NavTimeout)),
	})
	return err
}

// waitStable waits for the page to settle after an interaction that may
// mutate the DOM: domcontentloaded, a short network-idle window, then a
// MutationObserver quiet interval. Every wait is best-effort; timeouts are
// swallowed.
func (s *Session) waitStable() {
	cfg := s.cfg()
	_ = s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(float64(cfg.LoadWait)),
	})
	_ = s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(cfg.NetworkIdleWait)),
	})
	settle := cfg.DOMSettleWait
	if settle <= 0 {
		settle = 500
	}
	_, err := s.page.Evaluate(`(settleMs) => new Promise(resolve => {
		let timer = null
		const observer = new MutationObserver(() => {
			clearTimeout(timer)
			timer = setTimeout(() => { observer.disconnect(); resolve() }, settleMs)
		})
		observer.observe(document.body, {
			childList: true, subtree: true,
			attributes: true, characterData: true
		})
		timer = setTimeout(() => { observer.disconnect(); resolve() }, settleMs)
	})`, settle)
	if err != nil {
		s.log.Debug().Err(err).Msg("dom settle wait")
	}
}

// refreshDOM walks the live page, runs the URL-matched compressor, and
// caches the locator maps and filtered list. The caches only change on
// success, so readers always see a complete snapshot.
func (s *Session) refreshDOM() (dom.Snapshot, error) {
	cfg := s.cfg()
	nodes, err := dom.Walk(s.page, cfg)
	if err != nil {
		return dom.Snapshot{}, err
	}
	htmlLen := s.htmlLength()
	url := s.page.URL()
	filtered, profile := s.registry.Run(url, nodes)
	snap := dom.Assemble(nodes, filtered, htmlLen)
	s.nodeMap = snap.NodeMap
	s.xpathMap = snap.XPathMap
	s.lastFiltered = filtered
	s.log.Debug().
		Str("profile", profile).
		Int("raw", snap.Stats.NodesBeforeFilter).
		Int("filtered", snap.Stats.NodesAfterFilter).
		Msg("dom refreshed")
	return snap, nil
}

func (s *Session) htmlLength() int {
	val, err := s.page.Evaluate("document.documentElement.outerHTML.length")
	if err != nil {
		return 0
	}
	switch v := val.(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// actionResult runs the shared post-action sequence: switch to a newly
// opened tab, wait for the page to settle, optionally refresh the snapshot.
func (s *Session) actionResult(message string, refresh bool) ActionResult {
	result := ActionResult{Message: message}
	if len(s.newPages) > 0 {
		newPage := s.newPages[len(s.newPages)-1]
		s.newPages = nil
		_ = newPage.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateDomcontentloaded,
			Timeout: playwright.Float(float64(s.cfg().LoadWait)),
		})
		s.page = newPage
		_ = s.page.BringToFront()
		result.NewTabOpened = true
	}
	s.waitStable()
	if refresh {
		if snap, err := s.refreshDOM(); err != nil {
			s.log.Warn().Err(err).Msg("refresh dom")
		} else {
			result.Snapshot = &snap
		}
	}
	result.Tabs = s.tabsInfo()
	return result
}

func (s *Session) tabsInfo() []TabInfo {
	if s.context == nil {
		return nil
	}
	var tabs []TabInfo
	for i, p := range s.context.Pages() {
		title, _ := p.Title()
		tabs = append(tabs, TabInfo{
			TabID:  i,
			URL:    p.URL(),
			Title:  title,
			Active: p == s.page,
		})
	}
	return tabs
}

// ── Navigation ──

func (s *Session) Back(ctx context.Context, refresh bool) (ActionResult, error) {
	return s.navOp(ctx, "Navigated back", refresh, func() error {
		_, err := s.page.GoBack(playwright.PageGoBackOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(s.cfg().NavTimeout)),
		})
		return err
	})
}

func (s *Session) Forward(ctx context.Context, refresh bool) (ActionResult, error) {
	return s.navOp(ctx, "Navigated forward", refresh, func() error {
		_, err := s.page.GoForward(playwright.PageGoForwardOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(s.cfg().NavTimeout)),
		})
		return err
	})
}

func (s *Session) Refresh(ctx context.Context, refresh bool) (ActionResult, error) {
	return s.navOp(ctx, "Page refreshed", refresh, func() error {
		_, err := s.page.Reload(playwright.PageReloadOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(s.cfg().ReloadTimeout)),
		})
		return err
	})
}

func (s *Session) navOp(ctx context.Context, message string, refresh bool, op func() error) (ActionResult, error) {
	if err := s.lock(ctx); err != nil {
		return ActionResult{}, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return ActionResult{}, err
	}
	if err := op(); err != nil {
		return ActionResult{}, wrap(err)
	}
	return s.actionResult(message, refresh), nil
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	if err := s.lock(ctx); err != nil {
		return "", err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	return s.page.URL(), nil
}

// ── DOM reading ──

// DOM walks the page and returns the assembled snapshot. Lite mode
// re-assembles the same walk with truncated text, so node IDs are identical
// to full mode.
func (s *Session) DOM(ctx context.Context, lite bool) (dom.Snapshot, error) {
	if err := s.lock(ctx); err != nil {
		return dom.Snapshot{}, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return dom.Snapshot{}, err
	}
	cfg := s.cfg()
	nodes, err := dom.Walk(s.page, cfg)
	if err != nil {
		return dom.Snapshot{}, err
	}
	htmlLen := s.htmlLength()
	filtered, _ := s.registry.Run(s.page.URL(), nodes)
	snap := dom.Assemble(nodes, filtered, htmlLen)
	s.nodeMap = snap.NodeMap
	s.xpathMap = snap.XPathMap
	s.lastFiltered = filtered
	if lite {
		snap = dom.AssembleLite(nodes, filtered, htmlLen, cfg.LiteTextMax, cfg.LiteTextHead)
	}
	return snap, nil
}

// NodeDetail returns full live detail for one node: attributes, rect,
// visibility, form state, and both locators.
func (s *Session) NodeDetail(ctx context.Context, hid string) (map[string]any, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	sel, err := s.resolve(hid)
	if err != nil {
		return nil, err
	}
	val, err := s.page.Locator(sel).First().Evaluate(`el => {
		const attrs = {};
		for (const a of el.attributes) attrs[a.name] = a.value;
		const rect = el.getBoundingClientRect();
		const cs = window.getComputedStyle(el);
		return {
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || '').substring(0, 500),
			attrs,
			rect: {x: rect.x, y: rect.y, w: rect.width, h: rect.height},
			visible: rect.width > 0 && rect.height > 0
				&& cs.display !== 'none'
				&& cs.visibility !== 'hidden'
				&& cs.opacity !== '0',
			enabled: !el.disabled,
			checked: el.checked ?? null,
			value: el.value ?? null,
			focused: document.activeElement === el,
			readonly: el.readOnly ?? false,
			ariaExpanded: el.getAttribute('aria-expanded'),
			ariaSelected: el.getAttribute('aria-selected'),
			childCount: el.children.length,
		};
	}`, nil)
	if err != nil {
		return nil, wrap(err)
	}
	detail, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected detail shape %T", val)
	}
	detail["css_selector"] = sel
	detail["xpath"] = s.xpathMap[hid]
	return detail, nil
}

// NodeChildren re-parses one element's inner HTML through the server-side
// walker and the default pipeline, returning the rendered subtree.
func (s *Session) NodeChildren(ctx context.Context, hid string) (string, error) {
	if err := s.lock(ctx); err != nil {
		return "", err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	sel, err := s.resolve(hid)
	if err != nil {
		return "", err
	}
	inner, err := s.page.Locator(sel).First().InnerHTML()
	if err != nil {
		return "", wrap(err)
	}
	nodes, err := dom.ParseHTML("<body>"+inner+"</body>", s.cfg())
	if err != nil {
		return "", err
	}
	filtered := compressor.Process(nodes)
	return dom.Assemble(nodes, filtered, len(inner)).Tree, nil
}

func (s *Session) NodeSource(ctx context.Context, hid string) (string, error) {
	if err := s.lock(ctx); err != nil {
		return "", err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	sel, err := s.resolve(hid)
	if err != nil {
		return "", err
	}
	val, err := s.page.Locator(sel).First().Evaluate("el => el.outerHTML", nil)
	if err != nil {
		return "", wrap(err)
	}
	html, _ := val.(string)
	return html, nil
}

func (s *Session) PageSource(ctx context.Context) (string, error) {
	if err := s.lock(ctx); err != nil {
		return "", err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	html, err := s.page.Content()
	return html, wrap(err)
}

// Text returns the inner text of a node, or of the whole body when hid is
// empty.
func (s *Session) Text(ctx context.Context, hid string) (string, error) {
	if err := s.lock(ctx); err != nil {
		return "", err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	if hid == "" {
		text, err := s.page.Locator("body").InnerText()
		return text, wrap(err)
	}
	sel, err := s.resolve(hid)
	if err != nil {
		return "", err
	}
	text, err := s.page.Locator(sel).First().InnerText()
	return text, wrap(err)
}

// ── Interaction ──

// interact runs op against the resolved node, settles, re-snapshots when
// refresh is set, and attaches the DOM diff against the previous walk when
// diff is also set.
func (s *Session) interact(ctx context.Context, hid, message string, refresh, diff bool, op func(loc playwright.Locator) error) (ActionResult, error) {
	if err := s.lock(ctx); err != nil {
		return ActionResult{}, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return ActionResult{}, err
	}
	sel, err := s.resolve(hid)
	if err != nil {
		return ActionResult{}, err
	}
	before := append([]dom.Node(nil), s.lastFiltered...)
	if err := op(s.page.Locator(sel).First()); err != nil {
		return ActionResult{}, wrap(err)
	}
	result := s.actionResult(message, refresh)
	if diff && refresh && len(before) > 0 {
		changes := dom.Diff(before, s.lastFiltered, 0)
		s.log.Debug().
			Int("added", len(changes.Added)).
			Int("removed", len(changes.Removed)).
			Int("changed", len(changes.Changed)).
			Msg("dom diff")
		result.Changes = &changes
	}
	return result, nil
}

func (s *Session) Click(ctx context.Context, hid string, refresh bool) (ActionResult, error) {
	return s.interact(ctx, hid, fmt.Sprintf("Clicked [%s]", hid), refresh, true, func(loc playwright.Locator) error {
		return loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(float64(s.cfg().ClickTimeout))})
	})
}

// InputText clicks to focus, selects all, then types character by character
// so key events fire (autocomplete widgets need them).
func (s *Session) InputText(ctx context.Context, hid, text string, refresh bool) (ActionResult, error) {
	return s.interact(ctx, hid, fmt.Sprintf("Typed into [%s]", hid), refresh, true, func(loc playwright.Locator) error {
		cfg := s.cfg()
		if err := loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(float64(cfg.ClickTimeout))}); err != nil {
			return err
		}
		mod := "Control"
		if runtime.GOOS == "darwin" {
			mod = "Meta"
		}
		if err := s.page.Keyboard().Press(mod + "+a"); err != nil {
			return err
		}
		return s.page.Keyboard().Type(text, playwright.KeyboardTypeOptions{Delay: playwright.Float(float64(cfg.TypeDelay))})
	})
}

// FillText is the fast path for simple forms that don't need key events.
func (s *Session) FillText(ctx context.Context, hid, text string, refresh bool) (ActionResult, error) {
	return s.interact(ctx, hid, fmt.Sprintf("Filled [%s]", hid), refresh, true, func(loc playwright.Locator) error {
		return loc.Fill(text, playwright.LocatorFillOptions{Timeout: playwright.Float(float64(s.cfg().InputTimeout))})
	})
}

func (s *Session) SelectOption(ctx context.Context, hid, value string, refresh bool) (ActionResult, error) {
	return s.interact(ctx, hid, fmt.Sprintf("Selected %q in [%s]", value, hid), refresh, false, func(loc playwright.Locator) error {
		_, err := loc.SelectOption(playwright.SelectOptionValues{Values: &[]string{value}},
			playwright.LocatorSelectOptionOptions{Timeout: playwright.Float(float64(s.cfg().InputTimeout))})
		return err
	})
}

func (s *Session) Check(ctx context.Context, hid string, checked, refresh bool) (ActionResult, error) {
	message := fmt.Sprintf("Checked [%s]", hid)
	if !checked {
		message = fmt.Sprintf("Unchecked [%s]", hid)
	}
	return s.interact(ctx, hid, message, refresh, false, func(loc playwright.Locator) error {
		return loc.SetChecked(checked, playwright.LocatorSetCheckedOptions{Timeout: playwright.Float(float64(s.cfg().InputTimeout))})
	})
}

func (s *Session) Submit(ctx context.Context, hid string, refresh bool) (ActionResult, error) {
	return s.interact(ctx, hid, fmt.Sprintf("Submitted [%s]", hid), refresh, false, func(loc playwright.Locator) error {
		_, err := loc.Evaluate("el => { if (el.submit) el.submit(); else el.closest('form')?.submit(); }", nil)
		return err
	})
}

func (s *Session) Hover(ctx context.Context, hid string, refresh bool) (ActionResult, error) {
	return s.interact(ctx, hid, fmt.Sprintf("Hovered [%s]", hid), refresh, false, func(loc playwright.Locator) error {
		return loc.Hover(playwright.LocatorHoverOptions{Timeout: playwright.Float(float64(s.cfg().HoverTimeout))})
	})
}

func (s *Session) Focus(ctx context.Context, hid string, refresh bool) (ActionResult, error) {
	return s.interact(ctx, hid, fmt.Sprintf("Focused [%s]", hid), refresh, false, func(loc playwright.Locator) error {
		return loc.Focus(playwright.LocatorFocusOptions{Timeout: playwright.Float(float64(s.cfg().ClickTimeout))})
	})
}

// ── Scrolling & keyboard ──

func (s *Session) Scroll(ctx context.Context, pixels int, refresh bool) (ActionResult, error) {
	if err := s.lock(ctx); err != nil {
		return ActionResult{}, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return ActionResult{}, err
	}
	if pixels == 0 {
		pixels = s.cfg().ScrollPixels
	}
	if _, err := s.page.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", pixels)); err != nil {
		return ActionResult{}, wrap(err)
	}
	direction := "down"
	if pixels < 0 {
		direction = "up"
		pixels = -pixels
	}
	return s.actionResult(fmt.Sprintf("Scrolled %s %dpx", direction, pixels), refresh), nil
}

func (s *Session) ScrollTo(ctx context.Context, hid string, refresh bool) (ActionResult, error) {
	return s.interact(ctx, hid, fmt.Sprintf("Scrolled to [%s]", hid), refresh, false, func(loc playwright.Locator) error {
		return loc.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{Timeout: playwright.Float(float64(s.cfg().ScrollTimeout))})
	})
}

// Keypress presses a key or a combination ("Enter", "Control+A").
func (s *Session) Keypress(ctx context.Context, key string, refresh bool) (ActionResult, error) {
	if err := s.lock(ctx); err != nil {
		return ActionResult{}, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return ActionResult{}, err
	}
	if err := s.page.Keyboard().Press(key); err != nil {
		return ActionResult{}, wrap(err)
	}
	return s.actionResult(fmt.Sprintf("Pressed %s", key), refresh), nil
}

// ── Tabs ──

func (s *Session) Tabs(ctx context.Context) ([]TabInfo, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return s.tabsInfo(), nil
}

func (s *Session) SwitchTab(ctx context.Context, tabID int, refresh bool) (ActionResult, error) {
	if err := s.lock(ctx); err != nil {
		return ActionResult{}, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return ActionResult{}, err
	}
	pages := s.context.Pages()
	if tabID < 0 || tabID >= len(pages) {
		return ActionResult{}, fmt.Errorf("invalid tab id %d", tabID)
	}
	s.page = pages[tabID]
	_ = s.page.BringToFront()
	return s.actionResult(fmt.Sprintf("Switched to tab %d", tabID), refresh), nil
}

// CloseTab closes the tab with the given id, or the active one when id < 0.
func (s *Session) CloseTab(ctx context.Context, tabID int) ([]TabInfo, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	pages := s.context.Pages()
	target := s.page
	if tabID >= 0 {
		if tabID >= len(pages) {
			return nil, fmt.Errorf("invalid tab id %d", tabID)
		}
		target = pages[tabID]
	}
	_ = target.Close()
	if remaining := s.context.Pages(); len(remaining) > 0 {
		s.page = remaining[len(remaining)-1]
		_ = s.page.BringToFront()
	} else {
		s.page = nil
	}
	return s.tabsInfo(), nil
}

func (s *Session) NewTab(ctx context.Context, url string, refresh bool) (ActionResult, error) {
	if err := s.lock(ctx); err != nil {
		return ActionResult{}, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return ActionResult{}, err
	}
	page, err := s.context.NewPage()
	if err != nil {
		return ActionResult{}, wrap(err)
	}
	// explicit new tab, not an externally opened one
	for i, p := range s.newPages {
		if p == page {
			s.newPages = append(s.newPages[:i], s.newPages[i+1:]...)
			break
		}
	}
	s.page = page
	label := "blank"
	if url != "" {
		url = normalizeURL(url)
		label = url
		if err := s.navigateTo(url); err != nil {
			return ActionResult{}, &NavigationError{URL: url, Err: err}
		}
	}
	return s.actionResult(fmt.Sprintf("New tab: %s", label), refresh), nil
}

// ── Screenshot, files, page state ──

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	data, err := s.page.Screenshot()
	return data, wrap(err)
}

func (s *Session) ScreenshotElement(ctx context.Context, hid string) ([]byte, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	sel, err := s.resolve(hid)
	if err != nil {
		return nil, err
	}
	data, err := s.page.Locator(sel).First().Screenshot()
	return data, wrap(err)
}

func (s *Session) Upload(ctx context.Context, hid, filePath string, refresh bool) (ActionResult, error) {
	return s.interact(ctx, hid, fmt.Sprintf("Uploaded %s", filePath), refresh, false, func(loc playwright.Locator) error {
		data, err := os.ReadFile(filePath) //nolint:gosec // path supplied by the caller
		if err != nil {
			return err
		}
		return loc.SetInputFiles([]playwright.InputFile{{
			Name:   filepath.Base(filePath),
			Buffer: data,
		}})
	})
}

func (s *Session) Downloads(ctx context.Context) ([]string, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	return append([]string(nil), s.downloads...), nil
}

func (s *Session) Cookies(ctx context.Context) ([]playwright.Cookie, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	cookies, err := s.context.Cookies()
	return cookies, wrap(err)
}

func (s *Session) SetCookie(ctx context.Context, name, value string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	url := s.page.URL()
	return wrap(s.context.AddCookies([]playwright.OptionalCookie{{
		Name:  name,
		Value: value,
		URL:   playwright.String(url),
	}}))
}

// Viewport reports window size, scroll offsets, and page height.
func (s *Session) Viewport(ctx context.Context) (map[string]any, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	val, err := s.page.Evaluate(`() => ({
		width: window.innerWidth,
		height: window.innerHeight,
		scroll_x: window.scrollX,
		scroll_y: window.scrollY,
		page_height: document.documentElement.scrollHeight,
	})`)
	if err != nil {
		return nil, wrap(err)
	}
	info, _ := val.(map[string]any)
	return info, nil
}

func (s *Session) Wait(ctx context.Context, d time.Duration) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	s.page.WaitForTimeout(float64(d.Milliseconds()))
	return nil
}

func (s *Session) WaitFor(ctx context.Context, hid string, refresh bool) (ActionResult, error) {
	return s.interact(ctx, hid, fmt.Sprintf("[%s] appeared", hid), refresh, false, func(loc playwright.Locator) error {
		return loc.WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(float64(s.cfg().WaitForElementTimeout)),
		})
	})
}

// ── Lifecycle ──

// Status reports whether the browser is open and the active page's URL
// (empty when no page is left).
func (s *Session) Status(ctx context.Context) (open bool, url string, err error) {
	if err := s.lock(ctx); err != nil {
		return false, "", err
	}
	defer s.unlock()
	if s.page != nil && s.page.IsClosed() {
		s.page = s.lastLivePage()
	}
	if s.page == nil {
		return s.browser != nil, "", nil
	}
	return true, s.page.URL(), nil
}

// Close saves the tab session and tears the browser down. Cached locator
// maps and the diff baseline do not survive.
func (s *Session) Close(ctx context.Context) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	if s.browser == nil {
		return ErrNotOpen
	}
	s.saveSession()
	if err := s.browser.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close browser")
	}
	if err := s.pw.Stop(); err != nil {
		s.log.Warn().Err(err).Msg("stop playwright")
	}
	s.pw = nil
	s.browser = nil
	s.context = nil
	s.page = nil
	s.nodeMap = map[string]string{}
	s.xpathMap = map[string]string{}
	s.lastFiltered = nil
	s.downloads = nil
	s.newPages = nil
	s.log.Info().Msg("browser closed")
	return nil
}

func (s *Session) saveSession() {
	if s.sessionFile == "" || s.context == nil {
		return
	}
	saved := savedSession{}
	for _, p := range s.context.Pages() {
		url := p.URL()
		if url == "" || url == "about:blank" {
			continue
		}
		if p == s.page {
			saved.ActiveIndex = len(saved.Tabs)
		}
		saved.Tabs = append(saved.Tabs, url)
	}
	data, err := json.Marshal(saved)
	if err != nil {
		return
	}
	if err := os.WriteFile(s.sessionFile, data, 0o600); err != nil {
		s.log.Warn().Err(err).Msg("save tab session")
	}
}

// restoreSession reopens tabs from the previous run; returns how many.
func (s *Session) restoreSession() int {
	if s.sessionFile == "" {
		return 0
	}
	data, err := os.ReadFile(s.sessionFile)
	if err != nil {
		return 0
	}
	var saved savedSession
	if err := json.Unmarshal(data, &saved); err != nil || len(saved.Tabs) == 0 {
		return 0
	}
	if err := s.navigateTo(saved.Tabs[0]); err != nil {
		s.log.Warn().Str("url", saved.Tabs[0]).Err(err).Msg("restore tab")
	}
	for _, url := range saved.Tabs[1:] {
		page, err := s.context.NewPage()
		if err != nil {
			continue
		}
		for i, p := range s.newPages {
			if p == page {
				s.newPages = append(s.newPages[:i], s.newPages[i+1:]...)
				break
			}
		}
		if _, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(s.cfg().NavTimeout)),
		}); err != nil {
			s.log.Warn().Str("url", url).Err(err).Msg("restore tab")
		}
	}
	pages := s.context.Pages()
	if saved.ActiveIndex >= 0 && saved.ActiveIndex < len(pages) {
		s.page = pages[saved.ActiveIndex]
		_ = s.page.BringToFront()
	}
	return len(saved.Tabs)
}
