package browser

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/CodingLucasLi/Clawome/internal/dom"
)

// BenchmarkResult scores one page's compression quality: how much the tree
// shrank and how much of the page's visible text it still carries.
type BenchmarkResult struct {
	URL                 string    `json:"url"`
	Title               string    `json:"title"`
	Stats               dom.Stats `json:"stats"`
	Completeness        float64   `json:"completeness"`
	CompletenessPct     string    `json:"completeness_pct"`
	VisibleLinesTotal   int       `json:"visible_lines_total"`
	VisibleLinesMatched int       `json:"visible_lines_matched"`
	TokenSaving         float64   `json:"token_saving"`
	Err                 string    `json:"error,omitempty"`
}

// visibleTextScript collects visible-only text with the same hidden rules
// the walker applies.
const visibleTextScript = `() => {
	const SKIP = new Set([
		'SCRIPT','STYLE','NOSCRIPT','TEMPLATE','SVG','LINK','META',
		'HEAD','IFRAME','OBJECT','EMBED'
	]);

	function isHidden(el) {
		if (!el || el.nodeType !== 1) return false;
		if (el.hasAttribute('hidden')) return true;
		if ((el.getAttribute('aria-hidden') || '').toLowerCase() === 'true') return true;
		if (el.tagName === 'INPUT' && (el.getAttribute('type') || '').toLowerCase() === 'hidden') return true;
		if (el.tagName === 'DIALOG' && !el.hasAttribute('open')) return true;
		const cs = window.getComputedStyle(el);
		if (cs.display === 'none' || cs.visibility === 'hidden' || cs.opacity === '0') return true;
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 && rect.height === 0 && el.children.length === 0) return true;
		return false;
	}

	function collectText(el) {
		if (SKIP.has(el.tagName)) return '';
		if (isHidden(el)) return '';
		const parts = [];
		for (const child of el.childNodes) {
			if (child.nodeType === 3) {
				const t = child.textContent.trim();
				if (t) parts.push(t);
			} else if (child.nodeType === 1) {
				parts.push(collectText(child));
			}
		}
		return parts.filter(Boolean).join('\n');
	}

	return collectText(document.body);
}`

var reEditMarker = regexp.MustCompile(`\[edit\]`)

// Benchmark scores a single URL in an isolated browser so the main session
// is never disturbed.
func (s *Session) Benchmark(ctx context.Context, url string) (BenchmarkResult, error) {
	results, err := s.BenchmarkBatch(ctx, []string{url})
	if err != nil {
		return BenchmarkResult{}, err
	}
	if results[0].Err != "" {
		return results[0], fmt.Errorf("benchmark %s: %s", url, results[0].Err)
	}
	return results[0], nil
}

// BenchmarkBatch scores several URLs in one isolated browser session.
func (s *Session) BenchmarkBatch(ctx context.Context, urls []string) ([]BenchmarkResult, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("urls list is required")
	}
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	// Reuse the running playwright instance when the main browser is up.
	pw := s.pw
	ownPW := pw == nil
	if ownPW {
		var err error
		pw, err = playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("start playwright: %w", err)
		}
		defer func() { _ = pw.Stop() }()
	}
	cfg := s.cfg()
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     []string{"--disable-dev-shm-usage", "--no-sandbox"},
	})
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	defer func() { _ = browser.Close() }()
	bctx, err := browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}

	results := make([]BenchmarkResult, 0, len(urls))
	for _, url := range urls {
		res, err := s.benchmarkPage(page, url)
		if err != nil {
			results = append(results, BenchmarkResult{URL: url, Err: err.Error()})
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Session) benchmarkPage(page playwright.Page, url string) (BenchmarkResult, error) {
	cfg := s.cfg()
	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(cfg.BenchmarkTimeout)),
	}); err != nil {
		return BenchmarkResult{}, &NavigationError{URL: url, Err: err}
	}
	_ = page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(cfg.BenchmarkIdleWait)),
	})

	visibleVal, err := page.Evaluate(visibleTextScript)
	if err != nil {
		return BenchmarkResult{}, wrap(err)
	}
	visibleText, _ := visibleVal.(string)

	nodes, err := dom.Walk(page, cfg)
	if err != nil {
		return BenchmarkResult{}, err
	}
	htmlLen := 0
	if val, err := page.Evaluate("document.documentElement.outerHTML.length"); err == nil {
		switch v := val.(type) {
		case int:
			htmlLen = v
		case float64:
			htmlLen = int(v)
		}
	}
	filtered, _ := s.registry.Run(page.URL(), nodes)
	snap := dom.Assemble(nodes, filtered, htmlLen)

	matched, total := matchVisibleLines(visibleText, snap.Tree)
	completeness := math.Round(float64(matched)/float64(total)*10000) / 10000
	title, _ := page.Title()
	return BenchmarkResult{
		URL:                 page.URL(),
		Title:               title,
		Stats:               snap.Stats,
		Completeness:        completeness,
		CompletenessPct:     fmt.Sprintf("%.1f%%", completeness*100),
		VisibleLinesTotal:   total,
		VisibleLinesMatched: matched,
		TokenSaving:         math.Round((1-snap.Stats.CompressionRatio)*10000) / 10000,
	}, nil
}

// matchVisibleLines counts visible text lines whose head appears in the
// rendered tree, ignoring structural markers.
func matchVisibleLines(visibleText, tree string) (matched, total int) {
	cleanTree := strings.NewReplacer("⟨", "", "⟩", "").Replace(tree)
	cleanTree = reEditMarker.ReplaceAllString(cleanTree, "")
	cleanTree = strings.ToLower(cleanTree)

	var lines []string
	for _, ln := range strings.Split(visibleText, "\n") {
		ln = strings.TrimSpace(ln)
		if len(ln) >= 3 {
			lines = append(lines, ln)
		}
	}
	for _, line := range lines {
		clean := strings.TrimSpace(reEditMarker.ReplaceAllString(line, ""))
		if clean == "" {
			continue
		}
		probe := strings.ToLower(head(clean, 50))
		if strings.Contains(cleanTree, probe) {
			matched++
			continue
		}
		if len(clean) >= 10 && strings.Contains(cleanTree, strings.ToLower(head(clean, 25))) {
			matched++
		}
	}
	total = len(lines)
	if total == 0 {
		total = 1
	}
	return matched, total
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
