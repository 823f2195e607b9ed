package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/kotrzina/flower-cart/pkg/config"
	"github.com/kotrzina/flower-cart/pkg/hook"
	"github.com/kotrzina/flower-cart/pkg/prometheus"
	"github.com/kotrzina/flower-cart/pkg/shop"
)

type Options struct {
	Headless      bool
	ScreenshotDir string // empty disables screenshots

	Discord *hook.Discord
	Monitor *prometheus.Monitor
	Logger  *logrus.Logger
}

// Session is a running Chromium with a single page pointed at the shop.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext

	Page      playwright.Page
	Recorder  *ResponseRecorder
	profile   *config.Profile
	extractor *shop.Extractor
	options   Options
}

// Launch starts Playwright and opens a page. Browsers have to be installed beforehand
// (go run github.com/playwright-community/playwright-go/cmd/playwright install chromium).
func Launch(profile *config.Profile, options Options) (*Session, error) {
	if options.Logger == nil {
		options.Logger = logrus.New()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(options.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		BaseURL: playwright.String(profile.BaseURL),
		Locale:  playwright.String("es-CO"),
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}

	page, err := browserContext.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("could not open page: %w", err)
	}
	page.SetDefaultTimeout(milliseconds(profile.Timeouts.Medium))
	page.SetDefaultNavigationTimeout(milliseconds(profile.Timeouts.Long))

	recorder := NewResponseRecorder(profile.AddToCartMarker)
	recorder.Attach(page)

	return &Session{
		pw:      pw,
		browser: browser,
		context: browserContext,

		Page:      page,
		Recorder:  recorder,
		profile:   profile,
		extractor: shop.NewExtractor(profile),
		options:   options,
	}, nil
}

func (s *Session) Close() error {
	if err := s.context.Close(); err != nil {
		s.options.Logger.Warnf("could not close browser context: %v", err)
	}
	if err := s.browser.Close(); err != nil {
		s.options.Logger.Warnf("could not close browser: %v", err)
	}
	return s.pw.Stop()
}

// Screenshot stores a full page screenshot and returns its path.
func (s *Session) Screenshot(name string) (string, error) {
	if s.options.ScreenshotDir == "" {
		return "", nil
	}

	if err := os.MkdirAll(s.options.ScreenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create screenshot directory: %w", err)
	}

	path := filepath.Join(s.options.ScreenshotDir, screenshotName(name, time.Now()))
	_, err := s.Page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("could not take screenshot: %w", err)
	}

	return path, nil
}

func (s *Session) goTo(url string) error {
	_, err := s.Page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("could not open %s: %w", url, err)
	}
	return nil
}

func (s *Session) waitForLoad() error {
	return s.Page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(milliseconds(s.profile.Timeouts.Long)),
	})
}

// content parses the current page for the extractor.
func (s *Session) content() (*html.Node, error) {
	body, err := s.Page.Content()
	if err != nil {
		return nil, fmt.Errorf("could not read page content: %w", err)
	}

	return shop.ParseHTML(body)
}

// find returns the first selector of the chain present on the page.
// Only the first expression is waited for, the rest are checked immediately.
func (s *Session) find(chain []string, timeout time.Duration) (playwright.Locator, error) {
	for i, expr := range chain {
		locator := s.Page.Locator(xpath(expr))
		if i == 0 {
			err := locator.First().WaitFor(playwright.LocatorWaitForOptions{
				State:   playwright.WaitForSelectorStateVisible,
				Timeout: playwright.Float(milliseconds(timeout)),
			})
			if err == nil {
				return locator, nil
			}
		}

		count, err := locator.Count()
		if err != nil {
			return nil, fmt.Errorf("could not count %s: %w", expr, err)
		}
		if count > 0 {
			return locator, nil
		}
	}

	return nil, fmt.Errorf("no element matches %s", strings.Join(chain, " | "))
}

func xpath(expr string) string {
	if strings.HasPrefix(expr, "xpath=") {
		return expr
	}
	return "xpath=" + expr
}

func screenshotName(name string, at time.Time) string {
	slug := shop.Slug(name)
	if slug == "" {
		slug = "page"
	}
	return fmt.Sprintf("%s-%s.png", slug, at.Format("20060102-150405"))
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
