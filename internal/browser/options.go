// Package browser drives a Chrome tab through chromedp and exposes it as the
// browsing surface used by the pipeline and the comment collector.
package browser

import (
	"github.com/chromedp/chromedp"

	"github.com/ppiankov/feedharvest/internal/model"
)

// Options contains configuration for browser automation
type Options struct {
	Headless     bool
	ExecPath     string
	UserAgent    string
	ProxyServer  string
	WindowWidth  int
	WindowHeight int
}

// DefaultOptions returns standard browser options
func DefaultOptions() Options {
	return Options{
		Headless:     false,
		WindowWidth:  1366,
		WindowHeight: 900,
	}
}

// OptionsFromModel maps the run configuration onto browser options
func OptionsFromModel(c model.BrowserConfig) Options {
	opts := DefaultOptions()
	opts.Headless = c.Headless
	opts.ExecPath = c.ExecPath
	opts.UserAgent = c.UserAgent
	opts.ProxyServer = c.ProxyServer
	if c.WindowWidth > 0 {
		opts.WindowWidth = c.WindowWidth
	}
	if c.WindowHeight > 0 {
		opts.WindowHeight = c.WindowHeight
	}
	return opts
}

// BuildChromeOptions creates Chrome allocator options from Options
func BuildChromeOptions(opts Options) []chromedp.ExecAllocatorOption {
	chromeOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)

	if opts.Headless {
		chromeOpts = append(chromeOpts, chromedp.Flag("headless", "new"))
	} else {
		chromeOpts = append(chromeOpts, chromedp.Flag("headless", false))
	}

	if opts.ExecPath != "" {
		chromeOpts = append(chromeOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		chromeOpts = append(chromeOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ProxyServer != "" {
		chromeOpts = append(chromeOpts, chromedp.ProxyServer(opts.ProxyServer))
	}

	return chromeOpts
}
