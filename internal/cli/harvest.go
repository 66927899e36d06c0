package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ppiankov/feedharvest/internal/browser"
	"github.com/ppiankov/feedharvest/internal/logger"
	"github.com/ppiankov/feedharvest/internal/model"
	"github.com/ppiankov/feedharvest/internal/output"
	"github.com/ppiankov/feedharvest/internal/pipeline"
	"github.com/ppiankov/feedharvest/internal/session"
)

var noCache bool

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest <profile-url>",
	Short: "Harvest metrics and comments for the items of one profile",
	Long: `Harvest opens a profile page with the saved browser session and, for
each of the first --limit items:
- reads the like and share counts (empty when not shown)
- opens the comment panel and scrolls it until --comments distinct
  comments are collected or --attempts passes have run
- writes one row per item to --out

Example:
  feedharvest harvest https://www.tiktok.com/@shop --cookies cookies.json
  feedharvest harvest https://www.tiktok.com/@shop --limit 5 --out items.xlsx
  feedharvest harvest https://www.tiktok.com/@shop --headless --out items.db`,
	Args:    cobra.ExactArgs(1),
	PreRunE: bindHarvestFlags,
	RunE:    runHarvest,
}

// harvestFlagKeys maps flags to config keys
var harvestFlagKeys = map[string]string{
	"cookies":   "session.cookies_file",
	"limit":     "target.item_limit",
	"out":       "output.path",
	"comments":  "comments.cap",
	"attempts":  "comments.max_attempts",
	"headless":  "browser.headless",
	"fail-fast": "navigation.fail_fast",
	"robots":    "robots.enabled",
	"timeout":   "navigation.timeout",
	"chrome":    "browser.exec_path",
	"proxy":     "browser.proxy_server",
}

func init() {
	rootCmd.AddCommand(harvestCmd)
	addRunFlags(harvestCmd.Flags())
	harvestCmd.Flags().String("out", model.DefaultConfig().Output.Path, "output file (.csv, .xlsx, .db or .sqlite)")
}

// addRunFlags registers the flags shared by harvest and batch
func addRunFlags(fs *pflag.FlagSet) {
	def := model.DefaultConfig()

	fs.String("cookies", def.Session.CookiesFile, "cookie store exported from a logged-in browser")
	fs.Int("limit", def.Target.ItemLimit, "maximum number of items per profile")
	fs.Int("comments", def.Comments.Cap, "maximum distinct comments per item")
	fs.Int("attempts", def.Comments.MaxAttempts, "maximum comment extraction passes per item")
	fs.Bool("headless", def.Browser.Headless, "run Chrome without a window")
	fs.Bool("fail-fast", def.Navigation.FailFast, "abort the run when an item cannot be loaded")
	fs.Bool("robots", def.Robots.Enabled, "skip items disallowed by robots.txt")
	fs.Duration("timeout", def.Navigation.Timeout, "page load timeout")
	fs.String("chrome", "", "Chrome executable (default: autodetect)")
	fs.String("proxy", "", "proxy server for the browser and robots.txt requests")
	fs.BoolVar(&noCache, "no-cache", false, "ignore records cached by previous runs")
}

func bindHarvestFlags(cmd *cobra.Command, args []string) error {
	return bindFlags(viper.GetViper(), cmd.Flags(), harvestFlagKeys)
}

// bindFlags binds the command's flags to config keys. Flags are bound per
// command so that harvest and batch do not steal each other's bindings.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	cfg.Target.ProfileURL = args[0]

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openSession(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := harvestProfile(ctx, cfg, b, log, cfg.Target.ProfileURL, cfg.Output.Path)
	if res != nil {
		printSummary(cmd, res, cfg.Output.Path)
	}
	return err
}

// openSession loads the cookie store, starts Chrome and installs the cookies
func openSession(ctx context.Context, cfg *model.Config, log logger.Logger) (*browser.Browser, error) {
	creds, err := session.Load(cfg.Session.CookiesFile, log)
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}

	b, err := browser.New(ctx, browser.OptionsFromModel(cfg.Browser), log.With(logger.String("component", "browser")))
	if err != nil {
		return nil, err
	}

	if err := b.InjectCredentials(ctx, creds); err != nil {
		b.Close()
		return nil, err
	}

	log.Info("browser session ready", logger.Int("cookies", len(creds)), logger.Bool("headless", cfg.Browser.Headless))
	return b, nil
}

// harvestProfile runs the pipeline for one profile and writes whatever was
// collected, even when the run stopped early
func harvestProfile(ctx context.Context, cfg *model.Config, s pipeline.Surface, log logger.Logger, profileURL, outPath string) (*pipeline.RunResult, error) {
	p, err := pipeline.NewPipeline(cfg, s, log)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, runErr := p.Run(ctx, profileURL)

	if len(res.Records) > 0 || runErr == nil {
		if err := output.Write(outPath, res.Records); err != nil {
			return res, errors.Join(runErr, err)
		}
		log.Info("records written",
			logger.String("path", outPath),
			logger.Int("records", len(res.Records)),
			logger.Duration("elapsed", time.Since(start)),
		)
	}

	if runErr != nil {
		return res, fmt.Errorf("harvest %s: %w", profileURL, runErr)
	}
	return res, nil
}

func printSummary(cmd *cobra.Command, res *pipeline.RunResult, outPath string) {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Profile:    %s\n", res.ProfileURL)
	fmt.Fprintf(w, "  Items:      %d\n", len(res.Records))
	fmt.Fprintf(w, "  Succeeded:  %d (%d from cache)\n", res.Succeeded, res.Cached)
	fmt.Fprintf(w, "  Failed:     %d\n", res.Failed)
	fmt.Fprintf(w, "  Skipped:    %d\n", res.Skipped)
	fmt.Fprintf(w, "  Output:     %s\n", outPath)
	fmt.Fprintf(w, "\n")
}
