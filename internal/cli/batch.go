package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/feedharvest/internal/logger"
)

var (
	outputDir    string
	outputFormat string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Harvest several profiles listed in a file",
	Long: `Batch reads profile URLs from a file (one per line, '#' starts a
comment) and harvests them one after another in a single browser session.
Each profile is written to its own file in --output-dir.

Example:
  feedharvest batch profiles.txt
  feedharvest batch profiles.txt --output-dir ./harvest --format xlsx`,
	Args:    cobra.ExactArgs(1),
	PreRunE: bindBatchFlags,
	RunE:    runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addRunFlags(batchCmd.Flags())
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./feedharvest-output", "directory for per-profile output files")
	batchCmd.Flags().StringVar(&outputFormat, "format", "csv", "output format (csv, xlsx, db)")
}

func bindBatchFlags(cmd *cobra.Command, args []string) error {
	return bindFlags(viper.GetViper(), cmd.Flags(), harvestFlagKeys)
}

func runBatch(cmd *cobra.Command, args []string) error {
	profiles, err := ReadURLsFromFile(args[0])
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		return fmt.Errorf("no profile URLs in %s", args[0])
	}

	ext, err := formatExtension(outputFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openSession(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	failures := 0
	for i, profile := range profiles {
		outPath := filepath.Join(outputDir, profileSlug(profile)+ext)
		log.Info("harvesting profile",
			logger.Int("index", i+1),
			logger.Int("total", len(profiles)),
			logger.String("profile", profile),
		)

		res, err := harvestProfile(ctx, cfg, b, log, profile, outPath)
		if res != nil {
			printSummary(cmd, res, outPath)
		}
		if err != nil {
			if ctx.Err() != nil || cfg.Navigation.FailFast {
				return err
			}
			failures++
			log.Error("profile failed", logger.String("profile", profile), logger.Error(err))
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "  Profiles: %d, failed: %d, output: %s\n\n", len(profiles), failures, outputDir)
	if failures == len(profiles) {
		return errors.New("every profile failed")
	}
	return nil
}

// ReadURLsFromFile reads URLs from a file (one per line)
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return urls, nil
}

func formatExtension(format string) (string, error) {
	switch strings.ToLower(format) {
	case "csv", "":
		return ".csv", nil
	case "xlsx":
		return ".xlsx", nil
	case "db", "sqlite":
		return ".db", nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

// profileSlug derives a file name from a profile URL
func profileSlug(rawURL string) string {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		name = u.Host + "-" + strings.Trim(u.Path, "/")
	}
	return sanitizeFilename(name)
}

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
		"@", "",
	)
	s = strings.Trim(replacer.Replace(s), "-_.")

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "profile"
	}

	return s
}
