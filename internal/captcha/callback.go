package captcha

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/errors"
)

// CallbackAcquirer opens the captcha page in the user's browser and waits
// for the OS URL handler (the hidden captcha-callback command) to drop the
// token into File.
type CallbackAcquirer struct {
	URL  string
	File string
	// Open launches URL in the default browser.
	Open func(ctx context.Context, url string) error
}

// Acquire implements Acquirer.
func (c *CallbackAcquirer) Acquire(ctx context.Context) (account.CaptchaToken, error) {
	dir := filepath.Dir(c.File)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", unavailable(fmt.Errorf("failed to create callback directory: %w", err))
	}
	if err := os.Remove(c.File); err != nil && !os.IsNotExist(err) {
		return "", unavailable(fmt.Errorf("failed to clear stale callback file: %w", err))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", unavailable(fmt.Errorf("failed to create file watcher: %w", err))
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: the token file is created by rename.
	if err := watcher.Add(dir); err != nil {
		return "", unavailable(fmt.Errorf("failed to watch %s: %w", dir, err))
	}

	if c.Open != nil {
		if err := c.Open(ctx, c.URL); err != nil {
			return "", unavailable(fmt.Errorf("failed to open captcha page: %w", err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return "", unavailable(errors.New("file watcher closed"))
			}
			if filepath.Clean(event.Name) != filepath.Clean(c.File) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if tok, ok := c.consume(); ok {
				return tok, nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return "", unavailable(errors.New("file watcher closed"))
			}
			return "", unavailable(fmt.Errorf("file watcher: %w", err))
		}
	}
}

// consume reads and removes the callback file. A partially written or
// malformed file is left for the next event.
func (c *CallbackAcquirer) consume() (account.CaptchaToken, bool) {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return "", false
	}
	tok, ok := ExtractToken(string(data))
	if !ok {
		return "", false
	}
	_ = os.Remove(c.File)
	return tok, true
}

// WriteCallback validates raw as a captcha token and atomically writes it
// to path for a waiting CallbackAcquirer.
func WriteCallback(path, raw string) error {
	tok, err := account.ParseCaptchaToken(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create callback directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".captcha-*")
	if err != nil {
		return fmt.Errorf("failed to create callback file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(tok.String() + "\n"); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write callback file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close callback file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to publish callback file: %w", err)
	}
	return nil
}
