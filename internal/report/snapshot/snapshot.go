// Package snapshot captures rendered report pages as PNG images with a headless browser.
package snapshot

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	profilererrors "github.com/tyemirov/stepprof/internal/errors"
)

const (
	// DefaultTimeout bounds one capture including browser start-up.
	DefaultTimeout = 60 * time.Second
	// DefaultWidth is the viewport width used for captures.
	DefaultWidth = 1600
	// DefaultHeight is the initial viewport height; full-page captures extend past it.
	DefaultHeight = 900

	pngQualityConstant              = 100
	readySelectorConstant           = "body"
	snapshotFilePermissionsConstant = 0o644
	addressMissingMessageConstant   = "snapshot address is required"
	outputMissingMessageConstant    = "snapshot output path is required"
)

var (
	// ErrAddressMissing indicates a capture was requested without a page address.
	ErrAddressMissing = errors.New(addressMissingMessageConstant)
	// ErrOutputMissing indicates a capture was requested without an output path.
	ErrOutputMissing = errors.New(outputMissingMessageConstant)
)

// Options tunes the browser used for captures.
type Options struct {
	Width          int
	Height         int
	Timeout        time.Duration
	ExecutablePath string
}

// Capturer renders pages in headless Chrome.
type Capturer struct {
	options Options
}

// NewCapturer applies defaults to the options.
func NewCapturer(options Options) *Capturer {
	if options.Width <= 0 {
		options.Width = DefaultWidth
	}
	if options.Height <= 0 {
		options.Height = DefaultHeight
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	return &Capturer{options: options}
}

// Capture loads address and returns a full-page PNG screenshot.
func (capturer *Capturer) Capture(captureContext context.Context, address string) ([]byte, error) {
	trimmedAddress := strings.TrimSpace(address)
	if len(trimmedAddress) == 0 {
		return nil, ErrAddressMissing
	}

	allocatorOptions := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocatorOptions = append(allocatorOptions, chromedp.WindowSize(capturer.options.Width, capturer.options.Height))
	if len(capturer.options.ExecutablePath) > 0 {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(capturer.options.ExecutablePath))
	}

	timeoutContext, cancelTimeout := context.WithTimeout(captureContext, capturer.options.Timeout)
	defer cancelTimeout()
	allocatorContext, cancelAllocator := chromedp.NewExecAllocator(timeoutContext, allocatorOptions...)
	defer cancelAllocator()
	browserContext, cancelBrowser := chromedp.NewContext(allocatorContext)
	defer cancelBrowser()

	var image []byte
	runError := chromedp.Run(
		browserContext,
		chromedp.EmulateViewport(int64(capturer.options.Width), int64(capturer.options.Height)),
		chromedp.Navigate(trimmedAddress),
		chromedp.WaitReady(readySelectorConstant, chromedp.ByQuery),
		chromedp.FullScreenshot(&image, pngQualityConstant),
	)
	if runError != nil {
		return nil, profilererrors.Wrap(profilererrors.OperationReportRender, trimmedAddress, profilererrors.ErrReportRenderFailed, runError)
	}
	return image, nil
}

// CaptureFile writes the screenshot of address to outputPath.
func (capturer *Capturer) CaptureFile(captureContext context.Context, address string, outputPath string) error {
	if len(strings.TrimSpace(outputPath)) == 0 {
		return ErrOutputMissing
	}
	image, captureError := capturer.Capture(captureContext, address)
	if captureError != nil {
		return captureError
	}
	if writeError := os.WriteFile(outputPath, image, snapshotFilePermissionsConstant); writeError != nil {
		return profilererrors.Wrap(profilererrors.OperationReportRender, outputPath, profilererrors.ErrReportRenderFailed, writeError)
	}
	return nil
}
