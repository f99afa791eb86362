package utils

import (
	"os"

	"github.com/schollz/progressbar/v3"
)

// DescWriting labels the bar shown while tree files are written
const DescWriting = "Writing"

// NewProgressBar creates a consistently styled progress bar.
// A total of zero or less switches to spinner mode.
func NewProgressBar(total int, description string) *progressbar.ProgressBar {
	opts := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	}

	if total <= 0 {
		total = -1
		opts = append(opts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		)
	} else {
		opts = append(opts,
			progressbar.OptionShowIts(),
		)
	}

	return progressbar.NewOptions(total, opts...)
}
