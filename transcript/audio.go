package transcript

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// audioEncoder is the slice of the ffmpeg runner this package needs.
type audioEncoder interface {
	ExtractAudio(ctx context.Context, video, out string, bitrateKbps int) error
}

// ExtractAudioAdaptive re-encodes the video's audio, stepping down through
// the bitrate tiers until the output fits under maxBytes. Returns the
// bitrate that fit.
func ExtractAudioAdaptive(ctx context.Context, enc audioEncoder, video, out string, bitrates []int, maxBytes int64) (int, error) {
	if len(bitrates) == 0 {
		return 0, fmt.Errorf("no audio bitrate tiers configured")
	}

	for _, kbps := range bitrates {
		if err := enc.ExtractAudio(ctx, video, out, kbps); err != nil {
			return 0, fmt.Errorf("extract audio at %dk: %w", kbps, err)
		}
		info, err := os.Stat(out)
		if err != nil {
			return 0, err
		}
		if info.Size() <= maxBytes {
			return kbps, nil
		}
		log.Debug("audio too large, stepping down", "bitrate_kbps", kbps, "size", info.Size())
	}

	os.Remove(out)
	return 0, fmt.Errorf("audio exceeds %d bytes even at %dk", maxBytes, bitrates[len(bitrates)-1])
}
