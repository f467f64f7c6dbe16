package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/takastudio/taka-agent/internal/timeline"
)

// FromTimeline flattens the visual media clips of a timeline into EDL
// events, ordered by record position. Audio clips and placeholders have no
// EDL representation.
func FromTimeline(tl *timeline.Timeline) []ResolvedClip {
	var out []ResolvedClip
	for _, track := range tl.Tracks {
		if !track.IsMedia() || track.Type == timeline.TrackAudio {
			continue
		}
		for _, c := range tl.Clips(track.ID) {
			if c.SourcePath == "" {
				continue
			}
			speed := c.Speed
			if speed <= 0 {
				speed = 1
			}
			srcOut := c.InPointMS + int64(math.Round(float64(c.DurationMS)*speed))
			if c.Freeze {
				srcOut = c.InPointMS
			}
			name := c.Name
			if name == "" {
				name = SanitizeName(c.SourcePath, 64)
			}
			out = append(out, ResolvedClip{
				ClipName:    name,
				MediaPath:   c.SourcePath,
				SrcInMs:     c.InPointMS,
				SrcOutMs:    srcOut,
				RecordInMs:  c.StartMS,
				RecordOutMs: c.EndMS(),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordInMs < out[j].RecordInMs })
	return out
}

func GenerateEDL(clips []ResolvedClip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	for i, clip := range clips {
		srcIn := msToTimecode(clip.SrcInMs, fps)
		srcOut := msToTimecode(clip.SrcOutMs, fps)
		recIn := msToTimecode(clip.RecordInMs, fps)
		recOut := msToTimecode(clip.RecordOutMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.ClipName),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath),
		)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func msToTimecode(ms int64, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
