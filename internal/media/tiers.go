package media

import "fmt"

// Tier is one encoded rendition: a resolution plus bitrate caps.
type Tier struct {
	Name         string
	Height       int
	Width        int
	VideoBitrate string
	AudioBitrate string
	MaxRate      string
	BufSize      string
}

// Resolution returns the tier's nominal WxH string for metadata.
func (t Tier) Resolution() string {
	return fmt.Sprintf("%dx%d", t.Width, t.Height)
}

// DefaultTiers is the tier table, highest first.
var DefaultTiers = []Tier{
	{Name: "1080p", Height: 1080, Width: 1920, VideoBitrate: "5000k", AudioBitrate: "192k", MaxRate: "5500k", BufSize: "7500k"},
	{Name: "720p", Height: 720, Width: 1280, VideoBitrate: "2800k", AudioBitrate: "128k", MaxRate: "3000k", BufSize: "4200k"},
	{Name: "480p", Height: 480, Width: 854, VideoBitrate: "1400k", AudioBitrate: "128k", MaxRate: "1600k", BufSize: "2100k"},
	{Name: "360p", Height: 360, Width: 640, VideoBitrate: "800k", AudioBitrate: "96k", MaxRate: "900k", BufSize: "1200k"},
}

// TierByName looks up a tier in the table.
func TierByName(name string) (Tier, bool) {
	for _, t := range DefaultTiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// TierNames returns the full table's names, highest first.
func TierNames() []string {
	names := make([]string, len(DefaultTiers))
	for i, t := range DefaultTiers {
		names[i] = t.Name
	}
	return names
}

// SelectTiers filters the requested tier names to defined tiers whose height
// does not exceed the source's, preserving request order. An empty result
// falls back to the lowest defined tier so at least one rendition is always
// produced.
func SelectTiers(requested []string, sourceHeight int) []Tier {
	if len(requested) == 0 {
		requested = TierNames()
	}

	var selected []Tier
	for _, name := range requested {
		t, ok := TierByName(name)
		if !ok {
			continue
		}
		if t.Height > sourceHeight {
			continue
		}
		selected = append(selected, t)
	}

	if len(selected) == 0 {
		selected = []Tier{DefaultTiers[len(DefaultTiers)-1]}
	}
	return selected
}
