//go:build !linux && !darwin && !windows

package collector

func newPlatformCollector(Options) (Collector, error) {
	return nil, ErrUnsupportedPlatform
}
