package dedupe

// Option configures a Deduper.
type Option func(*windowDeduper)

// WithMaxSize sets how many recent ids are remembered.
// A value <= 0 remembers every id.
func WithMaxSize(maxSize int) Option {
	return func(d *windowDeduper) {
		d.window = maxSize
	}
}
