package tessera

import (
	"sort"

	"github.com/tanema/gween/ease"
)

// easings maps config and CLI names to gween easing functions.
var easings = map[string]ease.TweenFunc{
	"linear": ease.Linear,

	"in-quad": ease.InQuad, "out-quad": ease.OutQuad, "in-out-quad": ease.InOutQuad,
	"in-cubic": ease.InCubic, "out-cubic": ease.OutCubic, "in-out-cubic": ease.InOutCubic,
	"in-quart": ease.InQuart, "out-quart": ease.OutQuart, "in-out-quart": ease.InOutQuart,
	"in-quint": ease.InQuint, "out-quint": ease.OutQuint, "in-out-quint": ease.InOutQuint,
	"in-sine": ease.InSine, "out-sine": ease.OutSine, "in-out-sine": ease.InOutSine,
	"in-expo": ease.InExpo, "out-expo": ease.OutExpo, "in-out-expo": ease.InOutExpo,
	"in-circ": ease.InCirc, "out-circ": ease.OutCirc, "in-out-circ": ease.InOutCirc,
	"in-elastic": ease.InElastic, "out-elastic": ease.OutElastic, "in-out-elastic": ease.InOutElastic,
	"in-back": ease.InBack, "out-back": ease.OutBack, "in-out-back": ease.InOutBack,
	"in-bounce": ease.InBounce, "out-bounce": ease.OutBounce, "in-out-bounce": ease.InOutBounce,
}

// EasingByName returns the easing registered under name, such as
// "in-out-cubic". The empty name is linear.
func EasingByName(name string) (ease.TweenFunc, bool) {
	if name == "" {
		return ease.Linear, true
	}
	fn, ok := easings[name]
	return fn, ok
}

// EasingNames lists the registered easing names in sorted order.
func EasingNames() []string {
	names := make([]string, 0, len(easings))
	for n := range easings {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// evalEase maps linear progress p in [0, 1] through fn. A nil fn is
// linear. Overshooting easings (back, elastic) may leave [0, 1].
func evalEase(fn ease.TweenFunc, p float64) float64 {
	if fn == nil {
		return p
	}
	return float64(fn(float32(p), 0, 1, 1))
}
