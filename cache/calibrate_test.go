package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/l1chan/cache"
	"github.com/sarchlab/l1chan/timing"
	"github.com/sarchlab/l1chan/timing/sim"
)

var _ = Describe("Calibration", func() {
	var geom cache.Geometry

	BeforeEach(func() {
		var err error
		geom, err = cache.DeriveGeometry(4*1024, 64, 4)
		Expect(err).NotTo(HaveOccurred())
	})

	newContext := func(config *timing.SimConfig) *cache.Context {
		l1 := sim.NewCache(geom.SetCount, geom.Associativity, geom.LineSize, config)
		ctx, err := cache.NewContext(geom, l1.Source())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(ctx.Close)
		return ctx
	}

	It("should place the threshold between hit and miss latency", func() {
		ctx := newContext(nil)

		cal, err := ctx.Calibrate()
		Expect(err).NotTo(HaveOccurred())
		Expect(cal.Hit).To(BeNumerically("<", cal.Threshold))
		Expect(cal.Threshold).To(BeNumerically("<", cal.Miss))
	})

	It("should survive measurement noise", func() {
		// Hit ~ N(40, 5), miss ~ N(200, 20).
		ctx := newContext(&timing.SimConfig{
			HitLatency:     40,
			MissLatency:    200,
			HitNoiseSigma:  5,
			MissNoiseSigma: 20,
			Seed:           42,
		})

		cal, err := ctx.Calibrate()
		Expect(err).NotTo(HaveOccurred())
		Expect(cal.Hit).To(BeNumerically("<", cal.Threshold))
		Expect(cal.Threshold).To(BeNumerically("<", cal.Miss))

		// Means over 1024 trials stay near the distribution means.
		Expect(cal.Hit).To(BeNumerically("~", 40, 5))
		Expect(cal.Miss).To(BeNumerically("~", 200, 20))
	})

	It("should classify latencies against the threshold", func() {
		cal := cache.Calibration{Hit: 40, Miss: 200, Threshold: 120}
		Expect(cal.IsHit(40)).To(BeTrue())
		Expect(cal.IsHit(120)).To(BeTrue())
		Expect(cal.IsHit(121)).To(BeFalse())
		Expect(cal.IsHit(200)).To(BeFalse())
	})

	It("should fail when hits are not faster than misses", func() {
		ctx := newContext(&timing.SimConfig{
			HitLatency:  200,
			MissLatency: 40,
			Seed:        1,
		})

		_, err := ctx.Calibrate()
		Expect(err).To(MatchError(cache.ErrCalibration))
	})
})
