package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/l1chan/cache"
	"github.com/sarchlab/l1chan/timing/sim"
)

var _ = Describe("Eviction sets", func() {
	var (
		geom cache.Geometry
		l1   *sim.Cache
		ctx  *cache.Context
		cal  cache.Calibration
	)

	BeforeEach(func() {
		// Small cache for testing: 4KB, 4-way, 64B lines, 16 sets.
		var err error
		geom, err = cache.DeriveGeometry(4*1024, 64, 4)
		Expect(err).NotTo(HaveOccurred())

		l1 = sim.NewCache(geom.SetCount, geom.Associativity, geom.LineSize, nil)

		ctx, err = cache.NewContext(geom, l1.Source())
		Expect(err).NotTo(HaveOccurred())

		cal, err = ctx.Calibrate()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(ctx.Close()).To(Succeed())
	})

	It("should size the probe buffer to one block per way of every set", func() {
		Expect(ctx.BufferLen()).To(Equal(geom.Size * geom.Associativity))
	})

	Describe("FillSet then ProbeSet", func() {
		It("should observe full occupancy on an idle set", func() {
			Expect(ctx.FillSet(3)).To(Succeed())

			occupancy, err := ctx.ProbeSet(3, cal)
			Expect(err).NotTo(HaveOccurred())
			Expect(occupancy).To(Equal(geom.Associativity))
		})

		It("should observe full occupancy on every set", func() {
			for set := 0; set < geom.SetCount; set++ {
				Expect(ctx.FillSet(set)).To(Succeed())

				occupancy, err := ctx.ProbeSet(set, cal)
				Expect(err).NotTo(HaveOccurred())
				Expect(occupancy).To(Equal(geom.Associativity))
			}
		})
	})

	Describe("FlushSet then ProbeSet", func() {
		It("should observe an empty set", func() {
			Expect(ctx.FillSet(7)).To(Succeed())
			Expect(ctx.FlushSet(7)).To(Succeed())

			occupancy, err := ctx.ProbeSet(7, cal)
			Expect(err).NotTo(HaveOccurred())
			Expect(occupancy).To(Equal(0))
		})
	})

	Describe("ProbeWay", func() {
		It("should report a present way as a hit", func() {
			Expect(ctx.FillSet(5)).To(Succeed())

			hit, err := ctx.ProbeWay(5, geom.Associativity-1, cal)
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeTrue())
		})

		It("should report a flushed way as a miss", func() {
			Expect(ctx.FillSet(5)).To(Succeed())
			Expect(ctx.FlushSet(5)).To(Succeed())

			hit, err := ctx.ProbeWay(5, 0, cal)
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeFalse())
		})

		It("should reject an out-of-range way", func() {
			_, err := ctx.ProbeWay(5, geom.Associativity, cal)
			Expect(err).To(MatchError(cache.ErrSetIndex))
		})
	})

	Describe("set index validation", func() {
		It("should reject set_count for all three operations", func() {
			Expect(ctx.FillSet(geom.SetCount)).To(MatchError(cache.ErrSetIndex))
			Expect(ctx.FlushSet(geom.SetCount)).To(MatchError(cache.ErrSetIndex))

			occupancy, err := ctx.ProbeSet(geom.SetCount, cal)
			Expect(err).To(MatchError(cache.ErrSetIndex))
			Expect(occupancy).To(Equal(-1))
		})

		It("should reject negative set indices", func() {
			Expect(ctx.FillSet(-1)).To(MatchError(cache.ErrSetIndex))
			Expect(ctx.FlushSet(-1)).To(MatchError(cache.ErrSetIndex))

			_, err := ctx.ProbeSet(-1, cal)
			Expect(err).To(MatchError(cache.ErrSetIndex))
		})
	})
})
