package sim_test

import (
	"unsafe"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/l1chan/cache"
	"github.com/sarchlab/l1chan/timing"
	"github.com/sarchlab/l1chan/timing/sim"
)

var _ = Describe("Simulated cache", func() {
	var (
		geom cache.Geometry
		l1   *sim.Cache
	)

	BeforeEach(func() {
		var err error
		geom, err = cache.DeriveGeometry(4*1024, 64, 4)
		Expect(err).NotTo(HaveOccurred())

		l1 = sim.NewCache(geom.SetCount, geom.Associativity, geom.LineSize, nil)
	})

	Describe("Source", func() {
		var buf [256]byte

		It("should miss cold and hit after a touch", func() {
			src := l1.Source()
			ptr := unsafe.Pointer(&buf[0])

			Expect(src.TimedRead(ptr)).To(Equal(uint64(200)))
			Expect(src.TimedRead(ptr)).To(Equal(uint64(40)))
		})

		It("should miss again after a flush", func() {
			src := l1.Source()
			ptr := unsafe.Pointer(&buf[0])

			src.Touch(ptr)
			src.Flush(ptr)
			Expect(src.TimedRead(ptr)).To(Equal(uint64(200)))
		})

		It("should treat one line per block", func() {
			src := l1.Source()

			src.Touch(unsafe.Pointer(&buf[0]))
			// A flush through another address of a different block
			// must not disturb the first line.
			src.Flush(unsafe.Pointer(&buf[128]))
			Expect(src.TimedRead(unsafe.Pointer(&buf[0]))).
				To(Equal(uint64(40)))
		})
	})

	Describe("cross-actor eviction", func() {
		var (
			ctxA *cache.Context
			ctxB *cache.Context
			cal  cache.Calibration
		)

		BeforeEach(func() {
			var err error
			ctxA, err = cache.NewContext(geom, l1.Source())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(ctxA.Close)

			ctxB, err = cache.NewContext(geom, l1.Source())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(ctxB.Close)

			cal = cache.Calibration{
				Hit:       timing.DefaultSimConfig().HitLatency,
				Miss:      timing.DefaultSimConfig().MissLatency,
				Threshold: 120,
			}
		})

		It("should let one actor evict another actor's set", func() {
			const set = 3

			Expect(ctxA.FillSet(set)).To(Succeed())

			occupancy, err := ctxA.ProbeSet(set, cal)
			Expect(err).NotTo(HaveOccurred())
			Expect(occupancy).To(Equal(geom.Associativity))

			// B takes the set away; A's next probe sees the loss.
			Expect(ctxB.FillSet(set)).To(Succeed())

			occupancy, err = ctxA.ProbeSet(set, cal)
			Expect(err).NotTo(HaveOccurred())
			Expect(occupancy).To(BeNumerically("<", geom.Associativity))
			Expect(occupancy).To(Equal(0))
		})

		It("should leave other sets untouched", func() {
			Expect(ctxA.FillSet(1)).To(Succeed())
			Expect(ctxB.FillSet(2)).To(Succeed())

			occupancy, err := ctxA.ProbeSet(1, cal)
			Expect(err).NotTo(HaveOccurred())
			Expect(occupancy).To(Equal(geom.Associativity))
		})

		It("should not let a flush by one actor evict the other", func() {
			const set = 9

			Expect(ctxA.FillSet(set)).To(Succeed())
			Expect(ctxB.FlushSet(set)).To(Succeed())

			occupancy, err := ctxA.ProbeSet(set, cal)
			Expect(err).NotTo(HaveOccurred())
			Expect(occupancy).To(Equal(geom.Associativity))
		})
	})
})
