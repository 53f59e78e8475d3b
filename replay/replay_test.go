package replay

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sirupsen/logrus"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/trace"
)

func load(addr uint64) trace.Record {
	return trace.Record{Op: trace.Load, Address: addr, Size: 1}
}

func store(addr uint64) trace.Record {
	return trace.Record{Op: trace.Store, Address: addr, Size: 1}
}

func modify(addr uint64) trace.Record {
	return trace.Record{Op: trace.Modify, Address: addr, Size: 1}
}

func instruction(addr uint64) trace.Record {
	return trace.Record{Op: trace.Instruction, Address: addr, Size: 4}
}

func randomTrace(seed int64, n int, addrSpace uint64) []trace.Record {
	rng := rand.New(rand.NewSource(seed))
	ops := []trace.Op{trace.Instruction, trace.Load, trace.Store, trace.Modify}

	records := make([]trace.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, trace.Record{
			Op:      ops[rng.Intn(len(ops))],
			Address: uint64(rng.Int63n(int64(addrSpace))),
			Size:    uint64(1 << rng.Intn(4)),
		})
	}
	return records
}

func dataAccesses(records []trace.Record) uint64 {
	var n uint64
	for _, rec := range records {
		switch rec.Op {
		case trace.Load, trace.Store:
			n++
		case trace.Modify:
			n += 2
		}
	}
	return n
}

func mustRun(config cache.Config, records ...trace.Record) Statistics {
	stats, err := Run(config, trace.NewSliceSource(records...))
	Expect(err).NotTo(HaveOccurred())
	return stats
}

var _ = Describe("Statistics", func() {
	It("should fold access results", func() {
		var s Statistics
		s.Add(cache.AccessResult{Hit: true})
		s.Add(cache.AccessResult{})
		s.Add(cache.AccessResult{Evicted: true})

		Expect(s).To(Equal(Statistics{Hits: 1, Misses: 2, Evictions: 1}))
		Expect(s.Accesses()).To(Equal(uint64(3)))
		Expect(s.HitRate()).To(BeNumerically("~", 1.0/3.0, 1e-9))
	})

	It("should render the canonical summary", func() {
		s := Statistics{Hits: 4, Misses: 5, Evictions: 3}
		Expect(s.String()).To(Equal("hits:4 misses:5 evictions:3"))
	})

	It("should report a zero hit rate without accesses", func() {
		Expect(Statistics{}.HitRate()).To(BeZero())
	})
})

var _ = Describe("Replayer", func() {
	Describe("Scenarios", func() {
		It("should place addresses 0 and 2 in different sets", func() {
			stats := mustRun(cache.Config{SetBits: 1, Associativity: 1, BlockBits: 1},
				load(0), load(2), load(0))

			Expect(stats).To(Equal(Statistics{Hits: 1, Misses: 2, Evictions: 0}))
		})

		It("should evict on every alternating tag in a single line cache", func() {
			stats := mustRun(cache.Config{SetBits: 0, Associativity: 1, BlockBits: 0},
				load(0), load(1), load(0))

			Expect(stats).To(Equal(Statistics{Hits: 0, Misses: 3, Evictions: 2}))
		})

		It("should count modify as a miss then a guaranteed hit", func() {
			stats := mustRun(cache.Config{SetBits: 0, Associativity: 1, BlockBits: 0},
				modify(5))

			Expect(stats).To(Equal(Statistics{Hits: 1, Misses: 1, Evictions: 0}))
		})

		It("should count modify of a resident block as two hits", func() {
			stats := mustRun(cache.Config{SetBits: 0, Associativity: 1, BlockBits: 0},
				load(5), modify(5))

			Expect(stats).To(Equal(Statistics{Hits: 2, Misses: 1, Evictions: 0}))
		})

		It("should ignore instruction records", func() {
			for _, config := range []cache.Config{
				{SetBits: 0, Associativity: 1, BlockBits: 0},
				{SetBits: 4, Associativity: 2, BlockBits: 4},
			} {
				stats := mustRun(config, instruction(0), instruction(0), instruction(0))
				Expect(stats).To(Equal(Statistics{}))
			}
		})

		It("should replay a small mixed trace", func() {
			stats := mustRun(cache.Config{SetBits: 4, Associativity: 1, BlockBits: 4},
				load(0x10), modify(0x20), load(0x22), store(0x18),
				load(0x110), load(0x210), modify(0x12))

			Expect(stats).To(Equal(Statistics{Hits: 4, Misses: 5, Evictions: 3}))
		})
	})

	Describe("Properties", func() {
		configs := []cache.Config{
			{SetBits: 0, Associativity: 1, BlockBits: 0},
			{SetBits: 1, Associativity: 1, BlockBits: 1},
			{SetBits: 2, Associativity: 2, BlockBits: 3},
			{SetBits: 4, Associativity: 4, BlockBits: 2},
			{SetBits: 3, Associativity: 8, BlockBits: 5},
		}

		It("should count every data access exactly once", func() {
			for i, config := range configs {
				records := randomTrace(int64(i), 2000, 1<<12)
				stats := mustRun(config, records...)

				Expect(stats.Accesses()).To(Equal(dataAccesses(records)), config.String())
				Expect(stats.Evictions).To(BeNumerically("<=", stats.Misses), config.String())
			}
		})

		It("should be deterministic across independent caches", func() {
			records := randomTrace(7, 5000, 1<<14)
			for _, config := range configs {
				first := mustRun(config, records...)
				second := mustRun(config, records...)
				Expect(first).To(Equal(second), config.String())
			}
		})

		It("should never evict when the set holds every distinct tag", func() {
			config := cache.Config{SetBits: 0, Associativity: 64, BlockBits: 4}
			records := randomTrace(3, 3000, 64<<4)

			stats := mustRun(config, records...)
			Expect(stats.Evictions).To(BeZero())
		})

		It("should always evict on a tag change in a direct-mapped set", func() {
			c, err := cache.New(cache.Config{SetBits: 2, Associativity: 1, BlockBits: 2})
			Expect(err).NotTo(HaveOccurred())
			r := NewReplayer(c)

			resident := map[uint64]uint64{}
			for _, rec := range randomTrace(11, 2000, 1<<10) {
				if !rec.Op.IsData() {
					continue
				}

				addr := c.Decompose(rec.Address)
				tag, touched := resident[addr.SetIndex]
				results := r.Step(rec)

				first := results[0]
				Expect(first.Hit).To(Equal(touched && tag == addr.Tag))
				Expect(first.Evicted).To(Equal(touched && tag != addr.Tag))
				if rec.Op == trace.Modify {
					Expect(results[1].Hit).To(BeTrue())
				}

				resident[addr.SetIndex] = addr.Tag
			}
		})

		It("should always hit on the second half of a modify", func() {
			c, err := cache.New(cache.Config{SetBits: 1, Associativity: 2, BlockBits: 1})
			Expect(err).NotTo(HaveOccurred())
			r := NewReplayer(c)

			for _, rec := range randomTrace(5, 1000, 1<<8) {
				results := r.Step(rec)
				if rec.Op == trace.Modify {
					Expect(results).To(HaveLen(2))
					Expect(results[1].Hit).To(BeTrue())
				}
			}
		})
	})

	Describe("Sources and hooks", func() {
		var (
			mockCtrl *gomock.Controller
			source   *MockSource
			hook     *MockHook
			r        *Replayer
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			source = NewMockSource(mockCtrl)
			hook = NewMockHook(mockCtrl)

			c, err := cache.New(cache.Config{SetBits: 0, Associativity: 1, BlockBits: 0})
			Expect(err).NotTo(HaveOccurred())
			r = NewReplayer(c)
			r.AcceptHook(hook)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should return partial statistics when the source fails", func() {
			readErr := errors.New("disk on fire")
			gomock.InOrder(
				source.EXPECT().Next().Return(load(1), nil),
				source.EXPECT().Next().Return(trace.Record{}, readErr),
			)
			hook.EXPECT().Func(gomock.Any())

			stats, err := r.Replay(source)
			Expect(err).To(MatchError(readErr))
			Expect(err.Error()).To(ContainSubstring("failed to read trace record"))
			Expect(stats).To(Equal(Statistics{Misses: 1}))
		})

		It("should pull records one at a time until EOF", func() {
			gomock.InOrder(
				source.EXPECT().Next().Return(load(1), nil),
				source.EXPECT().Next().Return(load(1), nil),
				source.EXPECT().Next().Return(trace.Record{}, io.EOF),
			)
			hook.EXPECT().Func(gomock.Any()).Times(2)

			stats, err := r.Replay(source)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(Equal(Statistics{Hits: 1, Misses: 1}))
			Expect(r.Stats()).To(Equal(stats))
		})

		It("should report each data record after it is applied", func() {
			rec := modify(9)
			hook.EXPECT().Func(gomock.Any()).Do(func(ctx sim.HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(HookPosAfterRecord))
				Expect(ctx.Domain).To(BeIdenticalTo(r))
				Expect(ctx.Item).To(Equal(rec))

				results := ctx.Detail.([]cache.AccessResult)
				Expect(results).To(HaveLen(2))
				Expect(results[0].Outcome()).To(Equal(cache.OutcomeMiss))
				Expect(results[1].Outcome()).To(Equal(cache.OutcomeHit))
			})

			r.Step(rec)
		})

		It("should report skipped instruction records", func() {
			rec := instruction(0x400000)
			hook.EXPECT().Func(gomock.Any()).Do(func(ctx sim.HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(HookPosRecordSkipped))
				Expect(ctx.Item).To(Equal(rec))
				Expect(ctx.Detail).To(BeNil())
			})

			Expect(r.Step(rec)).To(BeNil())
			Expect(r.Stats()).To(Equal(Statistics{}))
		})
	})

	It("should refuse to run with an invalid geometry", func() {
		_, err := Run(cache.Config{SetBits: 1, Associativity: 0, BlockBits: 1},
			trace.NewSliceSource(load(0)))
		Expect(err).To(MatchError(cache.ErrInvalidConfig))
	})
})

var _ = Describe("VerbosePrinter", func() {
	It("should echo records with their outcomes", func() {
		var buf bytes.Buffer
		_, err := Run(cache.Config{SetBits: 4, Associativity: 1, BlockBits: 4},
			trace.NewSliceSource(
				instruction(0x400000),
				load(0x10), modify(0x20), load(0x110), modify(0x12),
			),
			NewVerbosePrinter(&buf))
		Expect(err).NotTo(HaveOccurred())

		Expect(buf.String()).To(Equal(
			"L 10,1 miss\n" +
				"M 20,1 miss hit\n" +
				"L 110,1 miss eviction\n" +
				"M 12,1 miss eviction hit\n"))
	})
})

var _ = Describe("RunBatch", func() {
	var (
		tempDir string
		logger  *logrus.Logger
	)

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	})

	writeTrace := func(name, content string) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	It("should replay every trace with a fresh cache", func() {
		a := writeTrace("a.trace", " L 0,1\n L 1,1\n L 0,1\n")
		b := writeTrace("b.trace", " M 5,1\n")

		config := cache.Config{SetBits: 0, Associativity: 1, BlockBits: 0}
		results, err := RunBatch(config, []string{a, b, a}, logger)
		Expect(err).NotTo(HaveOccurred())

		Expect(results).To(Equal([]BatchResult{
			{Path: a, Stats: Statistics{Misses: 3, Evictions: 2}},
			{Path: b, Stats: Statistics{Hits: 1, Misses: 1}},
			{Path: a, Stats: Statistics{Misses: 3, Evictions: 2}},
		}))
	})

	It("should stop at the first failing trace", func() {
		a := writeTrace("a.trace", " L 0,1\n")
		bad := writeTrace("bad.trace", " L 0,1\n nonsense\n")

		config := cache.Config{SetBits: 0, Associativity: 1, BlockBits: 0}
		results, err := RunBatch(config, []string{a, bad, a}, logger)
		Expect(err).To(MatchError(trace.ErrMalformedLine))
		Expect(err.Error()).To(ContainSubstring("bad.trace"))
		Expect(results).To(HaveLen(1))
	})

	It("should reject an invalid geometry before reading anything", func() {
		config := cache.Config{SetBits: -1, Associativity: 1, BlockBits: 0}
		results, err := RunBatch(config, []string{filepath.Join(tempDir, "missing")}, logger)
		Expect(err).To(MatchError(cache.ErrInvalidConfig))
		Expect(results).To(BeNil())
	})
})
