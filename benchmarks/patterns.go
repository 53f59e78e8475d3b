package benchmarks

import "github.com/sarchlab/csim/trace"

// GetAccessPatterns returns the standard set of synthetic access patterns.
// Each pattern stresses a different aspect of the replacement policy.
func GetAccessPatterns() []Benchmark {
	return []Benchmark{
		sequentialSweep(),
		repeatedWorkingSet(),
		conflictThrash(),
		strideWalk(),
		matrixTranspose(32),
		instructionHeavy(),
	}
}

// GetCoreBenchmarks returns a minimal set of patterns for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		sequentialSweep(),
		conflictThrash(),
		matrixTranspose(32),
	}
}

// 1. Sequential Sweep - every byte of a 16KB buffer, loaded once
func sequentialSweep() Benchmark {
	return Benchmark{
		Name:        "sequential_sweep",
		Description: "16KB byte-by-byte load sweep - measures spatial locality",
		Records: func() []trace.Record {
			records := make([]trace.Record, 0, 16*1024)
			for addr := uint64(0); addr < 16*1024; addr++ {
				records = append(records, trace.Record{Op: trace.Load, Address: 0x10000 + addr, Size: 1})
			}
			return records
		},
	}
}

// 2. Repeated Working Set - 4KB touched 8 times with read-modify-write
func repeatedWorkingSet() Benchmark {
	return Benchmark{
		Name:        "repeated_working_set",
		Description: "4KB working set modified 8 times - measures temporal locality",
		Records: func() []trace.Record {
			var records []trace.Record
			for pass := 0; pass < 8; pass++ {
				for addr := uint64(0); addr < 4*1024; addr += 8 {
					records = append(records, trace.Record{Op: trace.Modify, Address: 0x20000 + addr, Size: 8})
				}
			}
			return records
		},
	}
}

// 3. Conflict Thrash - three blocks 64KB apart, round robin
func conflictThrash() Benchmark {
	return Benchmark{
		Name:        "conflict_thrash",
		Description: "3 blocks 64KB apart accessed round robin - measures LRU under conflicts",
		Records: func() []trace.Record {
			var records []trace.Record
			for i := 0; i < 1000; i++ {
				for _, base := range []uint64{0x00000, 0x10000, 0x20000} {
					records = append(records, trace.Record{Op: trace.Load, Address: 0x100000 + base, Size: 4})
				}
			}
			return records
		},
	}
}

// 4. Stride Walk - 256B stride over 64KB, twice
func strideWalk() Benchmark {
	return Benchmark{
		Name:        "stride_walk",
		Description: "256B stride over 64KB, two passes - measures set coverage",
		Records: func() []trace.Record {
			var records []trace.Record
			for pass := 0; pass < 2; pass++ {
				for addr := uint64(0); addr < 64*1024; addr += 256 {
					op := trace.Load
					if pass == 1 {
						op = trace.Store
					}
					records = append(records, trace.Record{Op: op, Address: 0x200000 + addr, Size: 8})
				}
			}
			return records
		},
	}
}

// 5. Matrix Transpose - B = transpose(A) for n x n int matrices, row by row
func matrixTranspose(n uint64) Benchmark {
	return Benchmark{
		Name:        "matrix_transpose",
		Description: "naive transpose of 32x32 int matrices - the classic cache lab kernel",
		Records: func() []trace.Record {
			const (
				baseA = 0x30a080
				baseB = 0x34a080
				elem  = 4
			)

			records := make([]trace.Record, 0, 2*n*n)
			for i := uint64(0); i < n; i++ {
				for j := uint64(0); j < n; j++ {
					records = append(records,
						trace.Record{Op: trace.Load, Address: baseA + (i*n+j)*elem, Size: elem},
						trace.Record{Op: trace.Store, Address: baseB + (j*n+i)*elem, Size: elem},
					)
				}
			}
			return records
		},
	}
}

// 6. Instruction Heavy - instruction fetches with sparse data accesses
func instructionHeavy() Benchmark {
	return Benchmark{
		Name:        "instruction_heavy",
		Description: "7 instruction fetches per load - instruction records are never counted",
		Records: func() []trace.Record {
			var records []trace.Record
			pc := uint64(0x400000)
			for i := uint64(0); i < 512; i++ {
				for k := 0; k < 7; k++ {
					records = append(records, trace.Record{Op: trace.Instruction, Address: pc, Size: 4})
					pc += 4
				}
				records = append(records, trace.Record{Op: trace.Load, Address: 0x7ff000000 + (i%64)*8, Size: 8})
			}
			return records
		},
	}
}
