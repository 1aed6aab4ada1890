package utils

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ring index", func() {
	It("normalizes the initial value", func() {
		Expect(NewRingIndex(10, 8).Val()).To(Equal(2))
		Expect(NewRingIndex(-1, 8).Val()).To(Equal(7))
		Expect(NewRingIndex(3, 0).Size()).To(Equal(1))
	})

	It("increments and wraps", func() {
		r := NewRingIndex(7, 8)
		Expect(r.Inc().Val()).To(BeZero())
		Expect(r.Add(3).Val()).To(Equal(2))
	})

	It("decrements and wraps", func() {
		r := NewRingIndex(0, 8)
		Expect(r.Dec().Val()).To(Equal(7))
		Expect(r.Sub(10).Val()).To(Equal(6))
	})

	It("computes the forward distance", func() {
		a := NewRingIndex(6, 8)
		b := NewRingIndex(1, 8)
		Expect(a.Distance(b)).To(Equal(3))
		Expect(b.Distance(a)).To(Equal(5))
		Expect(a.Distance(a)).To(BeZero())
	})

	It("is a value type", func() {
		a := NewRingIndex(1, 4)
		b := a.Inc()
		Expect(a.Val()).To(Equal(1))
		Expect(b.Val()).To(Equal(2))
		Expect(a.Equals(b)).To(BeFalse())
		Expect(a.Equals(b.Dec())).To(BeTrue())
	})
})
