package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vpsim/sim/simulation"
	"github.com/sarchlab/vpsim/sim/timing"
)

type anonymousHandler struct{}

func (anonymousHandler) Handle(_ *timing.Event) error { return nil }

var _ = Describe("StepCountTracer", func() {
	var (
		engine *timing.SerialEngine
		tracer *StepCountTracer
		cpu    *sink
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		tracer = NewStepCountTracer()
		engine.AcceptHook(tracer)
		cpu = &sink{simulation.NewComponentBase("cpu")}
	})

	It("should count events per handler and payload", func() {
		Expect(engine.Schedule(timing.NewEvent(1, cpu, "a"))).To(Succeed())
		Expect(engine.Schedule(timing.NewEvent(2, anonymousHandler{}, 3))).
			To(Succeed())
		Expect(engine.Schedule(timing.NewEvent(3, cpu, "b"))).To(Succeed())

		_, err := engine.Run()
		Expect(err).ToNot(HaveOccurred())

		Expect(tracer.GetStepNames()).To(Equal(
			[]string{"cpu", "tracing.anonymousHandler"}))
		Expect(tracer.GetStepCount("cpu")).To(Equal(uint64(2)))
		Expect(tracer.GetStepCount("tracing.anonymousHandler")).
			To(Equal(uint64(1)))
		Expect(tracer.GetPayloadCount("string")).To(Equal(uint64(2)))
		Expect(tracer.GetPayloadCount("int")).To(Equal(uint64(1)))
		Expect(tracer.BusyTime("cpu")).To(BeNumerically(">=", 0))
	})
})
