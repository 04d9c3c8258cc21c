package monitoring

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sarchlab/vpsim/sim/timing"
)

type nopHandler struct{}

func (nopHandler) Handle(_ *timing.Event) error { return nil }

var _ = Describe("Metrics", func() {
	var (
		metrics *Metrics
		engine  *timing.SerialEngine
	)

	BeforeEach(func() {
		metrics = NewMetrics()
		engine = timing.NewSerialEngine()
		engine.AcceptHook(metrics)
		engine.RegisterNotifier(metrics)
	})

	It("should count dispatched events and halts", func() {
		for _, t := range []timing.VTime{5, 7, 20} {
			Expect(engine.Schedule(timing.NewEvent(t, nopHandler{}, nil))).
				To(Succeed())
		}

		_, err := engine.StepUntil(10)
		Expect(err).ToNot(HaveOccurred())
		_, err = engine.Run()
		Expect(err).ToNot(HaveOccurred())

		Expect(testutil.ToFloat64(metrics.events)).To(Equal(3.0))
		Expect(testutil.ToFloat64(
			metrics.halts.WithLabelValues("boundary"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(
			metrics.halts.WithLabelValues("finished"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(metrics.vtime)).To(Equal(20.0))
	})

	It("should gather from its own registry", func() {
		Expect(metrics.Notify(42)).To(Succeed())

		families, err := metrics.Registry().Gather()
		Expect(err).ToNot(HaveOccurred())

		var gauge *dto.MetricFamily
		for _, f := range families {
			if f.GetName() == "vpsim_virtual_time" {
				gauge = f
			}
		}

		Expect(gauge).ToNot(BeNil())
		Expect(gauge.GetMetric()[0].GetGauge().GetValue()).To(Equal(42.0))
	})
})
