package timing

import (
	"log"

	"go.uber.org/mock/gomock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("TickScheduler", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *SerialEngine
		ticker   *MockTicker
		comp     *TickingComponent
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewSerialEngineWithLogger(log.New(GinkgoWriter, "", 0))
		ticker = NewMockTicker(mockCtrl)
		comp = NewTickingComponent("comp", engine, 10, ticker)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should compute grid points", func() {
		Expect(comp.ThisTick(0)).To(Equal(VTime(0)))
		Expect(comp.ThisTick(1)).To(Equal(VTime(10)))
		Expect(comp.ThisTick(10)).To(Equal(VTime(10)))
		Expect(comp.NextTick(10)).To(Equal(VTime(20)))
		Expect(comp.NextTick(15)).To(Equal(VTime(20)))
	})

	It("should keep ticking while the ticker makes progress", func() {
		ticker.EXPECT().Tick().Return(true).Times(3)
		ticker.EXPECT().Tick().Return(false)

		Expect(comp.TickNow()).To(Succeed())

		now, err := engine.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(now).To(Equal(VTime(30)))
	})

	It("should not schedule the same tick twice", func() {
		Expect(comp.TickLater()).To(Succeed())
		Expect(comp.TickLater()).To(Succeed())
		Expect(comp.TickNow()).To(Succeed())

		Expect(engine.Pending()).To(Equal(1))
	})

	It("should reject foreign payloads", func() {
		err := comp.Handle(NewEvent(0, comp, "not a tick"))

		Expect(err).To(HaveOccurred())
	})

	It("should send ticks to the given target", func() {
		target := NewMockHandler(mockCtrl)
		comp = NewTickingComponentFor("comp", engine, 10, ticker, target)

		target.EXPECT().Handle(gomock.Any()).DoAndReturn(func(evt *Event) error {
			Expect(evt.Payload).To(BeAssignableToTypeOf(TickEvent{}))
			Expect(evt.Time).To(Equal(VTime(10)))
			return nil
		})

		Expect(comp.TickLater()).To(Succeed())

		_, err := engine.Run()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should panic on a non-positive period", func() {
		Expect(func() { NewTickScheduler(comp, engine, 0) }).To(Panic())
	})
})
