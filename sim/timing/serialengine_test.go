package timing

import (
	"log"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/mock/gomock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingHandler struct {
	name     string
	engine   *SerialEngine
	calls    *[]string
	times    *[]VTime
	schedule map[string][]*Event
	onHandle func(evt *Event) error
}

func (h *recordingHandler) Name() string {
	return h.name
}

func (h *recordingHandler) Handle(evt *Event) error {
	label := evt.Payload.(string)
	*h.calls = append(*h.calls, h.name+":"+label)
	*h.times = append(*h.times, h.engine.CurrentTime())

	for _, next := range h.schedule[label] {
		Expect(h.engine.Schedule(next)).To(Succeed())
	}

	if h.onHandle != nil {
		return h.onHandle(evt)
	}

	return nil
}

var _ = Describe("SerialEngine", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *SerialEngine
		calls    []string
		times    []VTime
		handlerA *recordingHandler
		handlerB *recordingHandler
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewSerialEngineWithLogger(log.New(GinkgoWriter, "", 0))
		calls = nil
		times = nil
		handlerA = &recordingHandler{
			name: "A", engine: engine, calls: &calls, times: &times}
		handlerB = &recordingHandler{
			name: "B", engine: engine, calls: &calls, times: &times}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should schedule events", func() {
		handlerB.schedule = map[string][]*Event{
			"evt2": {
				NewEvent(3, handlerA, "evt3"),
				NewEvent(5, handlerA, "evt4"),
			},
		}

		Expect(engine.Schedule(NewEvent(4, handlerA, "evt1"))).To(Succeed())
		Expect(engine.Schedule(NewEvent(2, handlerB, "evt2"))).To(Succeed())

		now, err := engine.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(now).To(Equal(VTime(5)))
		Expect(calls).To(Equal(
			[]string{"B:evt2", "A:evt3", "A:evt1", "A:evt4"}))
	})

	It("should dispatch equal times in schedule order", func() {
		Expect(engine.Schedule(NewEvent(50, handlerA, "first"))).To(Succeed())
		Expect(engine.Schedule(NewEvent(50, handlerB, "second"))).To(Succeed())
		Expect(engine.Schedule(NewEvent(30, handlerA, "early"))).To(Succeed())

		now, err := engine.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(now).To(Equal(VTime(50)))
		Expect(calls).To(Equal([]string{"A:early", "A:first", "B:second"}))
		Expect(times).To(Equal([]VTime{30, 50, 50}))

		finished, code := engine.Finished()
		Expect(finished).To(BeTrue())
		Expect(code).To(Equal(0))
	})

	It("should see same-time events raised by a callback", func() {
		handlerA.schedule = map[string][]*Event{
			"first": {NewEvent(10, handlerB, "chained")},
		}
		Expect(engine.Schedule(NewEvent(10, handlerA, "first"))).To(Succeed())
		Expect(engine.Schedule(NewEvent(11, handlerA, "later"))).To(Succeed())

		_, err := engine.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal([]string{"A:first", "B:chained", "A:later"}))
	})

	It("should reject events in the past and leave the queue unchanged", func() {
		Expect(engine.Schedule(NewEvent(10, handlerA, "a"))).To(Succeed())
		_, err := engine.StepUntil(10)
		Expect(err).NotTo(HaveOccurred())

		err = engine.Schedule(NewEvent(5, handlerA, "past"))
		Expect(errors.Is(err, ErrInvalidSchedule)).To(BeTrue())

		_, err = engine.ScheduleEvent(handlerA, -1, "negative")
		Expect(errors.Is(err, ErrInvalidSchedule)).To(BeTrue())
		Expect(engine.Pending()).To(Equal(0))
	})

	It("should schedule relative to the current time", func() {
		_, err := engine.StepUntil(100)
		Expect(err).NotTo(HaveOccurred())

		evt, err := engine.ScheduleEvent(handlerA, 25, "relative")

		Expect(err).NotTo(HaveOccurred())
		Expect(evt.Time).To(Equal(VTime(125)))
		Expect(evt.IsPending()).To(BeTrue())
	})

	It("should cancel pending events", func() {
		evt, err := engine.ScheduleEvent(handlerA, 10, "cancelled")
		Expect(err).NotTo(HaveOccurred())
		_, err = engine.ScheduleEvent(handlerA, 20, "kept")
		Expect(err).NotTo(HaveOccurred())

		engine.Cancel(evt)
		engine.Cancel(evt)

		_, err = engine.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal([]string{"A:kept"}))

		engine.Cancel(evt)
	})

	It("should reschedule events", func() {
		evt, err := engine.ScheduleEvent(handlerA, 10, "moved")
		Expect(err).NotTo(HaveOccurred())
		_, err = engine.ScheduleEvent(handlerA, 20, "fixed")
		Expect(err).NotTo(HaveOccurred())

		Expect(engine.Reschedule(evt, 30)).To(Succeed())
		Expect(engine.Pending()).To(Equal(2))

		_, err = engine.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal([]string{"A:fixed", "A:moved"}))
		Expect(times).To(Equal([]VTime{20, 30}))
	})

	Context("when stepping", func() {
		It("should dispatch events up to and including the target", func() {
			for _, t := range []VTime{10, 20, 20, 30} {
				Expect(engine.Schedule(NewEvent(t, handlerA, "e"))).To(Succeed())
			}

			now, err := engine.StepUntil(20)

			Expect(err).NotTo(HaveOccurred())
			Expect(now).To(Equal(VTime(20)))
			Expect(times).To(Equal([]VTime{10, 20, 20}))
			Expect(engine.Pending()).To(Equal(1))
		})

		It("should move the clock to the target without events", func() {
			now, err := engine.Step(10)

			Expect(err).NotTo(HaveOccurred())
			Expect(now).To(Equal(VTime(10)))
			Expect(engine.CurrentTime()).To(Equal(VTime(10)))

			finished, _ := engine.Finished()
			Expect(finished).To(BeFalse())
		})

		It("should be a no-op when the target is now", func() {
			_, err := engine.StepUntil(40)
			Expect(err).NotTo(HaveOccurred())

			now, err := engine.StepUntil(40)

			Expect(err).NotTo(HaveOccurred())
			Expect(now).To(Equal(VTime(40)))
		})

		It("should reject targets in the past", func() {
			_, err := engine.StepUntil(40)
			Expect(err).NotTo(HaveOccurred())

			now, err := engine.StepUntil(39)

			Expect(errors.Is(err, ErrInvalidDuration)).To(BeTrue())
			Expect(now).To(Equal(VTime(40)))
		})

		It("should reject non-positive durations", func() {
			_, err := engine.Step(0)
			Expect(errors.Is(err, ErrInvalidDuration)).To(BeTrue())

			_, err = engine.Step(-5)
			Expect(errors.Is(err, ErrInvalidDuration)).To(BeTrue())
		})

		It("should saturate a step that runs past the end of time", func() {
			Expect(engine.Schedule(NewEvent(30, handlerA, "late"))).To(Succeed())
			_, err := engine.StepUntil(10)
			Expect(err).NotTo(HaveOccurred())

			now, err := engine.Step(math.MaxInt64)

			Expect(err).NotTo(HaveOccurred())
			Expect(now).To(Equal(VTime(math.MaxInt64)))
			Expect(calls).To(Equal([]string{"A:late"}))
		})

		It("should include events a callback adds at the boundary", func() {
			handlerA.schedule = map[string][]*Event{
				"edge": {NewEvent(20, handlerB, "same-time")},
			}
			Expect(engine.Schedule(NewEvent(20, handlerA, "edge"))).To(Succeed())

			_, err := engine.StepUntil(20)

			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal([]string{"A:edge", "B:same-time"}))
		})

		It("should not finish when a step drains the queue", func() {
			Expect(engine.Schedule(NewEvent(5, handlerA, "only"))).To(Succeed())

			now, err := engine.Step(100)

			Expect(err).NotTo(HaveOccurred())
			Expect(now).To(Equal(VTime(100)))
			finished, _ := engine.Finished()
			Expect(finished).To(BeFalse())
		})
	})

	Context("when stopping", func() {
		It("should halt after the event in flight and resume later", func() {
			handlerA.onHandle = func(evt *Event) error {
				if evt.Time == 20 {
					Expect(engine.Stop()).To(Equal(VTime(20)))
				}
				return nil
			}
			for _, t := range []VTime{10, 20, 20, 30} {
				Expect(engine.Schedule(NewEvent(t, handlerA, "e"))).To(Succeed())
			}

			now, err := engine.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(now).To(Equal(VTime(20)))
			Expect(times).To(Equal([]VTime{10, 20}))
			finished, _ := engine.Finished()
			Expect(finished).To(BeFalse())

			handlerA.onHandle = nil
			now, err = engine.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(now).To(Equal(VTime(30)))
			Expect(times).To(Equal([]VTime{10, 20, 20, 30}))
		})

		It("should let finished win over a stop when the queue drains", func() {
			handlerA.onHandle = func(*Event) error {
				engine.Stop()
				return nil
			}
			Expect(engine.Schedule(NewEvent(10, handlerA, "last"))).To(Succeed())

			now, err := engine.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(now).To(Equal(VTime(10)))
			finished, _ := engine.Finished()
			Expect(finished).To(BeTrue())
		})

		It("should stop a step before its target", func() {
			handlerA.onHandle = func(*Event) error {
				engine.Stop()
				return nil
			}
			Expect(engine.Schedule(NewEvent(10, handlerA, "a"))).To(Succeed())
			Expect(engine.Schedule(NewEvent(20, handlerA, "b"))).To(Succeed())

			now, err := engine.StepUntil(100)

			Expect(err).NotTo(HaveOccurred())
			Expect(now).To(Equal(VTime(10)))
		})

		It("should forget a cleared stop", func() {
			Expect(engine.Schedule(NewEvent(10, handlerA, "a"))).To(Succeed())
			engine.Stop()
			engine.ClearStop()

			now, err := engine.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(now).To(Equal(VTime(10)))
			Expect(calls).To(HaveLen(1))
		})
	})

	Context("when the program quits", func() {
		It("should finish with the exit code", func() {
			endHandler := NewMockSimulationEndHandler(mockCtrl)
			endHandler.EXPECT().Handle(VTime(20), 3)
			engine.RegisterSimulationEndHandler(endHandler)

			handlerA.onHandle = func(evt *Event) error {
				if evt.Time == 20 {
					engine.Quit(3)
				}
				return nil
			}
			for _, t := range []VTime{10, 20, 30} {
				Expect(engine.Schedule(NewEvent(t, handlerA, "e"))).To(Succeed())
			}

			now, err := engine.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(now).To(Equal(VTime(20)))
			finished, code := engine.Finished()
			Expect(finished).To(BeTrue())
			Expect(code).To(Equal(3))

			now, err = engine.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(now).To(Equal(VTime(20)))
			Expect(times).To(HaveLen(2))
		})
	})

	Context("when handlers fail", func() {
		It("should keep dispatching after an ordinary error", func() {
			boom := errors.New("boom")
			handlerA.onHandle = func(evt *Event) error {
				if evt.Time == 10 {
					return boom
				}
				return nil
			}
			Expect(engine.Schedule(NewEvent(10, handlerA, "bad"))).To(Succeed())
			Expect(engine.Schedule(NewEvent(20, handlerA, "good"))).To(Succeed())

			now, err := engine.Run()

			Expect(errors.Is(err, boom)).To(BeTrue())
			Expect(now).To(Equal(VTime(20)))
			Expect(calls).To(HaveLen(2))
			_, code := engine.Finished()
			Expect(code).To(Equal(0))
		})

		It("should abort on a fatal error", func() {
			handlerA.onHandle = func(*Event) error {
				return errors.Wrap(ErrFatal, "bad configuration")
			}
			Expect(engine.Schedule(NewEvent(10, handlerA, "fatal"))).To(Succeed())
			Expect(engine.Schedule(NewEvent(20, handlerA, "never"))).To(Succeed())

			now, err := engine.Run()

			Expect(errors.Is(err, ErrFatal)).To(BeTrue())
			Expect(now).To(Equal(VTime(10)))
			finished, code := engine.Finished()
			Expect(finished).To(BeTrue())
			Expect(code).To(Equal(1))
		})

		It("should turn a panic into a fatal error", func() {
			handlerA.onHandle = func(*Event) error {
				panic("model bug")
			}
			Expect(engine.Schedule(NewEvent(10, handlerA, "panic"))).To(Succeed())

			_, err := engine.Run()

			Expect(errors.Is(err, ErrFatal)).To(BeTrue())
			_, code := engine.Finished()
			Expect(code).To(Equal(1))
		})
	})

	Context("with notifiers", func() {
		It("should notify once per halt in registration order", func() {
			n1 := NewMockNotifier(mockCtrl)
			n2 := NewMockNotifier(mockCtrl)
			first := n1.EXPECT().Notify(VTime(100)).Return(nil)
			n2.EXPECT().Notify(VTime(100)).Return(nil).After(first)
			engine.RegisterNotifier(n1)
			engine.RegisterNotifier(n2)

			now, err := engine.Step(100)

			Expect(err).NotTo(HaveOccurred())
			Expect(now).To(Equal(VTime(100)))
		})

		It("should skip failing notifiers", func() {
			n1 := NewMockNotifier(mockCtrl)
			n2 := NewMockNotifier(mockCtrl)
			n1.EXPECT().Notify(VTime(5)).Return(errors.New("observer broke"))
			n2.EXPECT().Notify(VTime(5)).Return(nil)
			engine.RegisterNotifier(n1)
			engine.RegisterNotifier(n2)

			_, err := engine.Step(5)

			Expect(err).NotTo(HaveOccurred())
		})

		It("should not notify when a step is rejected", func() {
			n := NewMockNotifier(mockCtrl)
			n.EXPECT().Notify(gomock.Any()).Times(0)
			engine.RegisterNotifier(n)

			_, err := engine.Step(0)

			Expect(err).To(HaveOccurred())
		})
	})

	It("should invoke event hooks", func() {
		hook := &countingHook{}
		engine.AcceptHook(hook)
		Expect(engine.Schedule(NewEvent(1, handlerA, "a"))).To(Succeed())

		_, err := engine.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(hook.before).To(Equal(1))
		Expect(hook.after).To(Equal(1))
		Expect(hook.halts).To(Equal([]HaltReason{HaltFinished}))
	})
})
