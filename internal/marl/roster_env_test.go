package marl_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mvelasco/platoon/internal/marl"
	"github.com/mvelasco/platoon/internal/ring"
)

var _ = Describe("QMIXEnv", func() {
	var (
		k    *fakeKernel
		env  *marl.QMIXEnv
		qcfg marl.QMIXConfig
	)

	BeforeEach(func() {
		k = newFakeKernel()
		k.addVehicle("rl_0", true, 10, 20, "rl_1", "")
		k.addVehicle("rl_1", true, 8, 25, "", "rl_0")
		qcfg = marl.QMIXConfig{MaxAgents: 4, NumActions: 5}
		env = marl.NewQMIX(k, marl.DefaultConfig(), qcfg)
	})

	It("declares a discrete action space with a no-op", func() {
		Expect(env.ActionSpace()).To(Equal(marl.Discrete{N: 6}))
	})

	It("always reports exactly max_agents observations", func() {
		state := env.State()
		Expect(state).To(HaveLen(4))
	})

	It("masks padding slots down to the no-op", func() {
		state := env.State()

		activeSlots := 0
		for _, slot := range state {
			sum := 0.0
			for _, v := range slot.Obs {
				sum += v
			}
			if sum != 0 {
				activeSlots++
				Expect(slot.Mask).To(Equal([]float64{0, 1, 1, 1, 1, 1}))
			} else {
				Expect(slot.Mask).To(Equal([]float64{1, 0, 0, 0, 0, 0}))
			}
		}
		Expect(activeSlots).To(Equal(2))
	})

	It("maps discrete actions onto the acceleration grid", func() {
		env.State() // assign slots

		// grid spans [-1, 1] in 5 steps; action value k selects grid[k-1]
		env.ApplyActions(map[int]int{0: 5, 1: 1})
		Expect(k.applied).To(HaveLen(2))
		Expect(k.applied["rl_0"]).To(BeNumerically("~", 1.0, 1e-9))
		Expect(k.applied["rl_1"]).To(BeNumerically("~", -1.0, 1e-9))
	})

	It("treats action zero as a no-op", func() {
		env.State()
		env.ApplyActions(map[int]int{0: 0, 1: 3})
		Expect(k.applied).NotTo(HaveKey("rl_0"))
		Expect(k.applied["rl_1"]).To(BeNumerically("~", 0.0, 1e-9))
	})

	It("broadcasts one global reward to every slot", func() {
		env.State()
		rewards := env.Reward(map[int]int{}, false)
		Expect(rewards).To(HaveLen(4))

		// mean rl speed 9 over 20*horizon
		want := 9.0 / (20 * 1000)
		for _, r := range rewards {
			Expect(r).To(BeNumerically("~", want, 1e-12))
		}
	})

	It("releases the slot of a vehicle that left and reuses it", func() {
		env.State()
		k.remove("rl_0")
		env.State()

		k.addVehicle("rl_2", true, 5, 30, "", "")
		state := env.State()
		Expect(state).To(HaveLen(4))

		// rl_2 must land in rl_0's freed slot, not grow past capacity
		active := 0
		for _, slot := range state {
			for _, v := range slot.Obs {
				if v != 0 {
					active++
					break
				}
			}
		}
		Expect(active).To(Equal(2))
	})

	It("rebuilds the roster on reset through the same allocation path", func() {
		before := env.State()
		after := env.Reset(1)
		Expect(after).To(HaveLen(len(before)))

		for idx, slot := range after {
			Expect(slot.Mask).To(HaveLen(6))
			Expect(slot.Obs).To(HaveLen(3))
			Expect(idx).To(BeNumerically("<", 4))
		}
	})
})

var _ = Describe("MADDPGEnv", func() {
	var (
		k   *fakeKernel
		env *marl.MADDPGEnv
	)

	BeforeEach(func() {
		k = newFakeKernel()
		k.addVehicle("rl_0", true, 10, 20, "human_0", "")
		k.addVehicle("human_0", false, 6, 15, "", "rl_0")
		env = marl.NewMADDPG(k, marl.DefaultConfig(), 3)
	})

	It("keeps the continuous action space of the base adapter", func() {
		box, ok := env.ActionSpace().(marl.Box)
		Expect(ok).To(BeTrue())
		Expect(box.Low).To(Equal(-1.0))
		Expect(box.High).To(Equal(1.0))
	})

	It("zero-pads unused slots", func() {
		state := env.State()
		Expect(state).To(HaveLen(3))

		padded := 0
		for _, obs := range state {
			Expect(obs).To(HaveLen(3))
			allZero := true
			for _, v := range obs {
				if v != 0 {
					allZero = false
				}
			}
			if allZero {
				padded++
			}
		}
		Expect(padded).To(Equal(2))
	})

	It("never applies actions for padding slots", func() {
		env.State()
		env.ApplyActions(map[int][]float64{0: {0.7}, 1: {0.9}, 2: {0.3}})
		Expect(k.applied).To(Equal(map[string]float64{"rl_0": 0.7}))
	})

	It("broadcasts the whole-fleet mean speed", func() {
		env.State()
		rewards := env.Reward(map[int][]float64{}, false)
		Expect(rewards).To(HaveLen(3))

		want := 8.0 / (20 * 1000)
		for _, r := range rewards {
			Expect(r).To(BeNumerically("~", want, 1e-12))
		}
	})
})

var _ = Describe("roster adapters on the ring kernel", func() {
	It("tracks staggered RL departures within capacity", func() {
		p := ring.DefaultParams()
		p.NumVehicles = 6
		p.NumRL = 6
		p.EntryInterval = 5
		k := ring.New(p, 21)
		env := marl.NewQMIX(k, marl.DefaultConfig(), marl.QMIXConfig{MaxAgents: 6, NumActions: 3})

		state := env.Reset(21)
		Expect(state).To(HaveLen(6))

		for i := 0; i < 30; i++ {
			env.ApplyActions(map[int]int{0: 1})
			k.Advance(0.1)
			state = env.State()
			Expect(state).To(HaveLen(6))
		}

		// every vehicle has entered and holds a distinct slot
		active := 0
		for _, slot := range state {
			if slot.Mask[0] == 0 {
				active++
			}
		}
		Expect(active).To(Equal(6))
	})
})
