package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("HookableBase", func() {
	var (
		mockCtrl *gomock.Controller
		domain   *HookableBase
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		domain = NewHookableBase()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start with no hooks", func() {
		Expect(domain.NumHooks()).To(Equal(0))
		Expect(domain.Hooks()).To(BeEmpty())
	})

	It("should invoke hooks in registration order", func() {
		hook1 := NewMockHook(mockCtrl)
		hook2 := NewMockHook(mockCtrl)
		pos := &HookPos{Name: "Pos"}
		ctx := HookCtx{Domain: domain, Pos: pos, Item: 1}

		domain.AcceptHook(hook1)
		domain.AcceptHook(hook2)

		gomock.InOrder(
			hook1.EXPECT().Func(ctx),
			hook2.EXPECT().Func(ctx),
		)

		domain.InvokeHook(ctx)

		Expect(domain.NumHooks()).To(Equal(2))
	})

	It("should adapt functions as hooks", func() {
		var got []interface{}
		domain.AcceptHook(HookFunc(func(ctx HookCtx) {
			got = append(got, ctx.Item)
		}))

		domain.InvokeHook(HookCtx{Item: "a"})
		domain.InvokeHook(HookCtx{Item: "b"})

		Expect(got).To(Equal([]interface{}{"a", "b"}))
	})
})
