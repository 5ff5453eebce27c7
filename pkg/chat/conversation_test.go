package chat_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lexchat/pkg/chat"
	"github.com/papercomputeco/lexchat/pkg/generator"
	"github.com/papercomputeco/lexchat/pkg/generator/generatortest"
	"github.com/papercomputeco/lexchat/pkg/session"
)

var _ = Describe("Conversation", func() {
	const question = "É crime dirigir sem habilitação?"

	var (
		ctx   context.Context
		store *session.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = session.NewStore()
	})

	newConversation := func(svc *generatortest.Service) *chat.Conversation {
		return chat.NewConversation(store, generator.New(svc), nil)
	}

	Context("when the service streams a full reply", func() {
		It("commits the user turn and the concatenated assistant turn", func() {
			conv := newConversation(generatortest.Reply(
				"Sim, ", "dirigir sem habilitação ", "é contravenção/crime conforme o CTB.",
			))

			var display strings.Builder
			turn, err := conv.Ask(ctx, question, &display)
			Expect(err).NotTo(HaveOccurred())

			want := "Sim, dirigir sem habilitação é contravenção/crime conforme o CTB."
			Expect(display.String()).To(Equal(want))
			Expect(turn.Content).To(Equal(want))

			all := store.All()
			Expect(all).To(HaveLen(2))
			Expect(all[0].Role).To(Equal(session.RoleUser))
			Expect(all[0].Content).To(Equal(question))
			Expect(all[1].Role).To(Equal(session.RoleAssistant))
			Expect(all[1].Content).To(Equal(want))
			Expect(all[1].ParentHash).To(Equal(all[0].Hash))
		})

		It("does not commit until the reply is fully drained", func() {
			conv := newConversation(generatortest.Reply("a", "b"))

			reply, err := conv.Submit(ctx, question)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Len()).To(Equal(1))

			Expect(reply.Next()).To(BeTrue())
			Expect(store.Len()).To(Equal(1))
			Expect(reply.Next()).To(BeTrue())
			Expect(store.Len()).To(Equal(1))
			Expect(reply.Next()).To(BeFalse())

			Expect(store.Len()).To(Equal(2))
			Expect(reply.Done()).To(BeTrue())
			Expect(reply.Turn().Content).To(Equal("ab"))
			Expect(reply.Text()).To(Equal("ab"))
		})

		It("commits the assistant turn exactly once", func() {
			conv := newConversation(generatortest.Reply("a"))
			reply, _ := conv.Submit(ctx, question)
			for reply.Next() {
			}
			Expect(reply.Next()).To(BeFalse())
			Expect(reply.Close()).To(Succeed())

			Expect(store.Len()).To(Equal(2))
		})
	})

	Context("when the service call fails", func() {
		It("keeps only the user turn and returns the failure", func() {
			conv := newConversation(generatortest.Fail(errors.New("quota exceeded")))

			reply, err := conv.Submit(ctx, question)

			Expect(reply).To(BeNil())
			Expect(errors.Is(err, generator.ErrGeneration)).To(BeTrue())
			all := store.All()
			Expect(all).To(HaveLen(1))
			Expect(all[0].Role).To(Equal(session.RoleUser))
		})

		It("lets the user submit another turn afterwards", func() {
			svc := generatortest.NewService(
				generatortest.Script{CallErr: errors.New("unavailable")},
				generatortest.Script{Fragments: []string{"ok"}},
			)
			conv := newConversation(svc)

			_, err := conv.Ask(ctx, "first", &strings.Builder{})
			Expect(err).To(HaveOccurred())

			turn, err := conv.Ask(ctx, "second", &strings.Builder{})
			Expect(err).NotTo(HaveOccurred())
			Expect(turn.Content).To(Equal("ok"))
			Expect(store.Len()).To(Equal(3))
		})
	})

	Context("when the stream fails after some fragments", func() {
		It("shows the fragments but drops the assistant turn", func() {
			svc := generatortest.NewService(generatortest.Script{
				Fragments: []string{"Sim, ", "dirigir "},
				StreamErr: errors.New("connection reset"),
			})
			conv := newConversation(svc)

			var display strings.Builder
			_, err := conv.Ask(ctx, question, &display)

			Expect(display.String()).To(Equal("Sim, dirigir "))
			var partial *generator.PartialStreamError
			Expect(errors.As(err, &partial)).To(BeTrue())
			Expect(partial.Partial).To(Equal("Sim, dirigir "))
			Expect(store.Len()).To(Equal(1))
		})
	})

	Context("when a turn is still open", func() {
		It("rejects a second submission", func() {
			conv := newConversation(generatortest.Reply("a", "b"))

			reply, err := conv.Submit(ctx, "first")
			Expect(err).NotTo(HaveOccurred())

			_, err = conv.Submit(ctx, "second")
			Expect(err).To(MatchError(chat.ErrTurnInProgress))
			Expect(store.Len()).To(Equal(1))

			for reply.Next() {
			}
			_, err = conv.Submit(ctx, "third")
			Expect(err).NotTo(HaveOccurred())
		})

		It("frees the conversation when the reply is abandoned", func() {
			conv := newConversation(generatortest.Reply("a", "b"))

			reply, _ := conv.Submit(ctx, "first")
			Expect(reply.Next()).To(BeTrue())
			Expect(reply.Close()).To(Succeed())

			Expect(errors.Is(reply.Err(), generator.ErrStreamClosed)).To(BeTrue())
			Expect(store.Len()).To(Equal(1))

			_, err := conv.Submit(ctx, "second")
			Expect(err).NotTo(HaveOccurred())
		})

		It("settles once when closed while another goroutine is reading", func() {
			svc := generatortest.NewService(
				generatortest.Script{Fragments: []string{"Sim, "}, Block: true},
				generatortest.Script{Fragments: []string{"ok"}},
			)
			conv := newConversation(svc)

			reply, err := conv.Submit(ctx, "first")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Next()).To(BeTrue())

			advanced := make(chan bool)
			go func() {
				advanced <- reply.Next()
			}()
			Eventually(svc.Readers()[0].Blocked()).Should(BeClosed())

			Expect(reply.Close()).To(Succeed())
			Expect(<-advanced).To(BeFalse())

			Expect(reply.Done()).To(BeTrue())
			Expect(errors.Is(reply.Err(), generator.ErrStreamClosed)).To(BeTrue())
			Expect(store.Len()).To(Equal(1))

			// exactly one release: the next reply holds the conversation
			second, err := conv.Submit(ctx, "second")
			Expect(err).NotTo(HaveOccurred())
			_, err = conv.Submit(ctx, "third")
			Expect(err).To(MatchError(chat.ErrTurnInProgress))
			Expect(second.Close()).To(Succeed())
		})
	})

	It("never sends earlier turns to the service", func() {
		svc := generatortest.Reply("resposta")
		conv := newConversation(svc)

		_, err := conv.Ask(ctx, "pergunta um", &strings.Builder{})
		Expect(err).NotTo(HaveOccurred())
		_, err = conv.Ask(ctx, "pergunta dois", &strings.Builder{})
		Expect(err).NotTo(HaveOccurred())

		last := svc.Requests()[1].Prompt()
		Expect(last).To(Equal(generator.ComposePrompt(generator.LegalInstruction, "pergunta dois")))
		Expect(last).NotTo(ContainSubstring("pergunta um"))
		Expect(last).NotTo(ContainSubstring("resposta"))
	})
})
