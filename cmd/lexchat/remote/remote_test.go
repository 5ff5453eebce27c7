package remotecmder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/pkg/chat"
	"github.com/papercomputeco/lexchat/pkg/generator"
	"github.com/papercomputeco/lexchat/pkg/generator/generatortest"
	"github.com/papercomputeco/lexchat/server"
)

var _ = Describe("Remote Command", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	startServerWithLimit := func(svc *generatortest.Service, maxSessions int) string {
		srv := server.New(server.Config{ListenAddr: ":0", MaxSessions: maxSessions}, generator.New(svc), zap.NewNop())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		go func() {
			_ = srv.RunWithListener(listener)
		}()
		DeferCleanup(srv.Shutdown)

		return "http://" + listener.Addr().String()
	}

	startServer := func(svc *generatortest.Service) string {
		return startServerWithLimit(svc, 0)
	}

	execute := func(args ...string) (string, error) {
		cmd := NewRemoteCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	It("streams answers from the server", func() {
		svc := generatortest.Reply("Sim, ", "é crime.")
		addr := startServer(svc)

		out, err := execute(addr, "É crime dirigir sem habilitação?")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Sim, é crime."))
		Expect(svc.Calls()).To(Equal(1))
	})

	It("sends several questions in one session", func() {
		svc := generatortest.Reply("ok")
		addr := startServer(svc)

		_, err := execute("--keep", addr, "primeira", "segunda")
		Expect(err).NotTo(HaveOccurred())
		Expect(svc.Calls()).To(Equal(2))
	})

	It("deletes the session on exit unless kept", func() {
		addr := startServerWithLimit(generatortest.Reply("ok"), 1)

		_, err := execute(addr, "primeira")
		Expect(err).NotTo(HaveOccurred())
		_, err = execute(addr, "segunda")
		Expect(err).NotTo(HaveOccurred())

		out, err := execute("--keep", addr, "terceira")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Session "))

		_, err = execute(addr, "quarta")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("503"))
	})

	It("prints the fallback when the server cannot generate", func() {
		addr := startServer(generatortest.Fail(errors.New("quota exceeded")))

		out, err := execute(addr, "pergunta")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("502"))
		Expect(err.Error()).To(ContainSubstring("quota exceeded"))
		Expect(out).To(ContainSubstring(chat.FallbackReply))
	})

	It("reports a reply that fails mid-stream", func() {
		addr := startServer(generatortest.NewService(generatortest.Script{
			Fragments: []string{"Sim, "},
			StreamErr: errors.New("connection reset"),
		}))

		out, err := execute(addr, "pergunta")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("partial_stream"))
		Expect(out).To(ContainSubstring("Sim, "))
	})

	It("fails against an unreachable server", func() {
		_, err := execute("http://127.0.0.1:1", "pergunta")
		Expect(err).To(HaveOccurred())
	})
})
